package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/specialistvlad/cookbridge/internal/bridgeerr"
	"github.com/specialistvlad/cookbridge/internal/engine"
	"github.com/specialistvlad/cookbridge/internal/engine/enginetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Transport:      "test",
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		PollInterval:   time.Millisecond,
		InterruptGrace: 50 * time.Millisecond,
	}
}

func openChannel(t *testing.T, fake *enginetest.Engine) (*Channel, *enginetest.Connector) {
	t.Helper()
	conn := enginetest.NewConnector(fake)
	ch := New(conn, testConfig())
	_, err := ch.Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close(context.Background()) })
	return ch, conn
}

func rockRequest(seq uint64, rad float64) Request {
	return Request{
		InstanceID: "rock-1",
		Definition: Definition{Name: "rock", Library: "assets/rock.hda"},
		Params:     engine.ParamSet{"rad": engine.FloatParm(rad)},
		Seq:        seq,
	}
}

func wait(t *testing.T, tk *Ticket) Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	o, err := tk.Wait(ctx)
	require.NoError(t, err, "ticket did not resolve")
	return o
}

func TestChannel_OpenAndCook(t *testing.T) {
	fake := enginetest.New(nil)
	ch, _ := openChannel(t, fake)

	h, ok := ch.Handle()
	require.True(t, ok)
	assert.NotEmpty(t, h.ID)
	assert.Equal(t, "test", h.Transport)
	assert.Equal(t, StateReady, ch.State())

	tk, err := ch.Cook(context.Background(), rockRequest(1, 5))
	require.NoError(t, err)

	o := wait(t, tk)
	assert.Equal(t, StatusSuccess, o.Status)
	assert.Equal(t, "rock-1", o.InstanceID)
	assert.Equal(t, uint64(1), o.Seq)
	require.NotNil(t, o.Output)
	assert.Equal(t, engine.FloatParm(5), o.Output.Params["rad"])

	require.Eventually(t, func() bool { return ch.State() == StateReady }, time.Second, time.Millisecond)
}

func TestChannel_OpenIsIdempotentWhileOpen(t *testing.T) {
	ch, conn := openChannel(t, enginetest.New(nil))
	first, _ := ch.Handle()

	h, err := ch.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.ID, h.ID)
	assert.Equal(t, 1, conn.Attempts())
}

func TestChannel_RetryExhaustionLeavesDisconnected(t *testing.T) {
	conn := enginetest.NewConnector(enginetest.New(nil))
	conn.FailNext(10)
	ch := New(conn, testConfig())

	_, err := ch.Open(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, bridgeerr.ErrConnection))
	assert.ErrorIs(t, err, enginetest.ErrConnectRefused)
	assert.Equal(t, 3, conn.Attempts())
	assert.Equal(t, StateDisconnected, ch.State())

	_, err = ch.Cook(context.Background(), rockRequest(1, 1))
	assert.ErrorIs(t, err, ErrNotReady)

	// Reconnection only happens on an explicit Open.
	conn.FailNext(0)
	_, err = ch.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateReady, ch.State())
	require.NoError(t, ch.Close(context.Background()))
}

func TestChannel_RetrySucceedsWithinBudget(t *testing.T) {
	conn := enginetest.NewConnector(enginetest.New(nil))
	conn.FailNext(2)
	ch := New(conn, testConfig())

	_, err := ch.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, conn.Attempts())
	require.NoError(t, ch.Close(context.Background()))
}

func TestChannel_CookWhileBusy(t *testing.T) {
	fake := enginetest.New(nil)
	fake.Gate()
	ch, _ := openChannel(t, fake)

	tk, err := ch.Cook(context.Background(), rockRequest(1, 5))
	require.NoError(t, err)
	assert.Equal(t, StateBusy, ch.State())

	_, err = ch.Cook(context.Background(), rockRequest(2, 7))
	assert.ErrorIs(t, err, ErrBusy)

	fake.Release()
	assert.Equal(t, StatusSuccess, wait(t, tk).Status)
}

func TestChannel_CancelInterruptsEngine(t *testing.T) {
	fake := enginetest.New(nil)
	fake.Gate()
	ch, _ := openChannel(t, fake)

	tk, err := ch.Cook(context.Background(), rockRequest(1, 5))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return fake.CookCount("rock-1") == 1 }, time.Second, time.Millisecond)

	ch.Cancel(tk)
	o := wait(t, tk)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.True(t, errors.Is(o.Err, bridgeerr.ErrCancelled))
	assert.False(t, bridgeerr.IsFatal(o.Err))
	assert.Equal(t, []string{"rock-1"}, fake.Interrupted())
	require.Eventually(t, func() bool { return ch.State() == StateReady }, time.Second, time.Millisecond)
}

func TestChannel_CookFailure(t *testing.T) {
	fake := enginetest.New(func(string, engine.ParamSet) (engine.Geometry, error) {
		return engine.Geometry{}, errors.New("node error: bad topology")
	})
	ch, _ := openChannel(t, fake)

	tk, err := ch.Cook(context.Background(), rockRequest(1, 5))
	require.NoError(t, err)
	o := wait(t, tk)
	assert.Equal(t, StatusFailure, o.Status)
	assert.True(t, errors.Is(o.Err, bridgeerr.ErrCookFailure))
	assert.Contains(t, o.Err.Error(), "bad topology")
}

func TestChannel_SessionLostMidCook(t *testing.T) {
	fake := enginetest.New(nil)
	fake.Gate()
	ch, _ := openChannel(t, fake)

	tk, err := ch.Cook(context.Background(), rockRequest(1, 5))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return fake.CookCount("rock-1") == 1 }, time.Second, time.Millisecond)

	fake.LoseSession()
	o := wait(t, tk)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.True(t, bridgeerr.IsFatal(o.Err))
	assert.ErrorIs(t, o.Err, engine.ErrSessionLost)
	assert.Equal(t, StateDisconnected, ch.State(), "state is disconnected by the time the outcome is visible")
	assert.True(t, ch.Lost())

	_, ok := ch.Handle()
	assert.False(t, ok)
}

func TestChannel_CloseDuringCook(t *testing.T) {
	fake := enginetest.New(nil)
	fake.Gate()
	conn := enginetest.NewConnector(fake)
	ch := New(conn, testConfig())
	_, err := ch.Open(context.Background())
	require.NoError(t, err)

	tk, err := ch.Cook(context.Background(), rockRequest(1, 5))
	require.NoError(t, err)

	require.NoError(t, ch.Close(context.Background()))
	o, done := tk.Poll()
	require.True(t, done, "close resolves the in-flight ticket")
	assert.Equal(t, StatusCancelled, o.Status)
	assert.False(t, bridgeerr.IsFatal(o.Err))

	require.NoError(t, ch.Close(context.Background()), "close is idempotent")
	assert.Equal(t, 1, fake.Disconnects())
	assert.Equal(t, StateDisconnected, ch.State())
}

func TestChannel_DefinitionLoadedOncePerSession(t *testing.T) {
	fake := enginetest.New(nil)
	ch, _ := openChannel(t, fake)

	for seq := uint64(1); seq <= 3; seq++ {
		tk, err := ch.Cook(context.Background(), rockRequest(seq, float64(seq)))
		require.NoError(t, err)
		require.Equal(t, StatusSuccess, wait(t, tk).Status)
		require.Eventually(t, func() bool { return ch.State() == StateReady }, time.Second, time.Millisecond)
	}
	assert.Equal(t, 1, fake.Loads())
}

func TestChannel_Release(t *testing.T) {
	fake := enginetest.New(nil)
	ch, _ := openChannel(t, fake)

	require.NoError(t, ch.Release("rock-1"))
	require.Eventually(t, func() bool { return len(fake.Deleted()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"rock-1"}, fake.Deleted())

	require.NoError(t, ch.Close(context.Background()))
	assert.ErrorIs(t, ch.Release("rock-1"), ErrNotReady)
}

func TestChannel_SessionLostDuringRelease(t *testing.T) {
	fake := enginetest.New(nil)
	ch, _ := openChannel(t, fake)
	require.False(t, ch.Lost())

	fake.LoseSession()
	require.NoError(t, ch.Release("rock-1"))
	require.Eventually(t, ch.Lost, time.Second, time.Millisecond)
	assert.Equal(t, StateDisconnected, ch.State())

	_, err := ch.Cook(context.Background(), rockRequest(1, 5))
	assert.ErrorIs(t, err, ErrNotReady)

	_, err = ch.Open(context.Background())
	require.NoError(t, err)
	assert.False(t, ch.Lost(), "a new session clears the loss")
}

func TestTicket_PollBeforeDone(t *testing.T) {
	tk := newTicket(rockRequest(4, 1))
	_, done := tk.Poll()
	assert.False(t, done)

	assert.True(t, tk.resolve(Outcome{Status: StatusSuccess}))
	assert.False(t, tk.resolve(Outcome{Status: StatusFailure}), "a ticket resolves once")

	o, done := tk.Poll()
	require.True(t, done)
	assert.Equal(t, StatusSuccess, o.Status)
	assert.Equal(t, uint64(4), o.Seq)
	assert.Equal(t, "success", o.Status.String())
}
