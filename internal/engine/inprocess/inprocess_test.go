package inprocess

import (
	"context"
	"testing"
	"time"

	"github.com/specialistvlad/cookbridge/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitCook polls until the cook leaves the pending state.
func waitCook(t *testing.T, e *Engine, ticket engine.Ticket) engine.PollResult {
	t.Helper()
	var (
		res engine.PollResult
		err error
	)
	require.Eventually(t, func() bool {
		res, err = e.PollCook(context.Background(), ticket)
		return err != nil || res.Status.Done()
	}, 2*time.Second, time.Millisecond)
	require.NoError(t, err)
	return res
}

func cookOnce(t *testing.T, e *Engine, library string, params engine.ParamSet) engine.PollResult {
	t.Helper()
	ctx := context.Background()
	ref, err := e.LoadDefinition(ctx, LibraryPrefix+library)
	require.NoError(t, err)
	require.NoError(t, e.SetParameters(ctx, "inst", params))
	ticket, err := e.Cook(ctx, "inst", ref)
	require.NoError(t, err)
	return waitCook(t, e, ticket)
}

func TestEngine_LoadDefinition(t *testing.T) {
	e := New()
	ctx := context.Background()

	a, err := e.LoadDefinition(ctx, "builtin/box")
	require.NoError(t, err)
	b, err := e.LoadDefinition(ctx, "builtin/box")
	require.NoError(t, err)
	assert.Equal(t, a, b, "loading twice returns the same reference")

	_, err = e.LoadDefinition(ctx, "builtin/teapot")
	assert.ErrorIs(t, err, engine.ErrUnknownDefinition)
}

func TestEngine_CookBox(t *testing.T) {
	res := cookOnce(t, New(), "box", engine.ParamSet{
		"size":     engine.FloatParm(2),
		"color":    engine.FloatParm(1, 0, 0, 1),
		"material": engine.StringParm("/mat/red"),
	})
	require.Equal(t, engine.CookSuccess, res.Status, res.Diagnostic)
	require.NotNil(t, res.Output)

	part := res.Output.Geometry.Parts[0]
	assert.Equal(t, 8, part.PointCount)
	assert.Len(t, part.FaceCounts, 6)
	p, ok := part.Attribute(engine.OwnerPoint, "P")
	require.True(t, ok)
	assert.Equal(t, -1.0, p.Floats[0])
	_, ok = part.Attribute(engine.OwnerDetail, "shop_materialpath")
	assert.True(t, ok)
	assert.Equal(t, engine.FloatParm(2), res.Output.Params["size"])
}

func TestEngine_GridWithZeroRowsHasNoPrimitives(t *testing.T) {
	res := cookOnce(t, New(), "grid", engine.ParamSet{"rows": engine.IntParm(0), "cols": engine.IntParm(4)})
	require.Equal(t, engine.CookSuccess, res.Status)
	assert.Equal(t, 0, res.Output.Geometry.PrimitiveCount())
	assert.Equal(t, 5, res.Output.Geometry.Parts[0].PointCount)
}

func TestEngine_SphereTopology(t *testing.T) {
	res := cookOnce(t, New(), "sphere", engine.ParamSet{"rad": engine.FloatParm(5), "divisions": engine.IntParm(4)})
	require.Equal(t, engine.CookSuccess, res.Status)

	part := res.Output.Geometry.Parts[0]
	assert.Equal(t, 2+3*8, part.PointCount)
	assert.Equal(t, 8+2*8+8, len(part.FaceCounts))
	p, _ := part.Attribute(engine.OwnerPoint, "P")
	assert.InDelta(t, 5.0, p.Floats[1], 1e-9, "north pole sits at +rad")
}

func TestEngine_GeneratorErrorIsCookFailure(t *testing.T) {
	res := cookOnce(t, New(), "sphere", engine.ParamSet{"divisions": engine.IntParm(1)})
	assert.Equal(t, engine.CookFailure, res.Status)
	assert.Contains(t, res.Diagnostic, "at least 2 divisions")
}

func TestEngine_Interrupt(t *testing.T) {
	started := make(chan struct{})
	e := New(WithGenerator("slow", func(ctx context.Context, _ engine.ParamSet) (engine.Geometry, error) {
		close(started)
		<-ctx.Done()
		return engine.Geometry{}, ctx.Err()
	}))
	ctx := context.Background()
	ref, err := e.LoadDefinition(ctx, "builtin/slow")
	require.NoError(t, err)
	ticket, err := e.Cook(ctx, "inst", ref)
	require.NoError(t, err)
	<-started

	res, err := e.PollCook(ctx, ticket)
	require.NoError(t, err)
	assert.Equal(t, engine.CookPending, res.Status)

	require.NoError(t, e.Interrupt(ctx, ticket))
	res = waitCook(t, e, ticket)
	assert.Equal(t, engine.CookFailure, res.Status)
	assert.Equal(t, "cook interrupted", res.Diagnostic)

	_, err = e.PollCook(ctx, ticket)
	assert.ErrorIs(t, err, engine.ErrUnknownTicket, "a completed ticket is forgotten")
}

func TestEngine_DisconnectEndsSession(t *testing.T) {
	e := New()
	ctx := context.Background()
	require.NoError(t, e.Disconnect(ctx))
	require.NoError(t, e.Disconnect(ctx), "disconnect is idempotent")

	_, err := e.LoadDefinition(ctx, "builtin/box")
	assert.ErrorIs(t, err, engine.ErrSessionLost)
	assert.ErrorIs(t, e.SetParameters(ctx, "x", nil), engine.ErrSessionLost)
}

func TestNewConnector_FreshSessions(t *testing.T) {
	c := NewConnector()
	a, err := c.Connect(context.Background())
	require.NoError(t, err)
	b, err := c.Connect(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, a, b)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Connect(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}
