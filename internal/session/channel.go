package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/specialistvlad/cookbridge/internal/bridgeerr"
	"github.com/specialistvlad/cookbridge/internal/ctxlog"
	"github.com/specialistvlad/cookbridge/internal/engine"
)

// ErrBusy is returned by Cook while another cook is in flight.
var ErrBusy = errors.New("session: a cook is already in flight")

// ErrNotReady is returned by Cook and Release on a channel that is not open.
var ErrNotReady = errors.New("session: channel is not open")

// State is the lifecycle state of a Channel.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateReady
	StateBusy
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateBusy:
		return "busy"
	}
	return "unknown"
}

// Config tunes a Channel. Zero fields take the defaults of DefaultConfig.
type Config struct {
	Transport      string
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	PollInterval   time.Duration
	InterruptGrace time.Duration
}

// DefaultConfig returns the default channel settings.
func DefaultConfig() Config {
	return Config{
		Transport:      "inprocess",
		MaxAttempts:    5,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		PollInterval:   10 * time.Millisecond,
		InterruptGrace: 2 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Transport == "" {
		c.Transport = d.Transport
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.InterruptGrace <= 0 {
		c.InterruptGrace = d.InterruptGrace
	}
	return c
}

// Handle describes the live connection.
type Handle struct {
	ID        string
	Transport string
	OpenedAt  time.Time
}

// Channel is the single connection to the engine. All methods are safe for
// concurrent use.
type Channel struct {
	connector engine.Connector
	cfg       Config

	mu      sync.Mutex
	state   State
	eng     engine.Engine
	handle  Handle
	current *Ticket
	worker  *worker
	// lost is set when the engine dropped the session and cleared by the
	// next successful Open.
	lost bool
}

// New creates a disconnected channel.
func New(connector engine.Connector, cfg Config) *Channel {
	return &Channel{connector: connector, cfg: cfg.withDefaults()}
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Lost reports whether the engine dropped the session since the last
// successful Open. It also covers losses seen outside a cook, such as while
// releasing a node.
func (c *Channel) Lost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lost
}

// Handle returns the live connection handle. The bool is false when the
// channel is not open.
func (c *Channel) Handle() (Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle, c.eng != nil
}

// Open connects to the engine, retrying with exponential backoff up to
// MaxAttempts times. Opening an open channel returns its current handle.
func (c *Channel) Open(ctx context.Context) (Handle, error) {
	logger := ctxlog.FromContext(ctx)

	c.mu.Lock()
	switch c.state {
	case StateReady, StateBusy:
		h := c.handle
		c.mu.Unlock()
		return h, nil
	case StateConnecting:
		c.mu.Unlock()
		return Handle{}, bridgeerr.New(bridgeerr.KindConnection).Op("open").Detail("already connecting").Build()
	}
	c.state = StateConnecting
	c.mu.Unlock()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff

	attempt := 0
	eng, err := backoff.Retry(ctx, func() (engine.Engine, error) {
		attempt++
		logger.Debug("Connecting to engine.", "attempt", attempt, "transport", c.cfg.Transport)
		return c.connector.Connect(ctx)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.cfg.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("Engine connection attempt failed, retrying.", "attempt", attempt, "retry_in", next, "error", err)
		}),
	)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		logger.Error("Giving up on engine connection.", "attempts", attempt, "error", err)
		return Handle{}, bridgeerr.New(bridgeerr.KindConnection).
			Op("open").
			Detail("gave up after %d attempts", attempt).
			Cause(err).
			Build()
	}

	h := Handle{ID: newHandleID(), Transport: c.cfg.Transport, OpenedAt: time.Now()}
	wctx, cancel := context.WithCancel(context.WithoutCancel(ctxlog.With(ctx, "session", h.ID)))
	w := &worker{wake: make(chan struct{}, 1), done: make(chan struct{}), cancel: cancel}

	c.mu.Lock()
	c.state = StateReady
	c.eng = eng
	c.handle = h
	c.worker = w
	c.lost = false
	c.mu.Unlock()

	go c.run(wctx, eng, w)
	logger.Info("🔌 Engine session opened.", "session", h.ID, "transport", h.Transport, "attempts", attempt)
	return h, nil
}

func newHandleID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// Cook submits req to the worker. It fails with ErrBusy while another ticket
// is unresolved and with ErrNotReady when the channel is not open.
func (c *Channel) Cook(ctx context.Context, req Request) (*Ticket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateBusy:
		return nil, ErrBusy
	case StateReady:
	default:
		return nil, ErrNotReady
	}

	t := newTicket(req)
	c.current = t
	c.state = StateBusy
	c.worker.push(job{ticket: t})
	ctxlog.FromContext(ctx).Debug("Cook submitted.", "instance", req.InstanceID, "seq", req.Seq, "definition", req.Definition.Name)
	return t, nil
}

// Cancel asks for t to be abandoned. The ticket still resolves, as
// Cancelled, once the engine has settled or the grace period ran out.
func (c *Channel) Cancel(t *Ticket) {
	if t != nil {
		t.requestCancel()
	}
}

// Release queues deletion of the engine node backing instanceID.
func (c *Channel) Release(instanceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.worker == nil {
		return ErrNotReady
	}
	c.worker.push(job{release: instanceID})
	return nil
}

// Close resolves any in-flight ticket as Cancelled and releases the
// connection. Closing a closed channel is a no-op.
func (c *Channel) Close(ctx context.Context) error {
	c.mu.Lock()
	w, eng, cur := c.worker, c.eng, c.current
	c.worker, c.eng, c.current = nil, nil, nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if w == nil {
		return nil
	}
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Closing engine session.")

	w.cancel()
	select {
	case <-w.done:
	case <-ctx.Done():
		logger.Warn("Engine worker did not stop before close deadline.")
	}
	if cur != nil {
		cur.resolve(Outcome{Status: StatusCancelled, Err: bridgeerr.Cancelled(cur.req.InstanceID, "session closed")})
	}

	if err := eng.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect engine: %w", err)
	}
	logger.Info("🔌 Engine session closed.")
	return nil
}

// finish resolves t and returns the channel to Ready if t was current.
func (c *Channel) finish(t *Ticket, o Outcome) {
	t.resolve(o)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == t {
		c.current = nil
		if c.state == StateBusy {
			c.state = StateReady
		}
	}
}

// markLost tears down the session after the engine reported it gone.
func (c *Channel) markLost(ctx context.Context, eng engine.Engine) {
	c.mu.Lock()
	if c.eng == eng {
		c.eng = nil
		c.worker = nil
		c.current = nil
		c.state = StateDisconnected
		c.lost = true
	}
	c.mu.Unlock()
	ctxlog.FromContext(ctx).Error("Engine session lost.")
	if err := eng.Disconnect(context.WithoutCancel(ctx)); err != nil {
		ctxlog.FromContext(ctx).Debug("Disconnect after session loss failed.", "error", err)
	}
}
