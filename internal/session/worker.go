package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/specialistvlad/cookbridge/internal/bridgeerr"
	"github.com/specialistvlad/cookbridge/internal/ctxlog"
	"github.com/specialistvlad/cookbridge/internal/engine"
)

// job is either a cook ticket or an instance release.
type job struct {
	ticket  *Ticket
	release string
}

// worker is the queue feeding one session's goroutine.
type worker struct {
	mu     sync.Mutex
	queue  []job
	wake   chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
}

func (w *worker) push(j job) {
	w.mu.Lock()
	w.queue = append(w.queue, j)
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// next blocks until a job is queued or ctx ends.
func (w *worker) next(ctx context.Context) (job, bool) {
	for {
		w.mu.Lock()
		if len(w.queue) > 0 {
			j := w.queue[0]
			w.queue = w.queue[1:]
			w.mu.Unlock()
			return j, true
		}
		w.mu.Unlock()

		select {
		case <-ctx.Done():
			return job{}, false
		case <-w.wake:
		}
	}
}

// drain resolves every queued cook as Cancelled.
func (w *worker) drain(detail string, fatal bool) {
	w.mu.Lock()
	queue := w.queue
	w.queue = nil
	w.mu.Unlock()
	for _, j := range queue {
		if j.ticket != nil {
			j.ticket.resolve(cancelled(j.ticket, detail, fatal))
		}
	}
}

func cancelled(t *Ticket, detail string, fatal bool) Outcome {
	b := bridgeerr.New(bridgeerr.KindCancelled).Op("cook").Instance(t.req.InstanceID).Detail("%s", detail)
	if fatal {
		b = b.Fatal().Cause(engine.ErrSessionLost)
	}
	return Outcome{Status: StatusCancelled, Err: b.Build()}
}

// run executes jobs until the session is closed or lost.
func (c *Channel) run(ctx context.Context, eng engine.Engine, w *worker) {
	defer close(w.done)
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Engine worker started.")
	refs := make(map[string]engine.DefinitionRef)

	for {
		j, ok := w.next(ctx)
		if !ok {
			w.drain("session closed", false)
			logger.Debug("Engine worker stopped.")
			return
		}

		if j.ticket == nil {
			if c.release(ctx, eng, j.release) {
				c.markLost(ctx, eng)
				w.drain("session lost", true)
				return
			}
			continue
		}

		outcome, lost := c.cook(ctx, eng, refs, j.ticket)
		if lost {
			// The channel is torn down before the ticket resolves so observers
			// of the outcome already see it disconnected.
			c.markLost(ctx, eng)
			j.ticket.resolve(outcome)
			w.drain("session lost", true)
			return
		}
		c.finish(j.ticket, outcome)
	}
}

func (c *Channel) release(ctx context.Context, eng engine.Engine, instanceID string) bool {
	err := eng.DeleteInstance(ctx, instanceID)
	switch {
	case err == nil:
		ctxlog.FromContext(ctx).Debug("Engine node released.", "instance", instanceID)
	case errors.Is(err, engine.ErrSessionLost):
		return true
	default:
		ctxlog.FromContext(ctx).Warn("Failed to release engine node.", "instance", instanceID, "error", err)
	}
	return false
}

// cook runs one ticket to completion. The bool reports session loss.
func (c *Channel) cook(ctx context.Context, eng engine.Engine, refs map[string]engine.DefinitionRef, t *Ticket) (Outcome, bool) {
	req := t.req
	logger := ctxlog.FromContext(ctx).With("instance", req.InstanceID, "seq", req.Seq)

	if t.cancelRequested() {
		return cancelled(t, "cancelled before start", false), false
	}

	ref, ok := refs[req.Definition.Library]
	if !ok {
		var err error
		ref, err = eng.LoadDefinition(ctx, req.Definition.Library)
		if err != nil {
			return c.failed(ctx, t, "load_definition", err)
		}
		refs[req.Definition.Library] = ref
		logger.Debug("Definition loaded.", "library", req.Definition.Library)
	}

	if err := eng.SetParameters(ctx, req.InstanceID, req.Params); err != nil {
		return c.failed(ctx, t, "set_parameters", err)
	}
	et, err := eng.Cook(ctx, req.InstanceID, ref)
	if err != nil {
		return c.failed(ctx, t, "cook", err)
	}
	logger.Debug("Engine cook started.", "ticket", et.ID)

	poll := time.NewTicker(c.cfg.PollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return cancelled(t, "session closed", false), false

		case <-t.cancel:
			logger.Debug("Interrupting cook.")
			if c.interrupt(ctx, eng, et) {
				return cancelled(t, "session lost", true), true
			}
			return cancelled(t, "cook cancelled", false), false

		case <-poll.C:
			res, err := eng.PollCook(ctx, et)
			if err != nil {
				return c.failed(ctx, t, "poll_cook", err)
			}
			switch res.Status {
			case engine.CookSuccess:
				logger.Debug("Cook succeeded.")
				return Outcome{Status: StatusSuccess, Output: res.Output}, false
			case engine.CookFailure:
				logger.Warn("Cook failed.", "diagnostic", res.Diagnostic)
				return Outcome{
					Status: StatusFailure,
					Err: bridgeerr.New(bridgeerr.KindCookFailure).
						Op("cook").
						Instance(req.InstanceID).
						Detail("%s", res.Diagnostic).
						Build(),
				}, false
			}
		}
	}
}

// interrupt asks the engine to stop et and polls until it settles or the
// grace period expires. It reports whether the session was lost.
func (c *Channel) interrupt(ctx context.Context, eng engine.Engine, et engine.Ticket) bool {
	if err := eng.Interrupt(ctx, et); err != nil {
		if errors.Is(err, engine.ErrSessionLost) {
			return true
		}
		if !errors.Is(err, engine.ErrUnknownTicket) {
			ctxlog.FromContext(ctx).Warn("Engine refused interrupt.", "error", err)
		}
	}

	grace := time.NewTimer(c.cfg.InterruptGrace)
	defer grace.Stop()
	poll := time.NewTicker(c.cfg.PollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-grace.C:
			ctxlog.FromContext(ctx).Warn("Engine did not settle within interrupt grace period.", "grace", c.cfg.InterruptGrace)
			return false
		case <-poll.C:
			res, err := eng.PollCook(ctx, et)
			if errors.Is(err, engine.ErrSessionLost) {
				return true
			}
			if err != nil || res.Status.Done() {
				return false
			}
		}
	}
}

// failed builds the outcome of an engine call error and reports session
// loss.
func (c *Channel) failed(ctx context.Context, t *Ticket, op string, err error) (Outcome, bool) {
	switch {
	case ctx.Err() != nil:
		return cancelled(t, "session closed", false), false
	case errors.Is(err, engine.ErrSessionLost):
		return cancelled(t, "session lost", true), true
	}
	ctxlog.FromContext(ctx).Warn("Engine call failed.", "op", op, "instance", t.req.InstanceID, "error", err)
	return Outcome{
		Status: StatusFailure,
		Err:    bridgeerr.New(bridgeerr.KindCookFailure).Op(op).Instance(t.req.InstanceID).Cause(err).Build(),
	}, false
}
