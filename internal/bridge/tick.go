package bridge

import (
	"context"
	"errors"

	"github.com/specialistvlad/cookbridge/internal/bridgeerr"
	"github.com/specialistvlad/cookbridge/internal/ctxlog"
	"github.com/specialistvlad/cookbridge/internal/param"
	"github.com/specialistvlad/cookbridge/internal/registry"
	"github.com/specialistvlad/cookbridge/internal/scheduler"
	"github.com/specialistvlad/cookbridge/internal/session"
)

// Tick runs one host update: it applies finished cooks, submits the next
// one, and recovers a lost session. It never waits on the engine. It returns
// the number of completions applied.
func (b *Bridge) Tick(ctx context.Context) int {
	b.mu.Lock()
	var notices []notice
	comps := b.sched.Tick(ctx)
	for _, c := range comps {
		notices = append(notices, b.apply(ctx, c)...)
	}
	if !b.sched.Halted() && !b.sched.Busy() && b.channel.Lost() {
		// Lost while no cook was in flight, so no ticket carried it.
		b.sched.Halt(ctx)
	}
	if b.sched.Halted() && !b.lost && !b.closed {
		notices = append(notices, b.reconnectAfterLoss(ctx)...)
	}
	b.metrics.SetSizes(b.reg.Len(), b.sched.Queued())
	b.mu.Unlock()

	b.notify(notices)
	return len(comps)
}

// reconnect is an automatic reopen running off the host loop.
type reconnect struct {
	done   chan error
	cancel context.CancelFunc
}

// stop cancels the reopen and waits for it to return or ctx to end.
func (r *reconnect) stop(ctx context.Context) {
	r.cancel()
	select {
	case <-r.done:
	case <-ctx.Done():
	}
}

// reconnectAfterLoss starts a reopen after a session loss and, on later
// ticks, applies its result. It must be called with b.mu held.
func (b *Bridge) reconnectAfterLoss(ctx context.Context) []notice {
	logger := ctxlog.FromContext(ctx)
	if b.reconnect == nil {
		b.metrics.SessionEvent("lost")
		logger.Warn("Engine session lost, reconnecting.")
		rctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		r := &reconnect{done: make(chan error, 1), cancel: cancel}
		b.reconnect = r
		go func() {
			defer cancel()
			_, err := b.channel.Open(rctx)
			r.done <- err
		}()
		return nil
	}

	var err error
	select {
	case err = <-b.reconnect.done:
	default:
		return nil
	}
	b.reconnect = nil
	if err != nil {
		b.metrics.SessionEvent("open_failed")
		b.lost = true
		logger.Error("Could not reconnect to engine.", "error", err)
		return []notice{sessionLost(err)}
	}
	b.metrics.SessionEvent("opened")
	b.rebind(ctx)
	return nil
}

// rebind requeues the instances a lost session failed. It must be called
// with b.mu held.
func (b *Bridge) rebind(ctx context.Context) {
	b.sched.Rebind(ctx)
	for _, inst := range b.reg.List() {
		if st, ok := b.sched.State(inst.ID); ok && st == scheduler.StateDirty {
			_ = b.reg.MarkDirty(inst.ID, true)
		}
	}
}

// apply hands one completion to the registry. It must be called with b.mu
// held.
func (b *Bridge) apply(ctx context.Context, c scheduler.Completion) []notice {
	logger := ctxlog.FromContext(ctx).With("instance", c.InstanceID, "seq", c.Seq)
	o := c.Outcome

	var res registry.CookResult
	switch o.Status {
	case session.StatusSuccess:
		r, err := b.success(ctx, c)
		if err != nil {
			b.metrics.TranslationFailed()
			logger.Warn("Cook output could not be translated.", "error", err)
			res = registry.Failure(c.Seq, err)
		} else {
			res = r
		}
	case session.StatusFailure:
		res = registry.Failure(c.Seq, o.Err)
	case session.StatusCancelled:
		res = registry.Cancelled(c.Seq)
	}

	err := b.reg.UpdateResult(ctx, c.InstanceID, res)
	switch {
	case errors.Is(err, registry.ErrStale):
		b.metrics.ObserveCook("stale", o.Duration)
		logger.Debug("Stale result rejected.", "error", err)
		return nil
	case errors.Is(err, registry.ErrUnknownInstance):
		logger.Debug("Result for a removed instance dropped.")
		return nil
	case err != nil:
		logger.Error("Could not apply result.", "error", err)
		return nil
	}
	if st, ok := b.sched.State(c.InstanceID); ok {
		_ = b.reg.MarkDirty(c.InstanceID, st == scheduler.StateDirty)
	}

	switch res.Kind {
	case registry.ResultSuccess:
		b.metrics.ObserveCook("success", o.Duration)
		logger.Info("🧱 Cook applied.", "triangles", res.Mesh.TriangleCount(), "duration", o.Duration)
		return []notice{assetUpdated(c.InstanceID, res.Mesh)}
	case registry.ResultFailure:
		b.metrics.ObserveCook("failure", o.Duration)
		logger.Warn("Cook failed, keeping last good result.", "error", res.Err)
		return []notice{cookFailed(c.InstanceID, res.Diagnostic())}
	default:
		b.metrics.ObserveCook("cancelled", o.Duration)
		if c.Fatal {
			logger.Warn("Cook cancelled by session loss.")
		}
		return nil
	}
}

// success translates a successful cook into a registry result.
func (b *Bridge) success(ctx context.Context, c scheduler.Completion) (registry.CookResult, error) {
	out := c.Outcome.Output
	if out == nil {
		return registry.CookResult{}, bridgeerr.New(bridgeerr.KindTranslation).
			Op("translate").
			Instance(c.InstanceID).
			Detail("engine reported success without output").
			Build()
	}
	mesh, err := b.translator.Translate(ctx, out.Geometry)
	if err != nil {
		return registry.CookResult{}, err
	}

	params := param.Snapshot{}
	if inst, ok := b.reg.Get(c.InstanceID); ok {
		if def, err := b.lib.Get(inst.Definition); err == nil {
			var report param.Report
			params, report = def.Marshaller.FromEngine(ctx, out.Params)
			b.metrics.Marshalled(len(report.Dropped), 0)
		}
	}
	return registry.Success(c.Seq, mesh, params), nil
}

// prepare builds the request for id from its newest snapshot. The scheduler
// calls it from Tick, with b.mu already held.
func (b *Bridge) prepare(ctx context.Context, id string) (session.Request, error) {
	inst, ok := b.reg.Get(id)
	if !ok {
		return session.Request{}, registry.ErrUnknownInstance
	}
	def, err := b.lib.Get(inst.Definition)
	if err != nil {
		return session.Request{}, err
	}
	params, report := def.Marshaller.ToEngine(ctx, inst.Params)
	b.metrics.Marshalled(len(report.Dropped), len(report.Clamped))
	return session.Request{
		Definition: session.Definition{Name: def.Name, Library: def.Library},
		Params:     params,
	}, nil
}
