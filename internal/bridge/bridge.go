package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/specialistvlad/cookbridge/internal/bridgeerr"
	"github.com/specialistvlad/cookbridge/internal/ctxlog"
	"github.com/specialistvlad/cookbridge/internal/definition"
	"github.com/specialistvlad/cookbridge/internal/engine"
	"github.com/specialistvlad/cookbridge/internal/geometry"
	"github.com/specialistvlad/cookbridge/internal/metrics"
	"github.com/specialistvlad/cookbridge/internal/param"
	"github.com/specialistvlad/cookbridge/internal/registry"
	"github.com/specialistvlad/cookbridge/internal/resultstore"
	"github.com/specialistvlad/cookbridge/internal/scheduler"
	"github.com/specialistvlad/cookbridge/internal/session"
	"github.com/zclconf/go-cty/cty"
)

// Options wires a Bridge.
type Options struct {
	Connector  engine.Connector
	Session    session.Config
	Library    *definition.Library
	Translator geometry.Options
	// Store is optional. The bridge does not close it.
	Store resultstore.Store
	// Metrics is optional.
	Metrics  *metrics.Metrics
	Listener Listener
}

// Bridge connects the host scene to the engine. All methods are safe for
// concurrent use.
type Bridge struct {
	lib        *definition.Library
	channel    *session.Channel
	sched      *scheduler.Scheduler
	reg        *registry.Registry
	translator *geometry.Translator
	listener   Listener
	metrics    *metrics.Metrics

	mu sync.Mutex
	// lost is set once OnSessionLost has been raised, until Reconnect.
	lost bool
	// reconnect is the automatic reopen in flight after a loss, if any.
	reconnect *reconnect
	closed    bool
}

// New wires the components. It does not connect; call Open.
func New(opts Options) (*Bridge, error) {
	if opts.Connector == nil {
		return nil, errors.New("bridge: a connector is required")
	}
	if opts.Library == nil {
		return nil, errors.New("bridge: a definition library is required")
	}
	listener := opts.Listener
	if listener == nil {
		listener = ListenerFuncs{}
	}

	var regOpts []registry.Option
	if opts.Store != nil {
		regOpts = append(regOpts, registry.WithStore(opts.Store))
	}
	b := &Bridge{
		lib:        opts.Library,
		channel:    session.New(opts.Connector, opts.Session),
		reg:        registry.New(regOpts...),
		translator: geometry.NewTranslator(opts.Translator),
		listener:   listener,
		metrics:    opts.Metrics,
	}
	b.sched = scheduler.New(b.channel, scheduler.PrepareFunc(b.prepare))
	return b, nil
}

// Open connects to the engine. Exhausted retries are reported to the
// Listener as a lost session and returned.
func (b *Bridge) Open(ctx context.Context) error {
	b.mu.Lock()
	err := b.open(ctx)
	var notices []notice
	if err != nil && !b.lost {
		b.lost = true
		notices = append(notices, sessionLost(err))
	}
	b.mu.Unlock()
	b.notify(notices)
	return err
}

// open must be called with b.mu held.
func (b *Bridge) open(ctx context.Context) error {
	if _, err := b.channel.Open(ctx); err != nil {
		b.metrics.SessionEvent("open_failed")
		return err
	}
	b.metrics.SessionEvent("opened")
	return nil
}

// Reconnect opens a new session after a loss and requeues every instance the
// loss failed. It blocks for the full retry schedule.
func (b *Bridge) Reconnect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reconnect != nil {
		return bridgeerr.New(bridgeerr.KindConnection).Op("reconnect").Detail("automatic reconnect in progress").Build()
	}
	b.closed = false
	if err := b.open(ctx); err != nil {
		return err
	}
	b.lost = false
	b.rebind(ctx)
	return nil
}

// OnInstancePlaced registers a new instance of the named definition. params
// are laid over the definition's defaults. A stored result, if any, is
// reported right away.
func (b *Bridge) OnInstancePlaced(ctx context.Context, id, definitionName string, params param.Snapshot) error {
	def, err := b.lib.Get(definitionName)
	if err != nil {
		return fmt.Errorf("place %s: %w", id, err)
	}

	b.mu.Lock()
	inst, err := b.reg.Register(ctx, registry.AssetInstance{
		ID:         id,
		Definition: def.Name,
		Params:     def.Schema.Defaults().Merge(params),
	})
	if err != nil {
		b.mu.Unlock()
		return fmt.Errorf("place %s: %w", id, err)
	}
	b.sched.Track(id)
	b.metrics.SetSizes(b.reg.Len(), b.sched.Queued())
	b.mu.Unlock()

	ctxlog.FromContext(ctx).Info("Instance placed.", "instance", id, "definition", def.Name, "restored", inst.Restored)
	if inst.Restored {
		b.notify([]notice{assetUpdated(id, inst.Mesh())})
	}
	return nil
}

// OnParameterChanged stages one parameter edit. Names the definition does not
// declare are dropped with a logged diagnostic; they never fail the call.
func (b *Bridge) OnParameterChanged(ctx context.Context, id, name string, value cty.Value) error {
	logger := ctxlog.FromContext(ctx).With("instance", id, "parameter", name)

	b.mu.Lock()
	defer b.mu.Unlock()
	inst, ok := b.reg.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", registry.ErrUnknownInstance, id)
	}
	def, err := b.lib.Get(inst.Definition)
	if err != nil {
		return fmt.Errorf("edit %s: %w", id, err)
	}
	if _, ok := def.Schema.Lookup(name); !ok {
		diag := bridgeerr.New(bridgeerr.KindMarshal).
			Op("to_engine").
			Instance(id).
			Param(name).
			Detail("unknown parameter for asset %q", def.Name).
			Build()
		logger.Warn("Dropping parameter edit.", "error", diag)
		b.metrics.Marshalled(1, 0)
		return nil
	}
	if inst.Params.Holds(name, value) {
		logger.Debug("Parameter unchanged, no cook needed.")
		return nil
	}

	if err := b.reg.SetParameters(id, inst.Params.With(name, value)); err != nil {
		return err
	}
	if err := b.reg.MarkDirty(id, true); err != nil {
		return err
	}
	if err := b.sched.Edit(id); err != nil {
		return err
	}
	logger.Debug("Parameter staged.")
	return nil
}

// OnInstanceRemoved forgets an instance. A cook in flight for it is
// cancelled and its result discarded; the call does not wait for it.
func (b *Bridge) OnInstanceRemoved(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sched.Forget(id)
	if !b.reg.Unregister(ctx, id) {
		return fmt.Errorf("%w: %s", registry.ErrUnknownInstance, id)
	}
	if err := b.channel.Release(id); err != nil && !errors.Is(err, session.ErrNotReady) {
		ctxlog.FromContext(ctx).Warn("Could not release engine node.", "instance", id, "error", err)
	}
	b.metrics.SetSizes(b.reg.Len(), b.sched.Queued())
	ctxlog.FromContext(ctx).Info("Instance removed.", "instance", id)
	return nil
}

// ReloadDefinitions re-reads the definition manifests and recooks every
// instance of a definition that changed. It returns the changed names.
func (b *Bridge) ReloadDefinitions(ctx context.Context) ([]string, error) {
	changed, err := b.lib.Reload(ctx)
	if err != nil {
		return nil, fmt.Errorf("reload definitions: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, name := range changed {
		ids := b.reg.ByDefinition(name)
		for _, id := range ids {
			_ = b.reg.MarkDirty(id, true)
		}
		n += b.sched.Invalidate(ids...)
	}
	if n > 0 {
		ctxlog.FromContext(ctx).Info("Definitions changed, recooking instances.", "definitions", changed, "instances", n)
	}
	return changed, nil
}

// Instance returns the registry's view of id.
func (b *Bridge) Instance(id string) (registry.AssetInstance, bool) {
	return b.reg.Get(id)
}

// Instances returns every instance ordered by id.
func (b *Bridge) Instances() []registry.AssetInstance {
	return b.reg.List()
}

// Idle reports whether nothing is cooking, waiting to cook or waiting on a
// new session.
func (b *Bridge) Idle() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.sched.Busy() && b.sched.Queued() == 0 && !b.sched.Halted() && b.reconnect == nil
}

// SessionState returns the state of the engine session.
func (b *Bridge) SessionState() session.State {
	return b.channel.State()
}

// Close stops any automatic reconnect and closes the engine session. The
// in-flight cook, if any, resolves as Cancelled and is dropped.
func (b *Bridge) Close(ctx context.Context) error {
	b.mu.Lock()
	r := b.reconnect
	b.reconnect = nil
	b.closed = true
	b.mu.Unlock()
	if r != nil {
		r.stop(ctx)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.channel.Close(ctx)
	b.metrics.SessionEvent("closed")
	return err
}

func (b *Bridge) notify(notices []notice) {
	for _, n := range notices {
		n(b.listener)
	}
}
