package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/specialistvlad/cookbridge/internal/ctxlog"
	"github.com/specialistvlad/cookbridge/internal/param"
	"github.com/specialistvlad/cookbridge/internal/resultstore"
)

var (
	// ErrUnknownInstance is returned for ids that are not registered.
	ErrUnknownInstance = errors.New("registry: unknown instance")
	// ErrDuplicateInstance is returned when registering a taken id.
	ErrDuplicateInstance = errors.New("registry: instance already registered")
	// ErrStale is returned by UpdateResult for results older than the newest
	// applied one.
	ErrStale = errors.New("registry: stale result")
)

// Option configures a Registry.
type Option func(*Registry)

// WithStore persists successes to s and seeds new instances from it.
func WithStore(s resultstore.Store) Option {
	return func(r *Registry) { r.store = s }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// Registry holds the placed asset instances. It is safe for concurrent use.
type Registry struct {
	store resultstore.Store
	now   func() time.Time

	mu        sync.RWMutex
	instances map[string]*AssetInstance
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		now:       time.Now,
		instances: make(map[string]*AssetInstance),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds inst and returns it as stored. The instance starts Dirty. A
// stored record for the same id and definition becomes its LastSuccess.
func (r *Registry) Register(ctx context.Context, inst AssetInstance) (AssetInstance, error) {
	if inst.ID == "" {
		return AssetInstance{}, fmt.Errorf("registry: instance id is required")
	}
	logger := ctxlog.FromContext(ctx).With("instance", inst.ID)

	a := &AssetInstance{
		ID:         inst.ID,
		Definition: inst.Definition,
		Params:     inst.Params,
		Dirty:      true,
		PlacedAt:   r.now(),
	}
	if r.store != nil {
		rec, ok, err := r.store.Load(ctx, inst.ID)
		switch {
		case err != nil:
			logger.Warn("Could not load stored result.", "error", err)
		case ok && rec.Definition == inst.Definition:
			a.LastSuccess = &CookResult{Kind: ResultSuccess, Mesh: rec.Mesh, Params: rec.Params, CookedAt: rec.StoredAt}
			a.Restored = true
			logger.Debug("Instance seeded from stored result.", "stored_at", rec.StoredAt)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[inst.ID]; ok {
		return AssetInstance{}, fmt.Errorf("%w: %s", ErrDuplicateInstance, inst.ID)
	}
	r.instances[inst.ID] = a
	return *a, nil
}

// Unregister removes id and its stored result. It reports whether id was
// registered.
func (r *Registry) Unregister(ctx context.Context, id string) bool {
	r.mu.Lock()
	_, ok := r.instances[id]
	delete(r.instances, id)
	r.mu.Unlock()

	if ok && r.store != nil {
		if err := r.store.Delete(ctx, id); err != nil {
			ctxlog.FromContext(ctx).Warn("Could not delete stored result.", "instance", id, "error", err)
		}
	}
	return ok
}

// UpdateResult applies a cook outcome to id.
//
// Results with a sequence number below AppliedSeq fail with ErrStale.
// Cancelled results change nothing. A failure is recorded next to the
// previous success, which stays visible.
func (r *Registry) UpdateResult(ctx context.Context, id string, res CookResult) error {
	if res.CookedAt.IsZero() {
		res.CookedAt = r.now()
	}

	r.mu.Lock()
	a, ok := r.instances[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownInstance, id)
	}
	if res.Seq < a.AppliedSeq {
		applied := a.AppliedSeq
		r.mu.Unlock()
		return fmt.Errorf("%w: seq %d is older than applied seq %d", ErrStale, res.Seq, applied)
	}

	var rec *resultstore.Record
	switch res.Kind {
	case ResultCancelled:
		r.mu.Unlock()
		return nil
	case ResultSuccess:
		a.LastSuccess = &res
		a.LastFailure = nil
		a.Restored = false
		rec = &resultstore.Record{
			InstanceID: id,
			Definition: a.Definition,
			Seq:        res.Seq,
			Params:     res.Params,
			Mesh:       res.Mesh,
			StoredAt:   res.CookedAt,
		}
	case ResultFailure:
		a.LastFailure = &res
	}
	a.AppliedSeq = res.Seq
	r.mu.Unlock()

	if rec != nil && r.store != nil {
		if err := r.store.Save(ctx, *rec); err != nil {
			ctxlog.FromContext(ctx).Warn("Could not store result.", "instance", id, "error", err)
		}
	}
	return nil
}

// Get returns a copy of the instance.
func (r *Registry) Get(id string) (AssetInstance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.instances[id]
	if !ok {
		return AssetInstance{}, false
	}
	return *a, true
}

// List returns every instance ordered by id.
func (r *Registry) List() []AssetInstance {
	r.mu.RLock()
	out := make([]AssetInstance, 0, len(r.instances))
	for _, a := range r.instances {
		out = append(out, *a)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len is the number of registered instances.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

// SetParameters replaces the parameter snapshot of id.
func (r *Registry) SetParameters(id string, params param.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.instances[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstance, id)
	}
	a.Params = params
	return nil
}

// MarkDirty sets the dirty flag of id.
func (r *Registry) MarkDirty(id string, dirty bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.instances[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstance, id)
	}
	a.Dirty = dirty
	return nil
}

// ByDefinition returns the ids of instances of the named definition.
func (r *Registry) ByDefinition(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, a := range r.instances {
		if a.Definition == name {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
