// Package inprocess implements an engine session that runs procedural
// generators inside the host process.
//
// Each cook runs on its own goroutine, so the session behaves like a real
// asynchronous engine: Cook returns a ticket immediately and PollCook reports
// progress without blocking.
package inprocess

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/specialistvlad/cookbridge/internal/ctxlog"
	"github.com/specialistvlad/cookbridge/internal/engine"
)

// LibraryPrefix marks library paths resolved to registered generators.
const LibraryPrefix = "builtin/"

// Generator produces geometry from parameters. It must return promptly once
// ctx is cancelled.
type Generator func(ctx context.Context, params engine.ParamSet) (engine.Geometry, error)

// Option configures an Engine.
type Option func(*Engine)

// WithGenerator registers g under name, replacing any existing generator.
func WithGenerator(name string, g Generator) Option {
	return func(e *Engine) {
		e.generators[name] = g
	}
}

// Engine is an in-process engine session.
type Engine struct {
	mu         sync.Mutex
	generators map[string]Generator
	defs       map[string]engine.DefinitionRef
	nodes      map[string]engine.ParamSet
	jobs       map[string]*job
	closed     bool
	wg         sync.WaitGroup
}

type job struct {
	done   chan struct{}
	cancel context.CancelFunc
	result engine.PollResult
}

// New creates a session with the built-in generators plus any options.
func New(opts ...Option) *Engine {
	e := &Engine{
		generators: map[string]Generator{
			"box":    Box,
			"grid":   Grid,
			"sphere": Sphere,
		},
		defs:  make(map[string]engine.DefinitionRef),
		nodes: make(map[string]engine.ParamSet),
		jobs:  make(map[string]*job),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewConnector returns a connector that opens a fresh session per Connect.
func NewConnector(opts ...Option) engine.Connector {
	return engine.ConnectorFunc(func(ctx context.Context) (engine.Engine, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ctxlog.FromContext(ctx).Debug("Opening in-process engine session.")
		return New(opts...), nil
	})
}

func (e *Engine) LoadDefinition(ctx context.Context, path string) (engine.DefinitionRef, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return engine.DefinitionRef{}, engine.ErrSessionLost
	}
	if ref, ok := e.defs[path]; ok {
		return ref, nil
	}
	name := strings.TrimPrefix(path, LibraryPrefix)
	if _, ok := e.generators[name]; !ok {
		return engine.DefinitionRef{}, fmt.Errorf("%w: %s", engine.ErrUnknownDefinition, path)
	}
	ref := engine.DefinitionRef{ID: uuid.NewString(), Library: name}
	e.defs[path] = ref
	ctxlog.FromContext(ctx).Debug("Definition loaded.", "path", path, "ref", ref.ID)
	return ref, nil
}

func (e *Engine) SetParameters(_ context.Context, instanceID string, params engine.ParamSet) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return engine.ErrSessionLost
	}
	e.nodes[instanceID] = params.Clone()
	return nil
}

func (e *Engine) Cook(ctx context.Context, instanceID string, def engine.DefinitionRef) (engine.Ticket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return engine.Ticket{}, engine.ErrSessionLost
	}
	gen, ok := e.generators[def.Library]
	if !ok {
		return engine.Ticket{}, fmt.Errorf("%w: %s", engine.ErrUnknownDefinition, def.Library)
	}

	t := engine.Ticket{ID: uuid.NewString(), InstanceID: instanceID}
	params := e.nodes[instanceID].Clone()
	// The cook outlives the caller's context; it ends on Interrupt or Disconnect.
	cookCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	j := &job{done: make(chan struct{}), cancel: cancel}
	e.jobs[t.ID] = j

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(j.done)
		defer cancel()

		geo, err := gen(cookCtx, params)
		switch {
		case errors.Is(err, context.Canceled):
			j.result = engine.PollResult{Status: engine.CookFailure, Diagnostic: "cook interrupted"}
		case err != nil:
			j.result = engine.PollResult{Status: engine.CookFailure, Diagnostic: err.Error()}
		default:
			j.result = engine.PollResult{
				Status: engine.CookSuccess,
				Output: &engine.CookOutput{Geometry: geo, Params: params},
			}
		}
	}()
	return t, nil
}

func (e *Engine) PollCook(_ context.Context, t engine.Ticket) (engine.PollResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return engine.PollResult{}, engine.ErrSessionLost
	}
	j, ok := e.jobs[t.ID]
	if !ok {
		return engine.PollResult{}, engine.ErrUnknownTicket
	}
	select {
	case <-j.done:
		delete(e.jobs, t.ID)
		return j.result, nil
	default:
		return engine.PollResult{Status: engine.CookPending}, nil
	}
}

func (e *Engine) Interrupt(_ context.Context, t engine.Ticket) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return engine.ErrSessionLost
	}
	j, ok := e.jobs[t.ID]
	if !ok {
		return engine.ErrUnknownTicket
	}
	j.cancel()
	return nil
}

func (e *Engine) DeleteInstance(_ context.Context, instanceID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return engine.ErrSessionLost
	}
	delete(e.nodes, instanceID)
	return nil
}

// Disconnect cancels running cooks and waits for their goroutines.
func (e *Engine) Disconnect(_ context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	for _, j := range e.jobs {
		j.cancel()
	}
	e.jobs = nil
	e.mu.Unlock()

	e.wg.Wait()
	return nil
}
