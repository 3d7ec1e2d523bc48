// Package enginetest provides a scriptable in-memory engine for tests.
package enginetest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/specialistvlad/cookbridge/internal/engine"
)

// CookFunc produces the geometry of one cook from the instance's parameters.
type CookFunc func(instanceID string, params engine.ParamSet) (engine.Geometry, error)

// Engine is a fake engine session. The zero value is not usable; call New.
type Engine struct {
	mu sync.Mutex

	cookFn      CookFunc
	gated       bool
	lost        bool
	defs        map[string]engine.DefinitionRef
	params      map[string]engine.ParamSet
	cooks       map[string]*cook
	counts      map[string]int
	loads       int
	deleted     []string
	interrupted []string
	disconnects int
}

type cook struct {
	ticket      engine.Ticket
	params      engine.ParamSet
	released    bool
	interrupted bool
}

// New creates a fake engine that cooks with fn. A nil fn cooks Triangle.
func New(fn CookFunc) *Engine {
	if fn == nil {
		fn = Triangle
	}
	return &Engine{
		cookFn: fn,
		defs:   make(map[string]engine.DefinitionRef),
		params: make(map[string]engine.ParamSet),
		cooks:  make(map[string]*cook),
		counts: make(map[string]int),
	}
}

// Triangle cooks a single triangle whose size is the "rad" float parameter.
// The triangle's first point X coordinate equals rad.
func Triangle(_ string, params engine.ParamSet) (engine.Geometry, error) {
	rad := 1.0
	if p, ok := params["rad"]; ok && len(p.Floats) == 1 {
		rad = p.Floats[0]
	}
	return engine.Geometry{Parts: []engine.Part{{
		Name:       "tri",
		PointCount: 3,
		FaceCounts: []int{3},
		VertexList: []int{0, 1, 2},
		Attributes: []engine.Attribute{{
			Name: "P", Owner: engine.OwnerPoint, Storage: engine.StorageFloat, TupleSize: 3,
			Floats: []float64{rad, 0, 0, 0, rad, 0, 0, 0, rad},
		}},
	}}}, nil
}

// Gate holds every cook in the pending state until Release is called.
func (e *Engine) Gate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gated = true
}

// Release lets every cook started so far complete on its next poll and stops
// gating new cooks.
func (e *Engine) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gated = false
	for _, c := range e.cooks {
		c.released = true
	}
}

// LoseSession makes every further call fail with engine.ErrSessionLost until
// the engine is reconnected through a Connector.
func (e *Engine) LoseSession() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lost = true
}

// LastParams returns the parameters most recently set on instanceID.
func (e *Engine) LastParams(instanceID string) engine.ParamSet {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params[instanceID].Clone()
}

// CookCount returns how many cooks were started for instanceID.
func (e *Engine) CookCount(instanceID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts[instanceID]
}

// PendingCooks returns the number of cooks not yet polled to completion.
func (e *Engine) PendingCooks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cooks)
}

// Loads returns how many times LoadDefinition was called.
func (e *Engine) Loads() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loads
}

// Deleted returns the instances deleted so far.
func (e *Engine) Deleted() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.deleted...)
}

// Interrupted returns the instances whose cooks were interrupted.
func (e *Engine) Interrupted() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.interrupted...)
}

// Disconnects returns how many times Disconnect was called.
func (e *Engine) Disconnects() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disconnects
}

func (e *Engine) LoadDefinition(_ context.Context, path string) (engine.DefinitionRef, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lost {
		return engine.DefinitionRef{}, engine.ErrSessionLost
	}
	if path == "" {
		return engine.DefinitionRef{}, engine.ErrUnknownDefinition
	}
	e.loads++
	if ref, ok := e.defs[path]; ok {
		return ref, nil
	}
	ref := engine.DefinitionRef{ID: uuid.NewString(), Library: path}
	e.defs[path] = ref
	return ref, nil
}

func (e *Engine) SetParameters(_ context.Context, instanceID string, params engine.ParamSet) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lost {
		return engine.ErrSessionLost
	}
	e.params[instanceID] = params.Clone()
	return nil
}

func (e *Engine) Cook(_ context.Context, instanceID string, def engine.DefinitionRef) (engine.Ticket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lost {
		return engine.Ticket{}, engine.ErrSessionLost
	}
	if _, ok := e.defs[def.Library]; !ok {
		return engine.Ticket{}, fmt.Errorf("%w: %s", engine.ErrUnknownDefinition, def.Library)
	}
	t := engine.Ticket{ID: uuid.NewString(), InstanceID: instanceID}
	e.cooks[t.ID] = &cook{ticket: t, params: e.params[instanceID].Clone(), released: !e.gated}
	e.counts[instanceID]++
	return t, nil
}

func (e *Engine) PollCook(_ context.Context, t engine.Ticket) (engine.PollResult, error) {
	e.mu.Lock()
	if e.lost {
		e.mu.Unlock()
		return engine.PollResult{}, engine.ErrSessionLost
	}
	c, ok := e.cooks[t.ID]
	if !ok {
		e.mu.Unlock()
		return engine.PollResult{}, engine.ErrUnknownTicket
	}
	if !c.released {
		e.mu.Unlock()
		return engine.PollResult{Status: engine.CookPending}, nil
	}
	delete(e.cooks, t.ID)
	fn := e.cookFn
	e.mu.Unlock()

	if c.interrupted {
		return engine.PollResult{Status: engine.CookFailure, Diagnostic: "cook interrupted"}, nil
	}
	geo, err := fn(t.InstanceID, c.params)
	if err != nil {
		return engine.PollResult{Status: engine.CookFailure, Diagnostic: err.Error()}, nil
	}
	return engine.PollResult{
		Status: engine.CookSuccess,
		Output: &engine.CookOutput{Geometry: geo, Params: c.params},
	}, nil
}

func (e *Engine) Interrupt(_ context.Context, t engine.Ticket) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lost {
		return engine.ErrSessionLost
	}
	c, ok := e.cooks[t.ID]
	if !ok {
		return engine.ErrUnknownTicket
	}
	c.interrupted = true
	c.released = true
	e.interrupted = append(e.interrupted, t.InstanceID)
	return nil
}

func (e *Engine) DeleteInstance(_ context.Context, instanceID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lost {
		return engine.ErrSessionLost
	}
	delete(e.params, instanceID)
	e.deleted = append(e.deleted, instanceID)
	return nil
}

func (e *Engine) Disconnect(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disconnects++
	e.lost = true
	e.cooks = make(map[string]*cook)
	return nil
}

// ErrConnectRefused is returned by a Connector scripted to fail.
var ErrConnectRefused = errors.New("enginetest: connection refused")

// Connector hands out the same fake engine on every successful Connect.
type Connector struct {
	mu       sync.Mutex
	engine   *Engine
	failures int
	attempts int
	hold     chan struct{}
}

// NewConnector wraps e.
func NewConnector(e *Engine) *Connector {
	return &Connector{engine: e}
}

// FailNext makes the next n Connect calls fail with ErrConnectRefused.
func (c *Connector) FailNext(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = n
}

// HoldConnect makes Connect block until ReleaseConnect or until its context
// ends.
func (c *Connector) HoldConnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hold == nil {
		c.hold = make(chan struct{})
	}
}

// ReleaseConnect unblocks held Connect calls.
func (c *Connector) ReleaseConnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hold != nil {
		close(c.hold)
		c.hold = nil
	}
}

// Attempts returns the number of Connect calls made.
func (c *Connector) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Connect returns the wrapped engine with its session restored.
func (c *Connector) Connect(ctx context.Context) (engine.Engine, error) {
	c.mu.Lock()
	hold := c.hold
	c.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.failures > 0 {
		c.failures--
		return nil, ErrConnectRefused
	}
	c.engine.mu.Lock()
	c.engine.lost = false
	c.engine.defs = make(map[string]engine.DefinitionRef)
	c.engine.mu.Unlock()
	return c.engine, nil
}
