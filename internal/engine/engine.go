package engine

import (
	"context"
	"errors"
)

// ErrSessionLost is returned by every Engine call once the underlying session
// has gone away. It is never retried by the caller.
var ErrSessionLost = errors.New("engine: session lost")

// ErrUnknownTicket is returned when polling or interrupting a ticket the
// engine does not know about.
var ErrUnknownTicket = errors.New("engine: unknown cook ticket")

// ErrUnknownDefinition is returned when a definition path cannot be resolved.
var ErrUnknownDefinition = errors.New("engine: unknown asset definition")

// Connector opens a new engine session.
type Connector interface {
	Connect(ctx context.Context) (Engine, error)
}

// ConnectorFunc adapts a plain function to the Connector interface.
type ConnectorFunc func(ctx context.Context) (Engine, error)

// Connect calls f(ctx).
func (f ConnectorFunc) Connect(ctx context.Context) (Engine, error) {
	return f(ctx)
}

// Engine is one live session with the procedural engine. Implementations are
// not required to be safe for concurrent use; the session channel issues every
// call from a single goroutine.
type Engine interface {
	// LoadDefinition resolves an asset library path into a reference usable
	// by Cook. Loading the same path twice returns an equal reference.
	LoadDefinition(ctx context.Context, path string) (DefinitionRef, error)

	// SetParameters replaces the parameter values of the engine node backing
	// instanceID, creating the node on first use. Names the engine does not
	// know are ignored.
	SetParameters(ctx context.Context, instanceID string, params ParamSet) error

	// Cook starts an asynchronous cook of the instance's node.
	Cook(ctx context.Context, instanceID string, def DefinitionRef) (Ticket, error)

	// PollCook reports the state of a cook started by Cook. It never blocks
	// waiting for completion.
	PollCook(ctx context.Context, ticket Ticket) (PollResult, error)

	// Interrupt asks the engine to abandon a running cook. The cook still has
	// to be polled to completion.
	Interrupt(ctx context.Context, ticket Ticket) error

	// DeleteInstance removes the engine node backing instanceID.
	DeleteInstance(ctx context.Context, instanceID string) error

	// Disconnect closes the session. Further calls return ErrSessionLost.
	Disconnect(ctx context.Context) error
}

// DefinitionRef identifies a loaded asset library inside a session.
type DefinitionRef struct {
	ID      string `json:"id"`
	Library string `json:"library"`
}

// Ticket identifies one cook.
type Ticket struct {
	ID         string `json:"id"`
	InstanceID string `json:"instance_id"`
}

// CookStatus is the state reported by PollCook.
type CookStatus string

const (
	CookPending CookStatus = "pending"
	CookSuccess CookStatus = "success"
	CookFailure CookStatus = "failure"
)

// Done reports whether the status is terminal.
func (s CookStatus) Done() bool {
	return s == CookSuccess || s == CookFailure
}

// PollResult is the answer to PollCook. Output is set on success and
// Diagnostic on failure.
type PollResult struct {
	Status     CookStatus  `json:"status"`
	Output     *CookOutput `json:"output,omitempty"`
	Diagnostic string      `json:"diagnostic,omitempty"`
}

// CookOutput is what a successful cook produced.
type CookOutput struct {
	Geometry Geometry `json:"geometry"`
	// Params are the node's parameter values after the cook, which may differ
	// from the ones sent if the asset adjusts them.
	Params ParamSet `json:"params,omitempty"`
}
