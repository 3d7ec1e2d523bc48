package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/specialistvlad/cookbridge/internal/engine"
)

// Event names of the wire protocol.
const (
	EventRequest = "hapi"
	EventReply   = "hapi:reply"
)

// Operation names carried in Request.Op.
const (
	OpLoadDefinition = "load_definition"
	OpSetParameters  = "set_parameters"
	OpCook           = "cook"
	OpPollCook       = "poll_cook"
	OpInterrupt      = "interrupt"
	OpDeleteInstance = "delete_instance"
	OpDisconnect     = "disconnect"
)

// Error codes carried in Reply.Code.
const (
	CodeSessionLost       = "session_lost"
	CodeUnknownTicket     = "unknown_ticket"
	CodeUnknownDefinition = "unknown_definition"
	CodeBadRequest        = "bad_request"
	CodeInternal          = "internal"
)

// Request is one engine call.
type Request struct {
	ID   string          `json:"id"`
	Op   string          `json:"op"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Reply answers the Request with the same ID.
type Reply struct {
	ID     string          `json:"id"`
	OK     bool            `json:"ok"`
	Code   string          `json:"code,omitempty"`
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

type pathArgs struct {
	Path string `json:"path"`
}

type instanceArgs struct {
	InstanceID string          `json:"instance_id"`
	Params     engine.ParamSet `json:"params,omitempty"`
}

type cookArgs struct {
	InstanceID string               `json:"instance_id"`
	Definition engine.DefinitionRef `json:"definition"`
}

type ticketArgs struct {
	Ticket engine.Ticket `json:"ticket"`
}

// recode converts a decoded socket.io payload (maps and slices) into out.
func recode(in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// codeFor maps an engine error to its wire code.
func codeFor(err error) string {
	switch {
	case errors.Is(err, engine.ErrSessionLost):
		return CodeSessionLost
	case errors.Is(err, engine.ErrUnknownTicket):
		return CodeUnknownTicket
	case errors.Is(err, engine.ErrUnknownDefinition):
		return CodeUnknownDefinition
	}
	return CodeInternal
}

// errorFor maps a failed reply back to an engine error.
func errorFor(r Reply) error {
	switch r.Code {
	case CodeSessionLost:
		return engine.ErrSessionLost
	case CodeUnknownTicket:
		return engine.ErrUnknownTicket
	case CodeUnknownDefinition:
		return fmt.Errorf("%w: %s", engine.ErrUnknownDefinition, r.Error)
	}
	return fmt.Errorf("remote engine: %s", r.Error)
}

// Dispatch executes req against eng and builds the reply. Engine servers and
// loopback tests share it.
func Dispatch(ctx context.Context, eng engine.Engine, req Request) Reply {
	result, err := dispatch(ctx, eng, req)
	if err != nil {
		code := codeFor(err)
		var bad *badRequestError
		if errors.As(err, &bad) {
			code = CodeBadRequest
		}
		return Reply{ID: req.ID, Code: code, Error: err.Error()}
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return Reply{ID: req.ID, Code: CodeInternal, Error: err.Error()}
	}
	return Reply{ID: req.ID, OK: true, Result: raw}
}

type badRequestError struct{ err error }

func (e *badRequestError) Error() string { return "bad request: " + e.err.Error() }

func decodeArgs(req Request, out any) error {
	if err := json.Unmarshal(req.Args, out); err != nil {
		return &badRequestError{err: err}
	}
	return nil
}

func dispatch(ctx context.Context, eng engine.Engine, req Request) (any, error) {
	switch req.Op {
	case OpLoadDefinition:
		var a pathArgs
		if err := decodeArgs(req, &a); err != nil {
			return nil, err
		}
		return eng.LoadDefinition(ctx, a.Path)
	case OpSetParameters:
		var a instanceArgs
		if err := decodeArgs(req, &a); err != nil {
			return nil, err
		}
		return nil, eng.SetParameters(ctx, a.InstanceID, a.Params)
	case OpCook:
		var a cookArgs
		if err := decodeArgs(req, &a); err != nil {
			return nil, err
		}
		return eng.Cook(ctx, a.InstanceID, a.Definition)
	case OpPollCook:
		var a ticketArgs
		if err := decodeArgs(req, &a); err != nil {
			return nil, err
		}
		return eng.PollCook(ctx, a.Ticket)
	case OpInterrupt:
		var a ticketArgs
		if err := decodeArgs(req, &a); err != nil {
			return nil, err
		}
		return nil, eng.Interrupt(ctx, a.Ticket)
	case OpDeleteInstance:
		var a instanceArgs
		if err := decodeArgs(req, &a); err != nil {
			return nil, err
		}
		return nil, eng.DeleteInstance(ctx, a.InstanceID)
	case OpDisconnect:
		return nil, eng.Disconnect(ctx)
	}
	return nil, &badRequestError{err: fmt.Errorf("unknown op %q", req.Op)}
}
