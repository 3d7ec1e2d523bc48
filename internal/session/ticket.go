package session

import (
	"context"
	"sync"
	"time"

	"github.com/specialistvlad/cookbridge/internal/engine"
)

// Definition names the asset library a cook runs.
type Definition struct {
	Name    string
	Library string
}

// Request is one cook handed to the channel.
type Request struct {
	InstanceID string
	Definition Definition
	Params     engine.ParamSet
	Seq        uint64
}

// Status is the terminal state of a ticket.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Outcome is the resolved result of a ticket. Output is set on success, Err
// on failure and cancellation.
type Outcome struct {
	InstanceID string
	Seq        uint64
	Status     Status
	Output     *engine.CookOutput
	Err        error
	Duration   time.Duration
}

// Ticket is a future for one cook.
type Ticket struct {
	req     Request
	started time.Time

	done    chan struct{}
	once    sync.Once
	outcome Outcome

	cancelOnce sync.Once
	cancel     chan struct{}
}

func newTicket(req Request) *Ticket {
	return &Ticket{
		req:     req,
		started: time.Now(),
		done:    make(chan struct{}),
		cancel:  make(chan struct{}),
	}
}

// Request returns the request the ticket was created for.
func (t *Ticket) Request() Request { return t.req }

// Done is closed once the ticket resolves.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Poll returns the outcome without blocking. The bool is false while the
// cook is still running.
func (t *Ticket) Poll() (Outcome, bool) {
	select {
	case <-t.done:
		return t.outcome, true
	default:
		return Outcome{}, false
	}
}

// Wait blocks until the ticket resolves or ctx ends.
func (t *Ticket) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
		return t.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// resolve sets the outcome once. Later calls are ignored.
func (t *Ticket) resolve(o Outcome) bool {
	resolved := false
	t.once.Do(func() {
		o.InstanceID = t.req.InstanceID
		o.Seq = t.req.Seq
		o.Duration = time.Since(t.started)
		t.outcome = o
		close(t.done)
		resolved = true
	})
	return resolved
}

func (t *Ticket) requestCancel() {
	t.cancelOnce.Do(func() { close(t.cancel) })
}

func (t *Ticket) cancelRequested() bool {
	select {
	case <-t.cancel:
		return true
	default:
		return false
	}
}
