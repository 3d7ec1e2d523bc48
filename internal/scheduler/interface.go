package scheduler

import (
	"context"

	"github.com/specialistvlad/cookbridge/internal/session"
)

// Cooker runs cooks. *session.Channel satisfies it.
type Cooker interface {
	// Cook starts req and returns its ticket. It must fail with
	// session.ErrBusy while another cook is in flight and with
	// session.ErrNotReady when no session is open; the scheduler retries
	// both on a later tick.
	Cook(ctx context.Context, req session.Request) (*session.Ticket, error)

	// Cancel asks for t to be abandoned. The ticket must still resolve.
	Cancel(t *session.Ticket)
}

// Preparer builds the request for an instance at submit time.
//
// The scheduler fills in InstanceID and Seq; the Preparer supplies the
// definition and the engine parameters from the instance's newest snapshot.
// An error fails the instance without contacting the engine.
type Preparer interface {
	Prepare(ctx context.Context, instanceID string) (session.Request, error)
}

// PrepareFunc adapts a function to Preparer.
type PrepareFunc func(ctx context.Context, instanceID string) (session.Request, error)

func (f PrepareFunc) Prepare(ctx context.Context, instanceID string) (session.Request, error) {
	return f(ctx, instanceID)
}
