package scheduler

import "github.com/specialistvlad/cookbridge/internal/session"

// State is the scheduling state of one instance.
type State int

const (
	StateClean State = iota
	StateDirty
	StateCooking
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StateCooking:
		return "cooking"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Completion is a resolved cook handed back by Tick.
type Completion struct {
	InstanceID string
	Seq        uint64
	Outcome    session.Outcome
	// Fatal is set when the session was lost during the cook.
	Fatal bool
}

type entry struct {
	state  State
	seq    uint64
	queued bool
	// lost marks instances failed by session loss, for Rebind.
	lost bool
}

type flight struct {
	id      string
	seq     uint64
	ticket  *session.Ticket
	discard bool
}
