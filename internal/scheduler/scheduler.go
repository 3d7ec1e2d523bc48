package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/specialistvlad/cookbridge/internal/bridgeerr"
	"github.com/specialistvlad/cookbridge/internal/ctxlog"
	"github.com/specialistvlad/cookbridge/internal/session"
)

// ErrUnknownInstance is returned for ids the scheduler does not track.
var ErrUnknownInstance = errors.New("scheduler: unknown instance")

// Scheduler serializes cooks across instances. It is driven by Tick from the
// host update loop and is safe for concurrent use.
type Scheduler struct {
	cooker   Cooker
	preparer Preparer

	mu      sync.Mutex
	entries map[string]*entry
	queue   []string
	active  *flight
	halted  bool
}

// New creates a scheduler submitting to cooker with requests from preparer.
func New(cooker Cooker, preparer Preparer) *Scheduler {
	return &Scheduler{
		cooker:   cooker,
		preparer: preparer,
		entries:  make(map[string]*entry),
	}
}

// Track starts scheduling id. A new instance is Dirty so its first cook is
// queued right away. Tracking a known id is a no-op.
func (s *Scheduler) Track(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; ok {
		return
	}
	e := &entry{state: StateDirty}
	s.entries[id] = e
	s.enqueue(id, e)
}

// Edit records a parameter change on id.
func (s *Scheduler) Edit(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstance, id)
	}
	s.markDirty(id, e)
	return nil
}

// Invalidate marks every known id in ids Dirty. Unknown ids are ignored.
func (s *Scheduler) Invalidate(ids ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, id := range ids {
		if e, ok := s.entries[id]; ok {
			s.markDirty(id, e)
			n++
		}
	}
	return n
}

// Forget stops scheduling id. A cook in flight for it is cancelled and its
// completion will be discarded. It never blocks on the engine.
func (s *Scheduler) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return
	}
	delete(s.entries, id)
	s.dequeue(id)
	if s.active != nil && s.active.id == id && !s.active.discard {
		s.active.discard = true
		s.cooker.Cancel(s.active.ticket)
	}
}

// Rebind resumes a halted scheduler once the channel is open again.
// Instances failed by the session loss are marked Dirty and queued.
func (s *Scheduler) Rebind(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.halted = false
	n := 0
	for id, e := range s.entries {
		if e.lost {
			e.lost = false
			s.markDirty(id, e)
			n++
		}
	}
	ctxlog.FromContext(ctx).Info("Scheduler resumed.", "requeued", n)
	return n
}

// Halt stops submission after a session loss no ticket reported, such as
// one seen while releasing a node. Instances that still needed a cook are
// failed and requeued by Rebind.
func (s *Scheduler) Halt(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.halt(ctx)
}

// Halted reports whether a session loss stopped submission.
func (s *Scheduler) Halted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}

// State returns the state of id.
func (s *Scheduler) State(id string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return 0, false
	}
	return e.state, true
}

// Seq returns the last sequence number submitted for id.
func (s *Scheduler) Seq(id string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		return e.seq
	}
	return 0
}

// Queued returns the number of instances waiting to be submitted.
func (s *Scheduler) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Busy reports whether a cook is in flight.
func (s *Scheduler) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// Tick collects the in-flight cook if it resolved and submits the next queued
// instance when the channel is free. It returns the completions to apply.
func (s *Scheduler) Tick(ctx context.Context) []Completion {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Completion
	if s.active != nil {
		o, done := s.active.ticket.Poll()
		if !done {
			return nil
		}
		f := s.active
		s.active = nil
		if c, ok := s.complete(ctx, f, o); ok {
			out = append(out, c)
		}
	}
	if c, ok := s.submit(ctx); ok {
		out = append(out, c)
	}
	return out
}

func (s *Scheduler) complete(ctx context.Context, f *flight, o session.Outcome) (Completion, bool) {
	logger := ctxlog.FromContext(ctx).With("instance", f.id, "seq", f.seq)
	c := Completion{InstanceID: f.id, Seq: f.seq, Outcome: o, Fatal: bridgeerr.IsFatal(o.Err)}

	if c.Fatal {
		s.halt(ctx)
	}
	if f.discard {
		logger.Debug("Discarding completion of a forgotten instance.", "status", o.Status)
		return Completion{}, false
	}
	e, ok := s.entries[f.id]
	if !ok || e.seq != f.seq {
		logger.Debug("Discarding completion superseded by a newer submission.")
		return Completion{}, false
	}
	if c.Fatal {
		return c, true
	}

	if e.state == StateDirty {
		// Edited while cooking: one trailing cook with the newest parameters.
		s.enqueue(f.id, e)
		return c, true
	}
	switch o.Status {
	case session.StatusSuccess:
		e.state = StateClean
	case session.StatusFailure:
		e.state = StateFailed
	case session.StatusCancelled:
		s.markDirty(f.id, e)
	}
	return c, true
}

// halt fails every instance that still needed a cook.
func (s *Scheduler) halt(ctx context.Context) {
	if s.halted {
		return
	}
	s.halted = true
	n := 0
	for _, e := range s.entries {
		if e.state == StateCooking || e.state == StateDirty {
			e.state = StateFailed
			e.lost = true
			e.queued = false
			n++
		}
	}
	s.queue = nil
	ctxlog.FromContext(ctx).Error("Session lost, scheduler halted.", "failed_instances", n)
}

func (s *Scheduler) submit(ctx context.Context) (Completion, bool) {
	if s.halted || s.active != nil || len(s.queue) == 0 {
		return Completion{}, false
	}
	id := s.queue[0]
	e := s.entries[id]

	req, err := s.preparer.Prepare(ctx, id)
	if err != nil {
		s.queue = s.queue[1:]
		e.queued = false
		e.seq++
		e.state = StateFailed
		ctxlog.FromContext(ctx).Warn("Could not prepare cook.", "instance", id, "error", err)
		return Completion{
			InstanceID: id,
			Seq:        e.seq,
			Outcome:    session.Outcome{InstanceID: id, Seq: e.seq, Status: session.StatusFailure, Err: err},
		}, true
	}
	req.InstanceID = id
	req.Seq = e.seq + 1

	t, err := s.cooker.Cook(ctx, req)
	switch {
	case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrNotReady):
		return Completion{}, false
	case err != nil:
		s.queue = s.queue[1:]
		e.queued = false
		e.seq = req.Seq
		e.state = StateFailed
		return Completion{
			InstanceID: id,
			Seq:        req.Seq,
			Outcome:    session.Outcome{InstanceID: id, Seq: req.Seq, Status: session.StatusFailure, Err: err},
		}, true
	}

	s.queue = s.queue[1:]
	e.queued = false
	e.seq = req.Seq
	e.state = StateCooking
	s.active = &flight{id: id, seq: req.Seq, ticket: t}
	ctxlog.FromContext(ctx).Debug("Cook submitted.", "instance", id, "seq", req.Seq, "queued", len(s.queue))
	return Completion{}, false
}

func (s *Scheduler) markDirty(id string, e *entry) {
	e.state = StateDirty
	if s.active != nil && s.active.id == id && !s.active.discard {
		// Requeued when the in-flight cook completes.
		return
	}
	s.enqueue(id, e)
}

func (s *Scheduler) enqueue(id string, e *entry) {
	if e.queued {
		return
	}
	e.queued = true
	s.queue = append(s.queue, id)
}

func (s *Scheduler) dequeue(id string) {
	for i, q := range s.queue {
		if q == id {
			s.queue = append(s.queue[:i:i], s.queue[i+1:]...)
			return
		}
	}
}
