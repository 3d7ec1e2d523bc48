// Package scheduler decides when each asset instance cooks.
//
// # Why Scheduler Exists
//
// The engine cooks one thing at a time, while the host edits parameters far
// faster than cooks complete. The scheduler sits between the two: it keeps a
// small state machine per instance, queues dirty instances and feeds them to
// the session channel one by one.
//
// # State Machine
//
// Every tracked instance is in one of four states:
//
//	Clean --edit--> Dirty --submit--> Cooking --result--> Clean | Failed
//
// An edit while Cooking moves the instance to Dirty at once and leaves the
// in-flight cook alone. When that cook completes the instance is submitted
// again, so any number of edits during one cook yield at most one trailing
// cook. The queue holds an instance id once and the request is built when it
// is submitted, which means the trailing cook always sees the newest
// parameters.
//
// # Sequence Numbers
//
// Each submission gets the next per-instance sequence number. Completions
// carry it so the registry can reject results older than the one it already
// applied.
//
// # Session Loss
//
// A fatal completion halts the scheduler: every Cooking or Dirty instance is
// moved to Failed and nothing is submitted until Rebind is called with the
// channel open again. Rebind marks those instances Dirty.
//
// # Relationship with Other Components
//
//   - **Session Channel:** executes the cooks (Cooker).
//   - **Bridge:** builds requests from the registry and the marshaller
//     (Preparer) and applies completions.
package scheduler
