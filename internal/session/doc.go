// Package session owns the connection between the bridge and the procedural
// engine.
//
// # Lifecycle
//
// A Channel moves through Disconnected → Connecting → Ready ⇄ Busy and back
// to Disconnected on Close, on session loss, or when Open gives up after its
// bounded, exponentially backed-off retries. A Disconnected channel stays that
// way until Open is called again.
//
// # Execution
//
// Every engine call runs on one worker goroutine per opened session. Cook
// hands a Request to the worker and returns a Ticket at once; the caller polls
// the ticket from its own update loop. Only one cook may be in flight: Cook
// returns ErrBusy while a ticket is unresolved. Queuing and coalescing belong
// to the scheduler, not to the channel.
//
// # Cancellation
//
// Cancel is cooperative. The worker asks the engine to interrupt, waits up to
// InterruptGrace for the engine to settle and resolves the ticket as
// Cancelled whatever the engine produced. Close resolves the in-flight ticket
// as Cancelled before releasing the connection.
package session
