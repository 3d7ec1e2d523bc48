// Package bridge is the host scene's view of the cook pipeline.
//
// The host reports placements, parameter edits and removals, and calls Tick
// once per update. Tick collects finished cooks, translates their geometry,
// applies them to the registry and tells the Listener what changed. Cooks
// themselves run on the session's worker, so Tick never blocks on the
// engine.
//
// # Failure Handling
//
// A failed cook leaves the last good mesh in place and reports the
// diagnostic. When the engine session is lost, the bridge tries to open a new
// one on the next Tick. If that exhausts its retries the Listener's
// OnSessionLost is called once and nothing cooks until Reconnect succeeds.
package bridge
