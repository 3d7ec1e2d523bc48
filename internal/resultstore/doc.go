// Package resultstore keeps the last successful cook of each asset instance
// across bridge restarts.
//
// # Purpose
//
// The registry seeds a newly placed instance from the store so the host can
// show the last good mesh before the first cook of the session completes.
// Only successful results are written; failures never overwrite a record.
//
// # Implementations
//
//   - **Memory:** sync.Map backed, ephemeral. The default when no cache
//     directory is configured, and the one tests use.
//   - **Badger:** BadgerDB backed, persistent. Records are stored under
//     "result/<instance id>" as JSON, with parameter snapshots encoded through
//     cty's JSON form so their types survive the round trip.
//
// Both are safe for concurrent use.
package resultstore
