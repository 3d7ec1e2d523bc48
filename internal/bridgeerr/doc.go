// Package bridgeerr provides the structured error type shared by the cook
// bridge components.
//
// Every error is tagged with a Kind that tells the caller how to react:
//
//   - KindConnection: the engine session could not be opened or was lost.
//     Escalated to the host only after retries are exhausted.
//   - KindMarshal: a parameter value could not be converted. Reported as a
//     diagnostic; the offending parameter is dropped.
//   - KindCookFailure: the engine reported a failed cook. The last good result
//     stays visible.
//   - KindTranslation: engine geometry could not be converted into a host mesh.
//   - KindCancelled: the cook was superseded, interrupted or its session closed.
//
// Use the Builder for structured construction:
//
//	err := bridgeerr.New(bridgeerr.KindCookFailure).
//		Op("cook").
//		Instance("rock-1").
//		Detail("node error: %s", msg).
//		Build()
//
// Errors support errors.Is against the kind sentinels:
//
//	if errors.Is(err, bridgeerr.ErrCancelled) { ... }
package bridgeerr
