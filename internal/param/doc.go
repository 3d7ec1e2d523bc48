// Package param holds the typed parameter model of an asset and converts
// parameter values between the host and the engine.
//
// # Values
//
// Host-side values are cty.Value, the same representation the HCL loaders
// produce, so a value read from a scene file and a value set by an editor
// gesture go through identical coercion.
//
// A Snapshot is an immutable name → value map. Once a snapshot has been
// handed to a cook it is never changed; edits produce a new snapshot via With.
//
// # Marshalling
//
// A Marshaller is bound to one Schema. Coercion is fixed per Kind:
//
//	int     number, rounded to nearest, clamped       → 1 int
//	float   number, clamped                           → 1 float
//	string  string                                    → 1 string
//	toggle  bool                                      → 1 int (0/1)
//	vector  list of Size numbers, each clamped        → Size floats
//	color   list of 3 or 4 numbers (alpha defaults 1) → 4 floats
//	choice  token string or index                     → 1 int
//	ramp    list of {pos, value, interp} keys         → 3 floats per key
//
// Out-of-range numbers are clamped, never rejected. Unknown names and values
// that cannot be converted are dropped and reported, never a hard failure.
package param
