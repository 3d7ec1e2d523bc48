// Package engine defines the boundary between the bridge and the external
// procedural engine.
//
// The types here mirror the engine's own data contract: typed parameter sets,
// cook tickets that are polled for completion, and geometry expressed as parts
// with point/vertex/primitive/detail attribute buffers. Nothing in this package
// knows about the host scene.
//
// Implementations live in sub-packages: inprocess runs generators inside the
// process, remote talks to an engine server over socket.io, and enginetest is a
// scriptable fake used by tests.
package engine
