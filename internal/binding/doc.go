// Package binding is the layer between the event-loop engine and
// application callbacks.
//
// It builds an immutable Snapshot of each request before engine buffers
// can be reused, hands application code a Controller whose
// native-touching operations are always deferred onto the loop and
// re-checked against the abort flag at execution time, and wraps open
// websocket connections for the duration of their lifecycle callbacks.
// The Table binds compiled route patterns and verbs to callback
// invocation under the runtime gate.
//
// Nothing in this package raises on attacker-controlled input: caps are
// enforced by truncation, malformed encodings pass through literally,
// and operations on connections the engine has invalidated degrade to
// silent no-ops.
package binding
