// Package engine defines the event-loop ownership model the binding
// layer is built on.
//
// One loop goroutine owns every native connection object and is the
// only goroutine permitted to touch them. Work originating on other
// goroutines reaches connections exclusively through deferred tasks
// submitted to the Loop, which preserves submission order. Live
// connections are tracked in an id-indexed Registry; a deferred task
// resolves the id at execution time and receives an explicit "gone"
// result when the engine has already invalidated the connection, rather
// than dereferencing a stale handle.
//
// The Mux implements the engine-native route pattern syntax (/:name
// segments and a * wildcard tail) and reports matched parameter values
// positionally, in pattern order. The Broker provides loop-confined
// topic fan-out for websocket connections.
package engine
