package engine

import "context"

// NativeRequest is the engine's view of an incoming request. It is
// valid only until the bound handler returns; the binding layer copies
// everything it needs before then.
type NativeRequest interface {
	// Method returns the HTTP method.
	Method() string

	// URL returns the request path without the query string.
	URL() string

	// Query returns the raw query string without the leading '?'.
	Query() string

	// ForEachHeader calls fn for each header in arrival order until fn
	// returns false.
	ForEachHeader(fn func(name, value string) bool)

	// Parameter returns the positional route parameter at index, or ""
	// when out of range.
	Parameter(index int) string

	// Context returns the request-scoped context.
	Context() context.Context
}

// NativeResponse is the loop-owned response surface. Every method must
// be called on the loop goroutine only.
type NativeResponse interface {
	// WriteStatus sets the response status line, e.g. "200 OK".
	WriteStatus(status string)

	// WriteHeader appends a response header.
	WriteHeader(name, value string)

	// End writes the body and completes the response.
	End(body []byte)

	// Close terminates the connection without a response.
	Close()

	// OnData sets the request body chunk observer. The engine invokes
	// it on the loop goroutine; last is true for the final chunk.
	OnData(fn func(chunk []byte, last bool))

	// OnAborted sets the abort observer, replacing any previous one.
	// The engine invokes it exactly once, on the loop goroutine, when
	// the peer disconnects before the response completes.
	OnAborted(fn func())

	// RemoteAddr returns the peer address.
	RemoteAddr() string
}

// NativeWebSocket is one open websocket connection. It is valid only
// for the duration of the lifecycle callback that received it.
type NativeWebSocket interface {
	// Send writes one message to the peer.
	Send(message []byte, binary bool) error

	// Close starts closing the connection.
	Close()

	// Subscribe adds the connection to a topic.
	Subscribe(topic string)

	// Unsubscribe removes the connection from a topic.
	Unsubscribe(topic string)

	// Publish sends a message to every other subscriber of a topic.
	Publish(topic string, message []byte, binary bool)

	// RemoteAddr returns the peer address.
	RemoteAddr() string
}

// HTTPHandler is the native handler bound to a route. The engine
// invokes it on the loop goroutine.
type HTTPHandler func(res NativeResponse, req NativeRequest)

// WebSocketBehavior holds the lifecycle callbacks for a websocket
// route. The engine invokes each on the loop goroutine and guarantees
// handle validity only for the duration of that call.
type WebSocketBehavior struct {
	Open    func(ws NativeWebSocket)
	Message func(ws NativeWebSocket, message []byte, binary bool)
	Close   func(ws NativeWebSocket, code int, reason []byte)
}
