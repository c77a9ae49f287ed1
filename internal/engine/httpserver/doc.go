// Package httpserver drives the event-loop engine from net/http.
//
// Each accepted request is translated into loop-owned request and
// response handles and dispatched through the route mux on the loop
// goroutine; the serving goroutine parks until the response completes
// or the client disconnects. Websocket upgrades are handed to
// gorilla/websocket, with a per-connection read pump that forwards
// every frame onto the loop.
package httpserver
