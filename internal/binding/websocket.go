package binding

import (
	"github.com/strandhttp/strand/internal/engine"
	"github.com/strandhttp/strand/internal/observability"
)

// WebSocket wraps one open websocket connection for the duration of a
// lifecycle callback. The underlying handle is owned by the loop and is
// valid only while the callback that received this wrapper is running;
// the wrapper must not be retained past the callback's return.
type WebSocket struct {
	conn    engine.NativeWebSocket
	metrics *observability.Metrics
}

func newWebSocket(conn engine.NativeWebSocket, metrics *observability.Metrics) *WebSocket {
	return &WebSocket{conn: conn, metrics: metrics}
}

// Send writes one message to the peer.
func (w *WebSocket) Send(message []byte, binary bool) error {
	if w.metrics != nil {
		w.metrics.WebSocketMessage("out")
	}
	return w.conn.Send(message, binary)
}

// SendText writes one text message to the peer.
func (w *WebSocket) SendText(message string) error {
	return w.Send([]byte(message), false)
}

// SendBinary writes one binary message to the peer.
func (w *WebSocket) SendBinary(message []byte) error {
	return w.Send(message, true)
}

// Close starts closing the connection.
func (w *WebSocket) Close() {
	w.conn.Close()
}

// Subscribe adds the connection to a topic.
func (w *WebSocket) Subscribe(topic string) {
	w.conn.Subscribe(topic)
}

// Unsubscribe removes the connection from a topic.
func (w *WebSocket) Unsubscribe(topic string) {
	w.conn.Unsubscribe(topic)
}

// Publish sends a message to every other subscriber of a topic.
func (w *WebSocket) Publish(topic string, message []byte, binary bool) {
	if w.metrics != nil {
		w.metrics.WebSocketMessage("out")
	}
	w.conn.Publish(topic, message, binary)
}

// PublishText sends a text message to every other subscriber of a
// topic.
func (w *WebSocket) PublishText(topic, message string) {
	w.Publish(topic, []byte(message), false)
}

// RemoteAddr returns the peer address.
func (w *WebSocket) RemoteAddr() string {
	return w.conn.RemoteAddr()
}
