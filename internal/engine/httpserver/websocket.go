package httpserver

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/strandhttp/strand/internal/engine"
	"github.com/strandhttp/strand/internal/observability"
)

// closeWriteTimeout bounds the close handshake write.
const closeWriteTimeout = 5 * time.Second

// wsConn adapts a gorilla connection to the engine's websocket surface.
// All methods run on the loop goroutine; the read pump is the only
// off-loop toucher and it only reads.
type wsConn struct {
	conn   *websocket.Conn
	loop   *engine.Loop
	broker *engine.Broker
	logger observability.Logger
}

func newWSConn(
	conn *websocket.Conn,
	loop *engine.Loop,
	broker *engine.Broker,
	logger observability.Logger,
) *wsConn {
	return &wsConn{conn: conn, loop: loop, broker: broker, logger: logger}
}

func (c *wsConn) Send(message []byte, binary bool) error {
	messageType := websocket.TextMessage
	if binary {
		messageType = websocket.BinaryMessage
	}
	return c.conn.WriteMessage(messageType, message)
}

func (c *wsConn) Close() {
	deadline := time.Now().Add(closeWriteTimeout)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		c.logger.Debug("websocket close handshake failed",
			observability.Error(err),
		)
	}
	c.conn.Close()
}

func (c *wsConn) Subscribe(topic string)   { c.broker.Subscribe(topic, c) }
func (c *wsConn) Unsubscribe(topic string) { c.broker.Unsubscribe(topic, c) }

func (c *wsConn) Publish(topic string, message []byte, binary bool) {
	c.broker.Publish(topic, message, binary, c)
}

func (c *wsConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// readPump forwards every inbound frame onto the loop until the
// connection errors out, then delivers the close event and retires the
// connection's topic subscriptions. It runs on its own goroutine, one
// per connection.
func (c *wsConn) readPump(behavior engine.WebSocketBehavior) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			code := websocket.CloseAbnormalClosure
			var reason []byte
			if ce, ok := err.(*websocket.CloseError); ok {
				code = ce.Code
				reason = []byte(ce.Text)
			}
			c.loop.Defer(func() {
				c.broker.UnsubscribeAll(c)
				if behavior.Close != nil {
					behavior.Close(c, code, reason)
				}
				c.conn.Close()
			})
			return
		}

		binary := messageType == websocket.BinaryMessage
		c.loop.Defer(func() {
			if behavior.Message != nil {
				behavior.Message(c, data, binary)
			}
		})
	}
}
