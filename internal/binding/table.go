package binding

import (
	"time"

	"github.com/strandhttp/strand/internal/engine"
	"github.com/strandhttp/strand/internal/observability"
	"github.com/strandhttp/strand/internal/routepath"
	"github.com/strandhttp/strand/internal/runtimegate"
)

// Handler is an application HTTP handler. It runs under the runtime
// gate; the snapshot is immutable and the controller is safe to retain
// past the handler's return.
type Handler func(req *Snapshot, res *Controller)

// WebSocketHandlers holds application lifecycle callbacks for one
// websocket route. Each runs under the runtime gate; the *WebSocket is
// valid only for the duration of the callback that received it.
type WebSocketHandlers struct {
	Open    func(ws *WebSocket)
	Message func(ws *WebSocket, message []byte, binary bool)
	Close   func(ws *WebSocket, code int, reason []byte)
}

// Table binds application handlers to engine routes. Registration
// compiles the brace pattern into engine syntax and wraps the handler
// with snapshot capture, controller construction, gate entry, tracing
// and panic containment.
type Table struct {
	loop     *engine.Loop
	registry *engine.Registry
	gate     *runtimegate.Gate
	mux      *engine.Mux

	logger  observability.Logger
	metrics *observability.Metrics
}

// TableOption is a functional option for configuring a table.
type TableOption func(*Table)

// WithTableLogger sets the logger.
func WithTableLogger(logger observability.Logger) TableOption {
	return func(t *Table) {
		t.logger = logger
	}
}

// WithTableMetrics sets the metrics sink.
func WithTableMetrics(metrics *observability.Metrics) TableOption {
	return func(t *Table) {
		t.metrics = metrics
	}
}

// NewTable creates a route table bound to an event loop.
func NewTable(
	loop *engine.Loop,
	registry *engine.Registry,
	gate *runtimegate.Gate,
	mux *engine.Mux,
	opts ...TableOption,
) *Table {
	t := &Table{
		loop:     loop,
		registry: registry,
		gate:     gate,
		mux:      mux,
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Mux returns the underlying engine mux.
func (t *Table) Mux() *engine.Mux {
	return t.mux
}

// Bind registers an application handler for a method and brace pattern,
// e.g. Bind("GET", "/users/{id}", h). The engine invokes the wrapped
// handler on the loop goroutine.
func (t *Table) Bind(method, pattern string, handler Handler) {
	p := routepath.Compile(pattern)
	paramCount := len(p.ParamNames)

	t.mux.Handle(method, p.Engine, func(res engine.NativeResponse, req engine.NativeRequest) {
		t.dispatch(p.Source, paramCount, handler, res, req)
	})

	t.logger.Debug("route bound",
		observability.String("method", method),
		observability.String("pattern", p.Source),
		observability.String("engine_pattern", p.Engine),
		observability.Int("params", paramCount),
	)
}

// dispatch runs on the loop goroutine. The snapshot is captured before
// the handler runs because the native request is invalidated when this
// function returns; the controller outlives it through the registry.
func (t *Table) dispatch(
	route string,
	paramCount int,
	handler Handler,
	res engine.NativeResponse,
	req engine.NativeRequest,
) {
	start := time.Now()

	_, span := observability.StartRequestSpan(req.Context(), req.Method(), route)

	snap := NewSnapshot(req, paramCount)
	ctrl := NewController(t.loop, t.registry, t.gate, res,
		WithControllerLogger(t.logger),
		WithControllerMetrics(t.metrics),
	)

	func() {
		defer func() {
			if r := recover(); r != nil {
				t.logger.Error("handler panic",
					observability.String("method", snap.Method()),
					observability.String("route", route),
					observability.Any("panic", r),
				)
				t.respondInternalError(ctrl)
			}
		}()
		t.gate.Do(func() {
			handler(snap, ctrl)
		})
	}()

	status := ctrl.Status()
	observability.EndRequestSpan(span, status, ctrl.Aborted())
	if t.metrics != nil {
		t.metrics.ObserveRequest(snap.Method(), route, statusCode(status),
			time.Since(start).Seconds())
	}
}

// respondInternalError completes a response after a handler panic. The
// controller no-ops everything if the handler already ended or the peer
// is gone.
func (t *Table) respondInternalError(ctrl *Controller) {
	ctrl.WriteStatus("500 Internal Server Error")
	ctrl.WriteHeader("Content-Type", "application/json")
	ctrl.End([]byte(`{"error":"internal server error"}`))
}

// BindWebSocket registers websocket lifecycle handlers for a brace
// pattern. Each callback runs on the loop goroutine, under the gate,
// and receives a wrapper valid only until it returns.
func (t *Table) BindWebSocket(pattern string, handlers WebSocketHandlers) {
	p := routepath.Compile(pattern)

	t.mux.HandleWebSocket(p.Engine, engine.WebSocketBehavior{
		Open: func(conn engine.NativeWebSocket) {
			if t.metrics != nil {
				t.metrics.ConnectionOpened()
			}
			if handlers.Open == nil {
				return
			}
			ws := newWebSocket(conn, t.metrics)
			t.runWS("open", ws, func() { handlers.Open(ws) })
		},
		Message: func(conn engine.NativeWebSocket, message []byte, binary bool) {
			if t.metrics != nil {
				t.metrics.WebSocketMessage("in")
			}
			if handlers.Message == nil {
				return
			}
			ws := newWebSocket(conn, t.metrics)
			t.runWS("message", ws, func() { handlers.Message(ws, message, binary) })
		},
		Close: func(conn engine.NativeWebSocket, code int, reason []byte) {
			if t.metrics != nil {
				t.metrics.ConnectionClosed()
			}
			if handlers.Close == nil {
				return
			}
			ws := newWebSocket(conn, t.metrics)
			t.runWS("close", ws, func() { handlers.Close(ws, code, reason) })
		},
	})

	t.logger.Debug("websocket route bound",
		observability.String("pattern", p.Source),
		observability.String("engine_pattern", p.Engine),
	)
}

// runWS enters the gate for a websocket lifecycle callback and contains
// panics so one misbehaving handler cannot take down the loop.
func (t *Table) runWS(event string, ws *WebSocket, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("websocket handler panic",
				observability.String("event", event),
				observability.String("remote_addr", ws.RemoteAddr()),
				observability.Any("panic", r),
			)
		}
	}()
	t.gate.Do(fn)
}

// statusCode extracts the numeric code from a status line like
// "404 Not Found".
func statusCode(status string) string {
	for i := 0; i < len(status); i++ {
		if status[i] == ' ' {
			return status[:i]
		}
	}
	if status == "" {
		return "200"
	}
	return status
}
