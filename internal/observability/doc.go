// Package observability provides logging, metrics, and tracing for the
// framework core.
//
// Logging is structured (zap) behind a small Logger interface so that
// packages do not depend on the concrete backend. Metrics are Prometheus
// collectors covering the request path, the event loop, and websocket
// traffic. Tracing emits one span per dispatched request.
package observability
