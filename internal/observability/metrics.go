package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// unmatchedRoute is the label value used for requests that do not match
// any registered route, ensuring bounded cardinality.
const unmatchedRoute = "unmatched"

// Metrics holds all Prometheus metrics for the framework core.
type Metrics struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	activeConnections  prometheus.Gauge
	deferredTasks      prometheus.Counter
	droppedOperations  *prometheus.CounterVec
	wsMessages         *prometheus.CounterVec
	topicSubscriptions prometheus.Gauge
	registry           *prometheus.Registry
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "strand"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of dispatched HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Handler invocation duration in seconds",
			Buckets: []float64{
				.001, .005, .01, .025, .05,
				.1, .25, .5, 1, 2.5, 5, 10,
			},
		},
		[]string{"method", "route"},
	)

	m.activeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of live connections in the registry",
		},
	)

	m.deferredTasks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deferred_tasks_total",
			Help:      "Total number of tasks submitted to the event loop",
		},
	)

	m.droppedOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_operations_total",
			Help:      "Deferred operations dropped because the connection was gone",
		},
		[]string{"reason"},
	)

	m.wsMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "websocket_messages_total",
			Help:      "Total websocket messages by direction",
		},
		[]string{"direction"},
	)

	m.topicSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "topic_subscriptions",
			Help:      "Current number of websocket topic subscriptions",
		},
	)

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.activeConnections,
		m.deferredTasks,
		m.droppedOperations,
		m.wsMessages,
		m.topicSubscriptions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveRequest records a completed request dispatch.
func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	if route == "" {
		route = unmatchedRoute
	}
	m.requestsTotal.WithLabelValues(method, route, status).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(seconds)
}

// ConnectionOpened increments the active connection gauge.
func (m *Metrics) ConnectionOpened() {
	m.activeConnections.Inc()
}

// ConnectionClosed decrements the active connection gauge.
func (m *Metrics) ConnectionClosed() {
	m.activeConnections.Dec()
}

// TaskDeferred counts a task submitted to the event loop.
func (m *Metrics) TaskDeferred() {
	m.deferredTasks.Inc()
}

// OperationDropped counts a deferred operation dropped at execution time.
// Reason is one of "aborted" or "gone".
func (m *Metrics) OperationDropped(reason string) {
	m.droppedOperations.WithLabelValues(reason).Inc()
}

// WebSocketMessage counts a websocket message. Direction is "in" or "out".
func (m *Metrics) WebSocketMessage(direction string) {
	m.wsMessages.WithLabelValues(direction).Inc()
}

// TopicSubscribed increments the topic subscription gauge.
func (m *Metrics) TopicSubscribed() {
	m.topicSubscriptions.Inc()
}

// TopicUnsubscribed decrements the topic subscription gauge.
func (m *Metrics) TopicUnsubscribed() {
	m.topicSubscriptions.Dec()
}

// Handler returns an HTTP handler exposing the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// NopMetrics returns a Metrics instance backed by a private registry,
// suitable for tests.
func NopMetrics() *Metrics {
	return NewMetrics("strand_test")
}
