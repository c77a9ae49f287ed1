package engine

import (
	"sync"

	"github.com/google/uuid"

	"github.com/strandhttp/strand/internal/observability"
)

// Registry tracks live connections by id. A deferred operation holds an
// id, never a connection; resolving the id at execution time yields an
// explicit "gone" result once the engine invalidates the connection, so
// stale handles cannot be dereferenced.
type Registry struct {
	mu      sync.RWMutex
	conns   map[uuid.UUID]NativeResponse
	metrics *observability.Metrics
}

// RegistryOption is a functional option for configuring the registry.
type RegistryOption func(*Registry)

// WithRegistryMetrics sets the metrics sink for the registry.
func WithRegistryMetrics(metrics *observability.Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = metrics
	}
}

// NewRegistry creates a registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		conns: make(map[uuid.UUID]NativeResponse),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add registers a connection and returns its id.
func (r *Registry) Add(res NativeResponse) uuid.UUID {
	id := uuid.New()

	r.mu.Lock()
	r.conns[id] = res
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.ConnectionOpened()
	}
	return id
}

// Resolve returns the connection for id, or ok=false when the
// connection is gone.
func (r *Registry) Resolve(id uuid.UUID) (res NativeResponse, ok bool) {
	r.mu.RLock()
	res, ok = r.conns[id]
	r.mu.RUnlock()
	return res, ok
}

// Remove unregisters a connection. It is idempotent: removing an id
// twice, or an id that was never added, is a no-op.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	_, present := r.conns[id]
	delete(r.conns, id)
	r.mu.Unlock()

	if present && r.metrics != nil {
		r.metrics.ConnectionClosed()
	}
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
