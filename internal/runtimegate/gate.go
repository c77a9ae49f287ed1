// Package runtimegate models the embedding runtime's global
// serialization requirement as a single explicit scope guard.
//
// Application callbacks must run while holding the gate, including
// callbacks fired from deferred tasks and connection lifecycle events.
// The gate is released before control returns to the engine. This keeps
// the serialization rule in one place instead of re-implemented at each
// call site.
package runtimegate

import "sync"

// Gate serializes all application callback execution.
type Gate struct {
	mu sync.Mutex
}

// New creates a gate.
func New() *Gate {
	return &Gate{}
}

// Enter acquires the gate. Callers must pair it with Leave.
func (g *Gate) Enter() {
	g.mu.Lock()
}

// Leave releases the gate.
func (g *Gate) Leave() {
	g.mu.Unlock()
}

// Do runs fn while holding the gate. The gate is released even if fn
// panics, so a misbehaving callback cannot wedge every other callback.
func (g *Gate) Do(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn()
}
