package engine

import (
	"strings"
	"sync"
)

// methodAny matches every HTTP method.
const methodAny = "*"

// muxSegment is one compiled pattern segment.
type muxSegment struct {
	literal  string
	isParam  bool
	wildcard bool
}

// httpRoute is one registered HTTP route.
type httpRoute struct {
	method   string
	pattern  string
	segments []muxSegment
	handler  HTTPHandler
}

// wsRoute is one registered websocket route.
type wsRoute struct {
	pattern  string
	segments []muxSegment
	behavior WebSocketBehavior
}

// Mux matches request paths against engine-native patterns. Patterns
// use /:name parameter segments and an optional trailing * wildcard.
// Matched parameter values are reported positionally, in pattern order.
type Mux struct {
	mu         sync.RWMutex
	httpRoutes []*httpRoute
	wsRoutes   []*wsRoute
}

// NewMux creates a mux.
func NewMux() *Mux {
	return &Mux{}
}

// Handle registers an HTTP route. Method "*" matches any method.
func (m *Mux) Handle(method, pattern string, handler HTTPHandler) {
	route := &httpRoute{
		method:   strings.ToUpper(method),
		pattern:  pattern,
		segments: compileSegments(pattern),
		handler:  handler,
	}

	m.mu.Lock()
	m.httpRoutes = append(m.httpRoutes, route)
	m.mu.Unlock()
}

// HandleWebSocket registers a websocket route.
func (m *Mux) HandleWebSocket(pattern string, behavior WebSocketBehavior) {
	route := &wsRoute{
		pattern:  pattern,
		segments: compileSegments(pattern),
		behavior: behavior,
	}

	m.mu.Lock()
	m.wsRoutes = append(m.wsRoutes, route)
	m.mu.Unlock()
}

// LookupHTTP finds the handler for a method and path. Routes bound to a
// specific method win over "*" routes; within each class, registration
// order decides. The returned params align positionally with the
// pattern's parameter segments.
func (m *Mux) LookupHTTP(method, path string) (handler HTTPHandler, params []string, pattern string, ok bool) {
	method = strings.ToUpper(method)
	segments := splitPath(path)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var anyRoute *httpRoute
	var anyParams []string

	for _, route := range m.httpRoutes {
		values, matched := matchSegments(route.segments, segments)
		if !matched {
			continue
		}
		if route.method == method {
			return route.handler, values, route.pattern, true
		}
		if route.method == methodAny && anyRoute == nil {
			anyRoute = route
			anyParams = values
		}
	}

	if anyRoute != nil {
		return anyRoute.handler, anyParams, anyRoute.pattern, true
	}
	return nil, nil, "", false
}

// LookupWebSocket finds the behavior for a websocket path.
func (m *Mux) LookupWebSocket(path string) (behavior WebSocketBehavior, params []string, ok bool) {
	segments := splitPath(path)

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, route := range m.wsRoutes {
		if values, matched := matchSegments(route.segments, segments); matched {
			return route.behavior, values, true
		}
	}
	return WebSocketBehavior{}, nil, false
}

// compileSegments parses an engine pattern into segments.
func compileSegments(pattern string) []muxSegment {
	parts := splitPath(pattern)
	segments := make([]muxSegment, 0, len(parts))

	for _, part := range parts {
		switch {
		case part == "*":
			segments = append(segments, muxSegment{wildcard: true})
		case strings.HasPrefix(part, ":"):
			segments = append(segments, muxSegment{isParam: true})
		default:
			segments = append(segments, muxSegment{literal: part})
		}
	}
	return segments
}

// splitPath splits a path into non-empty segments.
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	segments := parts[:0]
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}

// matchSegments matches path segments against pattern segments,
// collecting parameter values in pattern order. A wildcard segment
// matches the remainder of the path.
func matchSegments(pattern []muxSegment, path []string) (params []string, ok bool) {
	for i, seg := range pattern {
		if seg.wildcard {
			// Wildcard tail consumes the rest, including nothing.
			return params, true
		}
		if i >= len(path) {
			return nil, false
		}
		if seg.isParam {
			params = append(params, path[i])
			continue
		}
		if seg.literal != path[i] {
			return nil, false
		}
	}

	if len(path) != len(pattern) {
		return nil, false
	}
	return params, true
}
