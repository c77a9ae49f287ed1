package httpserver

import (
	"context"
	"net/http"
)

// request adapts *http.Request to the engine's request surface. It is
// read-only; the binding layer copies what it needs before the handler
// returns.
type request struct {
	r      *http.Request
	params []string
}

func newRequest(r *http.Request, params []string) *request {
	return &request{r: r, params: params}
}

func (q *request) Method() string { return q.r.Method }
func (q *request) URL() string    { return q.r.URL.Path }
func (q *request) Query() string  { return q.r.URL.RawQuery }

func (q *request) ForEachHeader(fn func(name, value string) bool) {
	for name, values := range q.r.Header {
		for _, value := range values {
			if !fn(name, value) {
				return
			}
		}
	}
}

func (q *request) Parameter(index int) string {
	if index < 0 || index >= len(q.params) {
		return ""
	}
	return q.params[index]
}

func (q *request) Context() context.Context {
	return q.r.Context()
}
