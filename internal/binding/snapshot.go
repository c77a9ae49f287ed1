package binding

import (
	"strconv"
	"strings"
	"sync"

	"github.com/strandhttp/strand/internal/engine"
	"github.com/strandhttp/strand/internal/urlcodec"
)

// Caps on attacker-controlled request dimensions. Excess input is
// silently dropped, never an error: truncation keeps the parse path
// total on any input.
const (
	// MaxHeaders bounds the number of header entries copied into a
	// snapshot.
	MaxHeaders = 100

	// MaxParams bounds positional route parameter extraction.
	MaxParams = 100
)

// Snapshot is an immutable per-request view, built synchronously at
// handler-invocation time and safe to read from any goroutine
// afterwards. Positional params align 1:1, in order, with the matched
// pattern's parameter names; the index-to-name mapping belongs to the
// caller holding that pattern.
type Snapshot struct {
	method   string
	url      string
	rawQuery string
	headers  map[string]string
	params   []string

	queryOnce sync.Once
	queryVals map[string][]string
	queryErr  error
}

// NewSnapshot copies everything it needs out of the native request.
// paramCount is the number of parameters the matched pattern declares;
// values are read by index up to that count, bounded by MaxParams.
// Building never fails: malformed input degrades to partial fields.
func NewSnapshot(req engine.NativeRequest, paramCount int) *Snapshot {
	s := &Snapshot{
		method:   req.Method(),
		url:      req.URL(),
		rawQuery: req.Query(),
		headers:  make(map[string]string),
	}

	entries := 0
	req.ForEachHeader(func(name, value string) bool {
		if entries >= MaxHeaders {
			return false
		}
		entries++
		key := strings.ToLower(name)
		if existing, ok := s.headers[key]; ok {
			s.headers[key] = existing + ", " + value
		} else {
			s.headers[key] = value
		}
		return true
	})

	if paramCount > MaxParams {
		paramCount = MaxParams
	}
	if paramCount > 0 {
		s.params = make([]string, paramCount)
		for i := 0; i < paramCount; i++ {
			s.params[i] = req.Parameter(i)
		}
	}

	return s
}

// Method returns the HTTP method.
func (s *Snapshot) Method() string {
	return s.method
}

// URL returns the request path.
func (s *Snapshot) URL() string {
	return s.url
}

// RawQuery returns the raw query string without the leading '?'.
func (s *Snapshot) RawQuery() string {
	return s.rawQuery
}

// Header returns the value for a header name, case-insensitively.
// Repeated headers are joined with ", " in arrival order.
func (s *Snapshot) Header(name string) string {
	return s.headers[strings.ToLower(name)]
}

// Headers returns a copy of all headers, keyed by lowercase name.
func (s *Snapshot) Headers() map[string]string {
	out := make(map[string]string, len(s.headers))
	for k, v := range s.headers {
		out[k] = v
	}
	return out
}

// Param returns the positional route parameter at index, or "" when
// out of range.
func (s *Snapshot) Param(index int) string {
	if index < 0 || index >= len(s.params) {
		return ""
	}
	return s.params[index]
}

// Params returns a copy of the positional route parameters.
func (s *Snapshot) Params() []string {
	out := make([]string, len(s.params))
	copy(out, s.params)
	return out
}

// QueryValues parses and caches the decoded query parameters. Repeated
// keys accumulate in arrival order. The only failure is the query pair
// cap.
func (s *Snapshot) QueryValues() (map[string][]string, error) {
	s.queryOnce.Do(func() {
		s.queryVals, s.queryErr = urlcodec.ParseQuery(s.rawQuery)
	})
	return s.queryVals, s.queryErr
}

// ContentType returns the content-type header.
func (s *Snapshot) ContentType() string {
	return s.Header("content-type")
}

// ContentLength returns the parsed content-length header.
func (s *Snapshot) ContentLength() (length int64, ok bool) {
	v := s.Header("content-length")
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// IsJSON reports whether the request declares a JSON body.
func (s *Snapshot) IsJSON() bool {
	return strings.Contains(strings.ToLower(s.ContentType()), "application/json")
}

// IsForm reports whether the request declares a urlencoded form body.
func (s *Snapshot) IsForm() bool {
	return strings.Contains(strings.ToLower(s.ContentType()),
		"application/x-www-form-urlencoded")
}
