// Package urlcodec implements percent decoding and query string parsing
// with attacker-resistant semantics.
//
// Decoding never fails on malformed input: invalid percent escapes pass
// through literally and decoded null bytes are replaced, because this
// code sits directly on the attacker-facing path. The only hard failure
// is the query pair cap, which bounds resource use per request.
package urlcodec

import (
	"strings"

	"github.com/strandhttp/strand/internal/util"
)

// MaxQueryPairs is the maximum number of non-empty key=value pairs a
// single query string may carry. Parsing fails beyond this bound.
const MaxQueryPairs = 1000

// Decode percent-decodes s. A %XY escape consumes exactly two hex
// digits; anything else passes through unchanged. '+' decodes to a
// space. A decoded null byte becomes '?' so it cannot smuggle
// terminators into downstream C-string consumers.
func Decode(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '+':
			b.WriteByte(' ')
		case '%':
			hi, okHi := unhex(byteAt(s, i+1))
			lo, okLo := unhex(byteAt(s, i+2))
			if !okHi || !okLo {
				// Malformed escape: pass through literally, unconsumed.
				b.WriteByte('%')
				continue
			}
			decoded := hi<<4 | lo
			if decoded == 0 {
				decoded = '?'
			}
			b.WriteByte(decoded)
			i += 2
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

// byteAt returns the byte at index i, or 0 when out of range.
func byteAt(s string, i int) byte {
	if i >= len(s) {
		return 0
	}
	return s[i]
}

// unhex converts a hex digit to its value.
func unhex(c byte) (v byte, ok bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// ParseQuery parses a raw query string into a map of decoded keys to
// decoded values in arrival order. Pieces are split on '&', then each
// piece once on the first '='; a piece without '=' yields an empty
// value. Repeated keys accumulate. Parsing fails with a ValidationError
// once the pair cap is exceeded.
func ParseQuery(rawQuery string) (map[string][]string, error) {
	values := make(map[string][]string)
	if rawQuery == "" {
		return values, nil
	}

	pairs := 0
	for _, piece := range strings.Split(rawQuery, "&") {
		if piece == "" {
			continue
		}
		pairs++
		if pairs > MaxQueryPairs {
			return nil, util.NewValidationError("query",
				"query string exceeds pair limit")
		}

		key, value, _ := strings.Cut(piece, "=")
		key = Decode(key)
		value = Decode(value)
		values[key] = append(values[key], value)
	}

	return values, nil
}
