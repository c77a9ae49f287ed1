package urlcodec

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandhttp/strand/internal/util"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain text untouched",
			input:    "hello",
			expected: "hello",
		},
		{
			name:     "lowercase hex",
			input:    "%68%65%6c%6c%6f",
			expected: "hello",
		},
		{
			name:     "uppercase hex",
			input:    "%2F%3D",
			expected: "/=",
		},
		{
			name:     "plus becomes space",
			input:    "a+b",
			expected: "a b",
		},
		{
			name:     "null byte neutralized",
			input:    "%00",
			expected: "?",
		},
		{
			name:     "null byte inside value",
			input:    "a%00b",
			expected: "a?b",
		},
		{
			name:     "invalid escape passes through",
			input:    "%zz",
			expected: "%zz",
		},
		{
			name:     "truncated escape passes through",
			input:    "abc%2",
			expected: "abc%2",
		},
		{
			name:     "bare percent at end",
			input:    "abc%",
			expected: "abc%",
		},
		{
			name:     "mixed valid and invalid",
			input:    "%41%4x%42",
			expected: "A%4xB",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, Decode(tt.input))
		})
	}
}

func TestParseQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected map[string][]string
	}{
		{
			name:     "empty query",
			input:    "",
			expected: map[string][]string{},
		},
		{
			name:  "repeated keys accumulate",
			input: "a=1&a=2&b=",
			expected: map[string][]string{
				"a": {"1", "2"},
				"b": {""},
			},
		},
		{
			name:  "missing equals yields empty value",
			input: "flag",
			expected: map[string][]string{
				"flag": {""},
			},
		},
		{
			name:  "value split on first equals only",
			input: "expr=a=b",
			expected: map[string][]string{
				"expr": {"a=b"},
			},
		},
		{
			name:  "both sides decoded",
			input: "na%6de=jo%68n&greet=hello+world",
			expected: map[string][]string{
				"name":  {"john"},
				"greet": {"hello world"},
			},
		},
		{
			name:  "empty pieces skipped",
			input: "&&a=1&&",
			expected: map[string][]string{
				"a": {"1"},
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			values, err := ParseQuery(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, values)
		})
	}
}

func TestParseQueryPairLimit(t *testing.T) {
	t.Parallel()

	build := func(n int) string {
		pieces := make([]string, 0, n)
		for i := 0; i < n; i++ {
			pieces = append(pieces, fmt.Sprintf("k%d=%d", i, i))
		}
		return strings.Join(pieces, "&")
	}

	values, err := ParseQuery(build(MaxQueryPairs))
	require.NoError(t, err)
	assert.Len(t, values, MaxQueryPairs)

	_, err = ParseQuery(build(MaxQueryPairs + 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrInvalidInput)

	var ve *util.ValidationError
	assert.ErrorAs(t, err, &ve)
}
