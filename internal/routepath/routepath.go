// Package routepath compiles declarative route patterns into the
// engine's native pattern syntax.
//
// A declarative pattern uses literal segments, {name} parameter
// captures, and a bare * wildcard tail. The engine understands /:name
// segments and passes * through for its own wildcard handling.
package routepath

import "strings"

// Pattern is a compiled route pattern. It is created once at
// registration time and never mutated afterwards.
type Pattern struct {
	// Source is the declarative pattern as registered.
	Source string

	// Engine is the equivalent engine-native pattern.
	Engine string

	// ParamNames holds the {name} capture names in declaration order.
	// The engine reports matched values by the same index.
	ParamNames []string
}

// Compile translates a declarative pattern. It is pure and
// deterministic: the same input always yields the same output.
func Compile(pattern string) Pattern {
	var engine strings.Builder
	var paramNames []string

	for _, segment := range strings.Split(pattern, "/") {
		if segment == "" {
			continue
		}
		if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
			name := segment[1 : len(segment)-1]
			paramNames = append(paramNames, name)
			engine.WriteString("/:")
			engine.WriteString(name)
			continue
		}
		engine.WriteString("/")
		engine.WriteString(segment)
	}

	compiled := engine.String()
	if compiled == "" {
		compiled = "/"
	}

	return Pattern{
		Source:     pattern,
		Engine:     compiled,
		ParamNames: paramNames,
	}
}
