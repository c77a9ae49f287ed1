// Package cookie serializes Set-Cookie header values with injection-safe
// semantics.
//
// Validation failures are construction errors, never silent
// sanitization: a cookie that cannot be expressed safely is rejected so
// the caller learns about it instead of shipping a mangled header.
package cookie

import (
	"strconv"
	"strings"
	"time"

	"github.com/strandhttp/strand/internal/util"
)

// SameSite attribute values.
const (
	SameSiteLax    = "Lax"
	SameSiteStrict = "Strict"
	SameSiteNone   = "None"
)

// expiresFormat is the cookie date format (RFC 6265, always GMT).
const expiresFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// Descriptor describes one cookie to be serialized. The zero value of
// an optional field omits the corresponding attribute.
type Descriptor struct {
	Name  string
	Value string

	// MaxAge follows the net/http convention: 0 omits the attribute,
	// a negative value emits Max-Age=0 (delete now), a positive value
	// emits Max-Age=seconds.
	MaxAge int

	// Expires is emitted in GMT when non-zero.
	Expires time.Time

	Path     string
	Domain   string
	Secure   bool
	HTTPOnly bool
	SameSite string
}

// Format serializes the descriptor into Set-Cookie text. Attribute
// order is fixed: Max-Age, Expires, Path, Domain, Secure, HttpOnly,
// SameSite.
func Format(d Descriptor) (string, error) {
	if err := validateName(d.Name); err != nil {
		return "", err
	}

	value, err := encodeValue(d.Value)
	if err != nil {
		return "", err
	}

	if err := validateAttribute("cookie.path", d.Path); err != nil {
		return "", err
	}
	if err := validateAttribute("cookie.domain", d.Domain); err != nil {
		return "", err
	}
	if err := validateAttribute("cookie.samesite", d.SameSite); err != nil {
		return "", err
	}
	if strings.EqualFold(d.SameSite, SameSiteNone) && !d.Secure {
		return "", util.NewValidationError("cookie.samesite",
			"SameSite=None requires Secure")
	}

	var b strings.Builder
	b.WriteString(d.Name)
	b.WriteByte('=')
	b.WriteString(value)

	switch {
	case d.MaxAge > 0:
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.Itoa(d.MaxAge))
	case d.MaxAge < 0:
		b.WriteString("; Max-Age=0")
	}
	if !d.Expires.IsZero() {
		b.WriteString("; Expires=")
		b.WriteString(d.Expires.UTC().Format(expiresFormat))
	}
	if d.Path != "" {
		b.WriteString("; Path=")
		b.WriteString(d.Path)
	}
	if d.Domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(d.Domain)
	}
	if d.Secure {
		b.WriteString("; Secure")
	}
	if d.HTTPOnly {
		b.WriteString("; HttpOnly")
	}
	if d.SameSite != "" {
		b.WriteString("; SameSite=")
		b.WriteString(d.SameSite)
	}

	// Final defense: the assembled header must be free of control
	// characters no matter which field slipped one through.
	out := b.String()
	for i := 0; i < len(out); i++ {
		if isControl(out[i]) {
			return "", util.NewValidationError("cookie",
				"serialized cookie contains control character")
		}
	}

	return out, nil
}

// validateName checks the cookie name against the token character set:
// printable ASCII excluding separators and the control range.
func validateName(name string) error {
	if name == "" {
		return util.NewValidationError("cookie.name", "name must not be empty")
	}
	for i := 0; i < len(name); i++ {
		if !isTokenChar(name[i]) {
			return util.NewValidationError("cookie.name",
				"invalid character in cookie name")
		}
	}
	return nil
}

// encodeValue validates and, when needed, quotes the cookie value.
// Values containing a space, quote, comma, or backslash are wrapped in
// double quotes with backslash escaping. A raw semicolon cannot be
// expressed safely and is rejected outright.
func encodeValue(value string) (string, error) {
	needsQuoting := false
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case c == ';':
			return "", util.NewValidationError("cookie.value",
				"semicolon not allowed in cookie value")
		case isControl(c):
			return "", util.NewValidationError("cookie.value",
				"control character in cookie value")
		case c == ' ' || c == '"' || c == ',' || c == '\\':
			needsQuoting = true
		}
	}

	if !needsQuoting {
		return value, nil
	}

	var b strings.Builder
	b.Grow(len(value) + 2)
	b.WriteByte('"')
	for i := 0; i < len(value); i++ {
		switch c := value[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String(), nil
}

// validateAttribute rejects semicolons and control characters in
// attribute values before they are appended to the header.
func validateAttribute(field, value string) error {
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c == ';' || isControl(c) {
			return util.NewValidationError(field,
				"invalid character in cookie attribute")
		}
	}
	return nil
}

// isTokenChar reports whether c is a valid RFC 6265 token character.
func isTokenChar(c byte) bool {
	if c <= 0x20 || c >= 0x7f {
		return false
	}
	switch c {
	case '(', ')', '<', '>', '@', ',', ';', ':', '\\', '"', '/',
		'[', ']', '?', '=', '{', '}':
		return false
	}
	return true
}

// isControl reports whether c is in the ASCII control range.
func isControl(c byte) bool {
	return c < 0x20 || c == 0x7f
}
