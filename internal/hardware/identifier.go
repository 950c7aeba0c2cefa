package hardware

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidIdentifier is returned by Parse for malformed identifiers.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// Identifier is a hierarchical key naming a node or sensor, rendered as
// slash separated segments such as "hdd/0/rawvalue/5". Identifiers are
// comparable and can be used as map keys.
type Identifier struct {
	path string
}

// NewIdentifier builds an identifier from segments. Segments are stored
// escaped: "%" and "/" become "%25" and "%2F" and an empty segment is
// rendered as a lone "%", so distinct segments never render alike and
// every identifier survives a render/parse round trip.
func NewIdentifier(segments ...string) Identifier {
	var id Identifier
	return id.Child(segments...)
}

// Parse reads an identifier rendered by String. A leading slash is
// accepted.
func Parse(s string) (Identifier, error) {
	s = strings.TrimPrefix(s, "/")
	if s == "" {
		return Identifier{}, fmt.Errorf("empty identifier: %w", ErrInvalidIdentifier)
	}
	for _, seg := range strings.Split(s, "/") {
		if seg == "" {
			return Identifier{}, fmt.Errorf("%q has an empty segment: %w", s, ErrInvalidIdentifier)
		}
		if _, err := unescapeSegment(seg); err != nil {
			return Identifier{}, fmt.Errorf("%q: %w", s, err)
		}
	}
	return Identifier{path: s}, nil
}

const emptySegment = "%"

var segmentEscaper = strings.NewReplacer("%", "%25", "/", "%2F")

func escapeSegment(s string) string {
	if s == "" {
		return emptySegment
	}
	return segmentEscaper.Replace(s)
}

func unescapeSegment(seg string) (string, error) {
	if seg == emptySegment {
		return "", nil
	}
	if !strings.Contains(seg, "%") {
		return seg, nil
	}
	var b strings.Builder
	for i := 0; i < len(seg); i++ {
		if seg[i] != '%' {
			b.WriteByte(seg[i])
			continue
		}
		switch {
		case strings.HasPrefix(seg[i:], "%25"):
			b.WriteByte('%')
		case strings.HasPrefix(seg[i:], "%2F"):
			b.WriteByte('/')
		default:
			return "", fmt.Errorf("bad escape in segment %q: %w", seg, ErrInvalidIdentifier)
		}
		i += 2
	}
	return b.String(), nil
}

// Child returns the identifier extended by segments.
func (id Identifier) Child(segments ...string) Identifier {
	var b strings.Builder
	b.WriteString(id.path)
	for _, seg := range segments {
		if b.Len() > 0 {
			b.WriteByte('/')
		}
		b.WriteString(escapeSegment(seg))
	}
	return Identifier{path: b.String()}
}

// Parent returns the identifier without its last segment. It reports
// false for single segment and zero identifiers.
func (id Identifier) Parent() (Identifier, bool) {
	i := strings.LastIndexByte(id.path, '/')
	if i < 0 {
		return Identifier{}, false
	}
	return Identifier{path: id.path[:i]}, true
}

// Segments returns the identifier's segments, unescaped.
func (id Identifier) Segments() []string {
	if id.path == "" {
		return nil
	}
	parts := strings.Split(id.path, "/")
	for i, p := range parts {
		// paths are validated on construction
		parts[i], _ = unescapeSegment(p)
	}
	return parts
}

// HasPrefix reports whether prefix names id or one of its ancestors.
func (id Identifier) HasPrefix(prefix Identifier) bool {
	if prefix.path == "" {
		return true
	}
	return id.path == prefix.path || strings.HasPrefix(id.path, prefix.path+"/")
}

// IsZero reports whether id is the zero identifier.
func (id Identifier) IsZero() bool {
	return id.path == ""
}

func (id Identifier) String() string {
	return id.path
}

// MarshalText implements encoding.TextMarshaler.
func (id Identifier) MarshalText() ([]byte, error) {
	return []byte(id.path), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identifier) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// SettingKey returns the settings key for a per-identifier option such
// as "tray" or "traycolor".
func SettingKey(id Identifier, suffix string) string {
	return id.Child(suffix).String()
}
