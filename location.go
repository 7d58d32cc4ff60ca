package castor

import (
	"fmt"
	"path"
	"strings"
)

// SchemeLocal is the scheme of the local filesystem backend. Transfers
// treat it specially: it is the only scheme the engine will stream bytes
// from or to directly.
const SchemeLocal = "local"

// Location is an immutable, backend-scoped path identifier. It is a
// comparable value type and usable as a map key. Paths are stored
// slash-separated and cleaned; backends convert to their native form.
type Location struct {
	scheme string
	path   string
}

// NewLocation builds a location from a scheme and a slash-separated path.
func NewLocation(scheme, p string) Location {
	return Location{scheme: scheme, path: cleanPath(p)}
}

// ParseLocation parses "scheme://path". A bare path without a scheme is
// treated as local.
func ParseLocation(raw string) (Location, error) {
	if raw == "" {
		return Location{}, fmt.Errorf("empty location")
	}
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return NewLocation(SchemeLocal, raw), nil
	}
	if scheme == "" {
		return Location{}, fmt.Errorf("invalid location %q", raw)
	}
	return NewLocation(scheme, rest), nil
}

func cleanPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	cleaned := path.Clean(p)
	if cleaned == "." {
		return ""
	}
	return strings.TrimSuffix(cleaned, "/")
}

// Scheme returns the backend scheme the location belongs to.
func (l Location) Scheme() string { return l.scheme }

// Path returns the slash-separated path.
func (l Location) Path() string { return l.path }

// IsZero reports whether the location is the zero value.
func (l Location) IsZero() bool { return l.scheme == "" && l.path == "" }

// Join appends path elements, returning a new location.
func (l Location) Join(elem ...string) Location {
	parts := append([]string{l.path}, elem...)
	return Location{scheme: l.scheme, path: cleanPath(path.Join(parts...))}
}

// Parent returns the containing directory's location.
func (l Location) Parent() Location {
	dir := path.Dir(l.path)
	if dir == "." || dir == "/" {
		dir = ""
	}
	return Location{scheme: l.scheme, path: dir}
}

// Name returns the final path element.
func (l Location) Name() string {
	return path.Base(l.path)
}

// RelTo decomposes the location into ordered path segments relative to an
// ancestor location on the same scheme.
func (l Location) RelTo(ancestor Location) ([]string, error) {
	if l.scheme != ancestor.scheme {
		return nil, fmt.Errorf("%s is not relative to %s: scheme mismatch", l, ancestor)
	}
	if l.path == ancestor.path {
		return nil, nil
	}
	prefix := ancestor.path
	if prefix != "" {
		prefix += "/"
	}
	rel, ok := strings.CutPrefix(l.path, prefix)
	if !ok {
		return nil, fmt.Errorf("%s is not under %s", l, ancestor)
	}
	return strings.Split(rel, "/"), nil
}

func (l Location) String() string {
	return l.scheme + "://" + l.path
}
