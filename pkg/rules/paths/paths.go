package paths

import (
	"fmt"
	"strings"
)

// Getter is the read contract shared by plain maps and masked views.
// Lookup returns the value for a key and whether the key exists.
type Getter interface {
	Lookup(key string) (interface{}, bool)
}

// MapGetter adapts a plain map to the Getter interface.
type MapGetter map[string]interface{}

// Lookup returns the value for key and whether it exists.
func (m MapGetter) Lookup(key string) (interface{}, bool) {
	v, ok := m[key]
	return v, ok
}

// NotFoundError indicates a read or delete addressed a missing segment.
type NotFoundError struct {
	Path    string
	Segment string
}

// Error returns the error message.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("path %q not found: missing segment %q", e.Path, e.Segment)
}

// Normalize splits a path into its ordered segments.
// Slash-separated paths take precedence over dot-separated ones; a bare
// name yields a single segment.
func Normalize(path string) []string {
	path = strings.TrimSpace(path)
	if strings.Contains(path, "/") {
		return strings.Split(strings.Trim(path, "/"), "/")
	}
	return strings.Split(path, ".")
}

// Get resolves a normalized path against a map-shaped root.
// Every segment must exist; a missing intermediate or leaf returns a
// NotFoundError.
func Get(root Getter, path string) (interface{}, error) {
	return GetSegments(root, Normalize(path), path)
}

// GetSegments is Get over pre-normalized segments. The path argument is
// used only for error reporting.
func GetSegments(root Getter, segments []string, path string) (interface{}, error) {
	var current interface{} = root
	for _, seg := range segments {
		getter, ok := asGetter(current)
		if !ok {
			return nil, &NotFoundError{Path: path, Segment: seg}
		}
		next, ok := getter.Lookup(seg)
		if !ok {
			return nil, &NotFoundError{Path: path, Segment: seg}
		}
		current = next
	}
	return current, nil
}

// Set writes a value at a normalized path, creating empty intermediate
// maps for any missing segment. Writes only fail when an existing
// intermediate value is not a map.
func Set(root map[string]interface{}, path string, value interface{}) error {
	return SetSegments(root, Normalize(path), path, value)
}

// SetSegments is Set over pre-normalized segments.
func SetSegments(root map[string]interface{}, segments []string, path string, value interface{}) error {
	current := root
	for _, seg := range segments[:len(segments)-1] {
		next, ok := current[seg]
		if !ok {
			child := make(map[string]interface{})
			current[seg] = child
			current = child
			continue
		}
		child, ok := next.(map[string]interface{})
		if !ok {
			return fmt.Errorf("path %q: segment %q is not a map (got %T)", path, seg, next)
		}
		current = child
	}
	current[segments[len(segments)-1]] = value
	return nil
}

// Delete removes the value at a normalized path. A missing intermediate
// or leaf returns a NotFoundError.
func Delete(root map[string]interface{}, path string) error {
	return DeleteSegments(root, Normalize(path), path)
}

// DeleteSegments is Delete over pre-normalized segments.
func DeleteSegments(root map[string]interface{}, segments []string, path string) error {
	current := root
	for _, seg := range segments[:len(segments)-1] {
		next, ok := current[seg]
		if !ok {
			return &NotFoundError{Path: path, Segment: seg}
		}
		child, ok := next.(map[string]interface{})
		if !ok {
			return &NotFoundError{Path: path, Segment: seg}
		}
		current = child
	}

	leaf := segments[len(segments)-1]
	if _, ok := current[leaf]; !ok {
		return &NotFoundError{Path: path, Segment: leaf}
	}
	delete(current, leaf)
	return nil
}

// asGetter adapts the container types the resolver understands.
func asGetter(v interface{}) (Getter, bool) {
	switch t := v.(type) {
	case Getter:
		return t, true
	case map[string]interface{}:
		return MapGetter(t), true
	default:
		return nil, false
	}
}
