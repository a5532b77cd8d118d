package inspection

import (
	"context"
	"fmt"

	"forgeline/anvil/pkg/rules/paths"
)

// GetNestedField resolves a path against a record: the first segment is a
// top-level field, the remainder descends map values.
func GetNestedField(rec Record, path string) (interface{}, error) {
	segments := paths.Normalize(path)

	top, ok := rec.Field(segments[0])
	if !ok {
		return nil, &paths.NotFoundError{Path: path, Segment: segments[0]}
	}
	if len(segments) == 1 {
		return top, nil
	}

	m, ok := top.(map[string]interface{})
	if !ok {
		return nil, &paths.NotFoundError{Path: path, Segment: segments[1]}
	}
	return paths.GetSegments(paths.MapGetter(m), segments[1:], path)
}

// SetNestedField writes a value at a path rooted in a record, creating
// missing intermediate maps. The top-level field is re-assigned after the
// nested mutation so the persistence layer observes the change, and the
// record is saved.
func SetNestedField(ctx context.Context, rec Record, path string, value interface{}) error {
	segments := paths.Normalize(path)

	if len(segments) == 1 {
		if err := rec.SetField(segments[0], value); err != nil {
			return err
		}
		return rec.Save(ctx)
	}

	m := topLevelMap(rec, segments[0])
	if m == nil {
		return fmt.Errorf("field %q does not hold a mapping", segments[0])
	}
	if err := paths.SetSegments(m, segments[1:], path, value); err != nil {
		return err
	}
	if err := rec.SetField(segments[0], m); err != nil {
		return err
	}
	return rec.Save(ctx)
}

// DeleteNestedField removes the value at a path rooted in a record. A
// missing segment is a not-found error.
func DeleteNestedField(ctx context.Context, rec Record, path string) error {
	segments := paths.Normalize(path)

	if len(segments) == 1 {
		if err := rec.DeleteField(segments[0]); err != nil {
			return err
		}
		return rec.Save(ctx)
	}

	top, ok := rec.Field(segments[0])
	if !ok {
		return &paths.NotFoundError{Path: path, Segment: segments[0]}
	}
	m, ok := top.(map[string]interface{})
	if !ok {
		return &paths.NotFoundError{Path: path, Segment: segments[1]}
	}
	if err := paths.DeleteSegments(m, segments[1:], path); err != nil {
		return err
	}
	if err := rec.SetField(segments[0], m); err != nil {
		return err
	}
	return rec.Save(ctx)
}

// topLevelMap returns the named map field, substituting a fresh map when
// the field is absent or nil. A non-map value yields nil.
func topLevelMap(rec Record, name string) map[string]interface{} {
	top, ok := rec.Field(name)
	if !ok || top == nil {
		return make(map[string]interface{})
	}
	m, ok := top.(map[string]interface{})
	if !ok {
		return nil
	}
	if m == nil {
		return make(map[string]interface{})
	}
	return m
}
