package lazyconf

import (
	"context"
	"fmt"
	"reflect"
)

// GetPath indexes into m one segment at a time.
func (m *Mapping) GetPath(path ...any) (any, error) {
	return GetPathContext(context.Background(), m, path...)
}

// GetPath indexes root one segment at a time. String segments index mappings
// and plain maps; integer segments index sequences, slices and arrays. The
// first failing segment is reported as a *PathError.
func GetPath(root any, path ...any) (any, error) {
	return GetPathContext(context.Background(), root, path...)
}

// GetPathContext is GetPath with ctx for the evaluations it triggers.
func GetPathContext(ctx context.Context, root any, path ...any) (any, error) {
	current := root
	for i, segment := range path {
		next, err := step(ctx, current, segment)
		if err != nil {
			return nil, &PathError{Index: i, Segment: segment, Err: err}
		}
		current = next
	}
	return current, nil
}

func step(ctx context.Context, current, segment any) (any, error) {
	switch node := current.(type) {
	case *Mapping:
		key, ok := segment.(string)
		if !ok {
			return nil, fmt.Errorf("mapping key must be a string, got %T", segment)
		}
		return node.GetContext(ctx, key)
	case *Sequence:
		idx, err := indexOf(segment, node.Len())
		if err != nil {
			return nil, err
		}
		return node.items[idx], nil
	case nil:
		return nil, fmt.Errorf("cannot index nil")
	}

	rv := reflect.ValueOf(current)
	switch rv.Kind() {
	case reflect.Map:
		key := reflect.ValueOf(segment)
		if !key.IsValid() || !key.Type().AssignableTo(rv.Type().Key()) {
			return nil, fmt.Errorf("key %#v does not fit %s", segment, rv.Type())
		}
		value := rv.MapIndex(key)
		if !value.IsValid() {
			return nil, ErrKeyNotFound
		}
		return value.Interface(), nil
	case reflect.Slice, reflect.Array:
		idx, err := indexOf(segment, rv.Len())
		if err != nil {
			return nil, err
		}
		return rv.Index(idx).Interface(), nil
	default:
		return nil, fmt.Errorf("%T is not indexable", current)
	}
}

func indexOf(segment any, length int) (int, error) {
	rv := reflect.ValueOf(segment)
	var idx int
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		idx = int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		idx = int(rv.Uint())
	default:
		return 0, fmt.Errorf("sequence index must be an integer, got %T", segment)
	}
	if idx < 0 || idx >= length {
		return 0, fmt.Errorf("index %d out of range [0, %d)", idx, length)
	}
	return idx, nil
}
