package lazyconf

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
)

// Export evaluates value and returns plain data that encoding/json and
// gopkg.in/yaml.v3 can encode: mappings become map[string]any, sequences and
// sets become []any (sets in set order), reflect.Type values become their
// name. A node that contains itself fails with ErrCyclicExport; a node shared
// by two branches is exported twice.
func Export(value any) (any, error) {
	return ExportContext(context.Background(), value)
}

// ExportContext is Export with ctx for the evaluations it triggers.
func ExportContext(ctx context.Context, value any) (any, error) {
	e := &exporter{ctx: contextOrBackground(ctx), active: map[any]struct{}{}}
	return e.export(value)
}

type exporter struct {
	ctx    context.Context
	active map[any]struct{}
}

func (e *exporter) enter(node any) error {
	if _, ok := e.active[node]; ok {
		return fmt.Errorf("%w: %T", ErrCyclicExport, node)
	}
	e.active[node] = struct{}{}
	return nil
}

func (e *exporter) export(value any) (any, error) {
	switch typed := value.(type) {
	case nil:
		return nil, nil
	case reflect.Type:
		return typed.String(), nil
	case *Mapping:
		if typed == nil {
			return nil, nil
		}
		if err := e.enter(typed); err != nil {
			return nil, err
		}
		defer delete(e.active, typed)
		out := make(map[string]any, typed.Len())
		for _, key := range typed.Keys() {
			item, err := typed.GetContext(e.ctx, key)
			if err != nil {
				return nil, err
			}
			if out[key], err = e.export(item); err != nil {
				return nil, err
			}
		}
		return out, nil
	case *Sequence:
		if typed == nil {
			return nil, nil
		}
		if err := e.enter(typed); err != nil {
			return nil, err
		}
		defer delete(e.active, typed)
		return e.list(typed.items)
	case *Set:
		if typed == nil {
			return nil, nil
		}
		if err := e.enter(typed); err != nil {
			return nil, err
		}
		defer delete(e.active, typed)
		return e.list(typed.items)
	default:
		return value, nil
	}
}

func (e *exporter) list(items []any) ([]any, error) {
	out := make([]any, len(items))
	for i, item := range items {
		plain, err := e.export(item)
		if err != nil {
			return nil, err
		}
		out[i] = plain
	}
	return out, nil
}

// MarshalJSON evaluates the whole tree and encodes it as a JSON object.
func (m *Mapping) MarshalJSON() ([]byte, error) {
	return marshalJSON(m)
}

// MarshalYAML implements yaml.Marshaler.
func (m *Mapping) MarshalYAML() (any, error) {
	return Export(m)
}

// MarshalJSON encodes the sequence as a JSON array.
func (s *Sequence) MarshalJSON() ([]byte, error) {
	return marshalJSON(s)
}

// MarshalYAML implements yaml.Marshaler.
func (s *Sequence) MarshalYAML() (any, error) {
	return Export(s)
}

// MarshalJSON encodes the set as a JSON array in set order.
func (s *Set) MarshalJSON() ([]byte, error) {
	return marshalJSON(s)
}

// MarshalYAML implements yaml.Marshaler.
func (s *Set) MarshalYAML() (any, error) {
	return Export(s)
}

func marshalJSON(value any) ([]byte, error) {
	plain, err := Export(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(plain)
}
