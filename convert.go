package lazyconf

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Freeze converts plain nested data into its immutable form:
//
//   - reflect.Type values and values already produced by Freeze pass through;
//   - maps become a *Mapping with one lazily frozen attribute per key;
//   - maps whose element type is struct{} become a *Set;
//   - slices and arrays (except byte strings) become a *Sequence, apart from
//     comparable arrays held as set elements, which are kept as they are;
//   - everything else passes through unchanged.
//
// Nested mappings are frozen on first read, not up front. A source map or slice
// reached twice, including through a cycle, converts to one shared node.
// Non-string map keys are converted with fmt.Sprint. Options apply to every
// Mapping the call builds.
func Freeze(value any, opts ...Option) (any, error) {
	c := &converter{cfg: applyOptions(opts), memo: map[identity]any{}}
	return c.freeze(value)
}

// FromPlain freezes data, which must be a map.
func FromPlain(data any, opts ...Option) (*Mapping, error) {
	frozen, err := Freeze(data, opts...)
	if err != nil {
		return nil, err
	}
	m, ok := frozen.(*Mapping)
	if !ok {
		return nil, fmt.Errorf("lazyconf: from plain: expected a map, got %T", data)
	}
	return m, nil
}

// identity keys the conversion memo. Length is part of a slice identity
// because slices sharing a backing array are distinct values.
type identity struct {
	typ reflect.Type
	ptr uintptr
	len int
}

func identityOf(rv reflect.Value) (identity, bool) {
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() {
			return identity{}, false
		}
		return identity{typ: rv.Type(), ptr: rv.Pointer()}, true
	case reflect.Slice:
		if rv.Len() == 0 {
			return identity{}, false
		}
		return identity{typ: rv.Type(), ptr: rv.Pointer(), len: rv.Len()}, true
	default:
		return identity{}, false
	}
}

// converter owns the memo for one Freeze call. The memo outlives the call
// because lazily frozen attributes keep converting through it.
type converter struct {
	cfg config

	mu   sync.Mutex
	memo map[identity]any
}

func (c *converter) freeze(value any) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freezeLocked(value)
}

func (c *converter) freezeLocked(value any) (any, error) {
	switch value.(type) {
	case nil:
		return nil, nil
	case reflect.Type, *Mapping, *Sequence, *Set:
		return value, nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Map:
		if isSetType(rv.Type()) {
			return c.freezeSet(rv)
		}
		return c.freezeMapping(rv)
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return value, nil
		}
		return c.freezeSequence(rv)
	default:
		return value, nil
	}
}

func (c *converter) freezeMapping(rv reflect.Value) (any, error) {
	id, tracked := identityOf(rv)
	if tracked {
		if cached, ok := c.memo[id]; ok {
			return cached, nil
		}
	}

	m := newMapping(c.cfg)
	if tracked {
		c.memo[id] = m
	}

	type entry struct {
		name  string
		value any
	}
	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		entries = append(entries, entry{name: keyName(iter.Key()), value: iter.Value().Interface()})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].name < entries[j].name
	})

	for _, e := range entries {
		source := e.value
		factory := func(context.Context) (any, error) {
			return c.freeze(source)
		}
		if err := m.Register(e.name, factory); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (c *converter) freezeSequence(rv reflect.Value) (any, error) {
	id, tracked := identityOf(rv)
	if tracked {
		if cached, ok := c.memo[id]; ok {
			return cached, nil
		}
	}

	seq := &Sequence{items: make([]any, rv.Len())}
	if tracked {
		c.memo[id] = seq
	}
	for i := 0; i < rv.Len(); i++ {
		item, err := c.freezeLocked(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		seq.items[i] = item
	}
	return seq, nil
}

func (c *converter) freezeSet(rv reflect.Value) (any, error) {
	id, tracked := identityOf(rv)
	if tracked {
		if cached, ok := c.memo[id]; ok {
			return cached, nil
		}
	}

	set := &Set{index: make(map[any]struct{}, rv.Len())}
	if tracked {
		c.memo[id] = set
	}
	iter := rv.MapRange()
	for iter.Next() {
		key := iter.Key()
		if key.Kind() == reflect.Interface {
			key = key.Elem()
		}
		// Comparable arrays stay whole so the thawed set can key on them.
		if key.Kind() == reflect.Array && key.Comparable() {
			if err := set.add(key.Interface()); err != nil {
				return nil, err
			}
			continue
		}
		item, err := c.freezeLocked(iter.Key().Interface())
		if err != nil {
			return nil, err
		}
		if err := set.add(item); err != nil {
			return nil, err
		}
	}
	set.sort()
	return set, nil
}

func isSetType(t reflect.Type) bool {
	elem := t.Elem()
	return elem.Kind() == reflect.Struct && elem.NumField() == 0
}

func keyName(key reflect.Value) string {
	if key.Kind() == reflect.String {
		return key.String()
	}
	return fmt.Sprint(key.Interface())
}

// Thaw converts a frozen tree back into plain mutable data, evaluating every
// attribute it reaches: a *Mapping becomes map[string]any, a *Sequence
// becomes []any and a *Set becomes map[any]struct{}. Shared nodes thaw to one
// shared value and cycles close on the value being built.
func Thaw(value any) (any, error) {
	return ThawContext(context.Background(), value)
}

// ThawContext is Thaw with ctx for the evaluations it triggers.
func ThawContext(ctx context.Context, value any) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	t := &thawer{ctx: ctx, memo: map[any]any{}}
	return t.thaw(value)
}

// ToPlain thaws tree into a map.
func ToPlain(tree *Mapping) (map[string]any, error) {
	if tree == nil {
		return nil, nil
	}
	plain, err := Thaw(tree)
	if err != nil {
		return nil, err
	}
	return plain.(map[string]any), nil
}

type thawer struct {
	ctx  context.Context
	memo map[any]any
}

func (t *thawer) thaw(value any) (any, error) {
	switch typed := value.(type) {
	case *Mapping:
		if typed == nil {
			return nil, nil
		}
		if cached, ok := t.memo[typed]; ok {
			return cached, nil
		}
		out := make(map[string]any, typed.Len())
		t.memo[typed] = out
		for _, key := range typed.Keys() {
			item, err := typed.GetContext(t.ctx, key)
			if err != nil {
				return nil, err
			}
			plain, err := t.thaw(item)
			if err != nil {
				return nil, err
			}
			out[key] = plain
		}
		return out, nil
	case *Sequence:
		if typed == nil {
			return nil, nil
		}
		if cached, ok := t.memo[typed]; ok {
			return cached, nil
		}
		out := make([]any, len(typed.items))
		t.memo[typed] = out
		for i, item := range typed.items {
			plain, err := t.thaw(item)
			if err != nil {
				return nil, err
			}
			out[i] = plain
		}
		return out, nil
	case *Set:
		if typed == nil {
			return nil, nil
		}
		if cached, ok := t.memo[typed]; ok {
			return cached, nil
		}
		out := make(map[any]struct{}, len(typed.items))
		t.memo[typed] = out
		for _, item := range typed.items {
			plain, err := t.thaw(item)
			if err != nil {
				return nil, err
			}
			if !hashable(plain) {
				return nil, fmt.Errorf("%w: %T", ErrUnhashable, plain)
			}
			out[plain] = struct{}{}
		}
		return out, nil
	default:
		return value, nil
	}
}
