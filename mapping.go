package lazyconf

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Mapping is a read-only, lazily evaluated tree node. Each key is backed by a
// slot that runs its factory on first read and memoizes the result.
//
// Reads are safe from many goroutines. Register and Reset change the shape of
// the mapping and must finish before the mapping is shared with readers.
type Mapping struct {
	shape *Shape
	table *slotTable
	cfg   config
}

// Item is one key/value pair produced by Items.
type Item struct {
	Key   string
	Value any
}

// New returns an empty mapping.
func New(opts ...Option) *Mapping {
	return newMapping(applyOptions(opts))
}

func newMapping(cfg config) *Mapping {
	return &Mapping{
		shape: cfg.shapeOrDefault(),
		table: newSlotTable(),
		cfg:   cfg,
	}
}

// Empty returns a mapping with no attributes that shares m's shape and
// options: logger, activity emitter, evaluator, program cache and functions.
func (m *Mapping) Empty() *Mapping {
	cfg := m.cfg
	cfg.shape = m.shape
	return newMapping(cfg)
}

// Shape returns the shape of the mapping.
func (m *Mapping) Shape() *Shape {
	return m.shape
}

// Register adds an attribute. A nil factory without WriteOnce or Preloaded
// leaves the attribute unset. Registering an existing name fails with
// ErrDuplicateAttribute; use Reset to redefine it.
func (m *Mapping) Register(name string, factory Factory, opts ...AttrOption) error {
	s, err := newSlot(name, factory, applyAttrOptions(opts))
	if err != nil {
		return err
	}
	return m.table.register(s)
}

// Reset replaces an attribute unconditionally, discarding any memoized value.
func (m *Mapping) Reset(name string, factory Factory, opts ...AttrOption) error {
	return m.ResetContext(context.Background(), name, factory, opts...)
}

// ResetContext is Reset with a context for activity hooks.
func (m *Mapping) ResetContext(ctx context.Context, name string, factory Factory, opts ...AttrOption) error {
	s, err := newSlot(name, factory, applyAttrOptions(opts))
	if err != nil {
		return err
	}
	var old any
	if prev, ok := m.table.lookup(name); ok {
		if state, value := prev.peek(); state.HasValue() {
			old = value
		}
	}
	m.table.reset(s)
	m.emit(ctx, attrEventReset, name, old, nil)
	return nil
}

// SetOnce writes a write-once attribute. The first call wins; later calls
// fail with ErrAlreadySet and the stored value is kept.
func (m *Mapping) SetOnce(name string, value any) error {
	return m.SetOnceContext(context.Background(), name, value)
}

// SetOnceContext is SetOnce with a context for activity hooks.
func (m *Mapping) SetOnceContext(ctx context.Context, name string, value any) error {
	s, ok := m.table.lookup(name)
	if !ok {
		return slotErr("set", name, ErrKeyNotFound)
	}
	if err := s.setOnce(value); err != nil {
		return err
	}
	m.emit(ctx, attrEventSet, name, nil, value)
	return nil
}

// Get evaluates key, running its factory on first access.
//
// Get starts a fresh context, so a factory must not call Get on its own
// mapping: it cannot see the evaluation in progress and a cycle back to the
// running key blocks forever. Factories use GetContext with the ctx they
// receive instead.
func (m *Mapping) Get(key string) (any, error) {
	return m.GetContext(context.Background(), key)
}

// GetContext evaluates key with ctx. Factories reading sibling attributes
// must use the context they receive. When ctx ends while another caller's
// evaluation of key is in flight, GetContext returns ctx.Err() wrapped in a
// SlotError and the evaluation carries on for the remaining readers.
func (m *Mapping) GetContext(ctx context.Context, key string) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s, ok := m.visibleSlot(key)
	if !ok {
		return nil, slotErr("get", key, ErrKeyNotFound)
	}
	return s.evaluate(ctx, m.cfg.evaluationLogger())
}

// GetDefault returns fallback when key is not visible.
func (m *Mapping) GetDefault(key string, fallback any) (any, error) {
	if !m.Has(key) {
		return fallback, nil
	}
	return m.Get(key)
}

// Has reports whether key is visible. It never evaluates.
func (m *Mapping) Has(key string) bool {
	_, ok := m.visibleSlot(key)
	return ok
}

// Len returns the number of visible keys.
func (m *Mapping) Len() int {
	return len(m.Keys())
}

// Keys returns the visible keys in registration order. Listing keys never
// evaluates.
func (m *Mapping) Keys() []string {
	names := m.table.names()
	out := names[:0]
	for _, name := range names {
		if !m.shape.IsReserved(name) {
			out = append(out, name)
		}
	}
	return out
}

// Values evaluates every visible key in key order.
func (m *Mapping) Values() ([]any, error) {
	return m.ValuesContext(context.Background())
}

// ValuesContext is Values with ctx.
func (m *Mapping) ValuesContext(ctx context.Context) ([]any, error) {
	out := make([]any, 0, m.Len())
	err := m.Range(ctx, func(_ string, value any) bool {
		out = append(out, value)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Items evaluates every visible key in key order.
func (m *Mapping) Items() ([]Item, error) {
	return m.ItemsContext(context.Background())
}

// ItemsContext is Items with ctx.
func (m *Mapping) ItemsContext(ctx context.Context) ([]Item, error) {
	out := make([]Item, 0, m.Len())
	err := m.Range(ctx, func(key string, value any) bool {
		out = append(out, Item{Key: key, Value: value})
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Range evaluates visible keys one at a time in key order, calling fn after
// each. Iteration stops when fn returns false or an evaluation fails.
func (m *Mapping) Range(ctx context.Context, fn func(key string, value any) bool) error {
	for _, key := range m.Keys() {
		value, err := m.GetContext(ctx, key)
		if err != nil {
			return err
		}
		if !fn(key, value) {
			return nil
		}
	}
	return nil
}

// State reports the slot state of key without evaluating it.
func (m *Mapping) State(key string) (SlotState, bool) {
	s, ok := m.visibleSlot(key)
	if !ok {
		return StateUnset, false
	}
	state, _ := s.peek()
	return state, true
}

// IsLoaded reports whether key already holds a value.
func (m *Mapping) IsLoaded(key string) bool {
	state, ok := m.State(key)
	return ok && state.HasValue()
}

// Doc returns the documentation registered for key.
func (m *Mapping) Doc(key string) string {
	s, ok := m.visibleSlot(key)
	if !ok {
		return ""
	}
	if s.doc == "" {
		return fmt.Sprintf("The %s attribute.", key)
	}
	return s.doc
}

// Copy returns a shallow structural copy. Slots keep their factories and
// memoized values; nothing is evaluated.
func (m *Mapping) Copy() *Mapping {
	return &Mapping{
		shape: m.shape,
		table: m.table.clone(),
		cfg:   m.cfg,
	}
}

// Hash depends only on the shape name and the sorted visible keys, so it is
// the same before and after any evaluation.
func (m *Mapping) Hash() uint64 {
	keys := m.Keys()
	sort.Strings(keys)
	d := xxhash.New()
	_, _ = d.WriteString(m.shape.Name())
	for _, key := range keys {
		_, _ = d.WriteString("\x00")
		_, _ = d.WriteString(key)
	}
	return d.Sum64()
}

// Equal reports whether both mappings share a shape and hold equal values
// under equal keys. It evaluates every attribute of both operands.
func (m *Mapping) Equal(other *Mapping) (bool, error) {
	return m.EqualContext(context.Background(), other)
}

// EqualContext is Equal with ctx.
func (m *Mapping) EqualContext(ctx context.Context, other *Mapping) (bool, error) {
	cmp := &comparer{ctx: ctx, seen: map[[2]*Mapping]struct{}{}}
	return cmp.mappings(m, other)
}

// String renders the visible keys. Values that have not been evaluated show as
// <not loaded>; rendering never evaluates.
func (m *Mapping) String() string {
	var b strings.Builder
	m.render(&b, map[*Mapping]struct{}{})
	return b.String()
}

func (m *Mapping) render(b *strings.Builder, seen map[*Mapping]struct{}) {
	if _, ok := seen[m]; ok {
		b.WriteString("{...}")
		return
	}
	seen[m] = struct{}{}
	defer delete(seen, m)

	b.WriteString("{")
	for i, key := range m.Keys() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(key)
		b.WriteString(": ")
		s, _ := m.table.lookup(key)
		state, value := s.peek()
		if !state.HasValue() {
			b.WriteString("<not loaded>")
			continue
		}
		if nested, ok := value.(*Mapping); ok {
			nested.render(b, seen)
			continue
		}
		fmt.Fprintf(b, "%v", value)
	}
	b.WriteString("}")
}

func (m *Mapping) visibleSlot(key string) (*slot, bool) {
	if m.shape.IsReserved(key) {
		return nil, false
	}
	return m.table.lookup(key)
}

type comparer struct {
	ctx  context.Context
	seen map[[2]*Mapping]struct{}
}

func (c *comparer) mappings(a, b *Mapping) (bool, error) {
	if a == b {
		return true, nil
	}
	if a == nil || b == nil {
		return false, nil
	}
	pair := [2]*Mapping{a, b}
	if _, ok := c.seen[pair]; ok {
		return true, nil
	}
	c.seen[pair] = struct{}{}

	if a.shape.Name() != b.shape.Name() {
		return false, nil
	}
	keys := a.Keys()
	if len(keys) != b.Len() {
		return false, nil
	}
	for _, key := range keys {
		if !b.Has(key) {
			return false, nil
		}
	}
	for _, key := range keys {
		left, err := a.GetContext(c.ctx, key)
		if err != nil {
			return false, err
		}
		right, err := b.GetContext(c.ctx, key)
		if err != nil {
			return false, err
		}
		eq, err := c.values(left, right)
		if err != nil || !eq {
			return false, err
		}
	}
	return true, nil
}

func (c *comparer) values(a, b any) (bool, error) {
	switch left := a.(type) {
	case *Mapping:
		right, ok := b.(*Mapping)
		if !ok {
			return false, nil
		}
		return c.mappings(left, right)
	case *Sequence:
		right, ok := b.(*Sequence)
		if !ok || left.Len() != right.Len() {
			return false, nil
		}
		for i := range left.items {
			eq, err := c.values(left.items[i], right.items[i])
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	case *Set:
		right, ok := b.(*Set)
		if !ok || left.Len() != right.Len() {
			return false, nil
		}
		for _, elem := range left.items {
			if right.Contains(elem) {
				continue
			}
			found := false
			for _, candidate := range right.items {
				eq, err := c.values(elem, candidate)
				if err != nil {
					return false, err
				}
				if eq {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		}
		return true, nil
	default:
		return reflect.DeepEqual(a, b), nil
	}
}
