package lazyconf

import (
	"fmt"
	"iter"
	"reflect"
	"sort"
	"strings"
)

// Sequence is the frozen form of a slice or array.
type Sequence struct {
	items []any
}

// NewSequence returns a sequence holding a copy of items. Items are stored as
// given; use Freeze to convert nested plain data.
func NewSequence(items ...any) *Sequence {
	out := make([]any, len(items))
	copy(out, items)
	return &Sequence{items: out}
}

// Len returns the number of elements.
func (s *Sequence) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// At returns the element at index i and whether i is in range.
func (s *Sequence) At(i int) (any, bool) {
	if s == nil || i < 0 || i >= len(s.items) {
		return nil, false
	}
	return s.items[i], true
}

// Items returns a copy of the elements.
func (s *Sequence) Items() []any {
	if s == nil {
		return nil
	}
	out := make([]any, len(s.items))
	copy(out, s.items)
	return out
}

// All iterates index/element pairs in order.
func (s *Sequence) All() iter.Seq2[int, any] {
	return func(yield func(int, any) bool) {
		if s == nil {
			return
		}
		for i, item := range s.items {
			if !yield(i, item) {
				return
			}
		}
	}
}

func (s *Sequence) String() string {
	if s == nil {
		return "()"
	}
	parts := make([]string, len(s.items))
	for i, item := range s.items {
		parts[i] = fmt.Sprint(item)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Set is the frozen form of a map[K]struct{}. Elements are kept in a stable
// order derived from their printed form.
type Set struct {
	items []any
	index map[any]struct{}
}

// NewSet returns a set of the comparable elements in items. Duplicates collapse
// and non-comparable elements are rejected with ErrUnhashable.
func NewSet(items ...any) (*Set, error) {
	s := &Set{index: make(map[any]struct{}, len(items))}
	for _, item := range items {
		if err := s.add(item); err != nil {
			return nil, err
		}
	}
	s.sort()
	return s, nil
}

func (s *Set) add(item any) error {
	if !hashable(item) {
		return fmt.Errorf("%w: %T", ErrUnhashable, item)
	}
	if _, ok := s.index[item]; ok {
		return nil
	}
	s.index[item] = struct{}{}
	s.items = append(s.items, item)
	return nil
}

func (s *Set) sort() {
	sort.SliceStable(s.items, func(i, j int) bool {
		return fmt.Sprint(s.items[i]) < fmt.Sprint(s.items[j])
	})
}

// Len returns the number of elements.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Contains reports membership. Non-comparable values are never members.
func (s *Set) Contains(v any) bool {
	if s == nil || !hashable(v) {
		return false
	}
	_, ok := s.index[v]
	return ok
}

// Items returns a copy of the elements in set order.
func (s *Set) Items() []any {
	if s == nil {
		return nil
	}
	out := make([]any, len(s.items))
	copy(out, s.items)
	return out
}

// All iterates the elements in set order.
func (s *Set) All() iter.Seq[any] {
	return func(yield func(any) bool) {
		if s == nil {
			return
		}
		for _, item := range s.items {
			if !yield(item) {
				return
			}
		}
	}
}

func (s *Set) String() string {
	if s == nil {
		return "set()"
	}
	parts := make([]string, len(s.items))
	for i, item := range s.items {
		parts[i] = fmt.Sprint(item)
	}
	return "set(" + strings.Join(parts, ", ") + ")"
}

func hashable(v any) bool {
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).Comparable()
}
