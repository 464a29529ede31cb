package lazyconf

import "sort"

// Shape names a family of mappings and fixes the attribute names that stay
// out of every data view (keys, iteration, length, Get) for that family.
// Shapes are immutable once built.
type Shape struct {
	name     string
	reserved map[string]struct{}
}

// BaseShape is the default shape. It reserves nothing.
var BaseShape = NewShape("Mapping", nil)

// NewShape builds a shape whose reserved names are reserved merged with those
// of parent.
func NewShape(name string, parent *Shape, reserved ...string) *Shape {
	s := &Shape{name: name, reserved: make(map[string]struct{}, len(reserved))}
	if parent != nil {
		for key := range parent.reserved {
			s.reserved[key] = struct{}{}
		}
	}
	for _, key := range reserved {
		s.reserved[key] = struct{}{}
	}
	return s
}

// Name identifies the shape. It is part of Mapping.Hash.
func (s *Shape) Name() string {
	if s == nil {
		return BaseShape.name
	}
	return s.name
}

// IsReserved reports whether key is hidden from the data view.
func (s *Shape) IsReserved(key string) bool {
	if s == nil {
		return false
	}
	_, ok := s.reserved[key]
	return ok
}

// Reserved returns the reserved names sorted alphabetically.
func (s *Shape) Reserved() []string {
	if s == nil || len(s.reserved) == 0 {
		return nil
	}
	out := make([]string, 0, len(s.reserved))
	for key := range s.reserved {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
