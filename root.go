package lazyconf

import (
	"reflect"
	"sync"
)

// RootShape is the shape of the registry returned by Root. It hides the
// "__doc__" attribute from the data view.
var RootShape = NewShape("Root", BaseShape, "__doc__")

var (
	rootOnce sync.Once
	root     *Mapping
)

// Root returns the process wide registry. Its visible keys are "Mapping" (the
// reflect.Type of *Mapping), "Freeze" and "Thaw", all write-once and already
// set, so reading them never runs a factory.
func Root() *Mapping {
	rootOnce.Do(func() {
		root = buildRoot()
	})
	return root
}

func buildRoot() *Mapping {
	m := New(WithShape(RootShape))
	entries := []struct {
		name  string
		value any
		doc   string
	}{
		{"Mapping", reflect.TypeFor[*Mapping](), "The lazily evaluated mapping type."},
		{"Freeze", Freeze, "Converts plain nested data into an immutable tree."},
		{"Thaw", Thaw, "Converts an immutable tree back into plain data."},
		{"__doc__", "Entry points for building and unpacking lazy configuration trees.", ""},
	}
	for _, e := range entries {
		if err := m.Register(e.name, nil, WriteOnce(), Preloaded(e.value), WithDoc(e.doc)); err != nil {
			panic(err)
		}
	}
	return m
}
