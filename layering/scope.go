package layering

import (
	"errors"
	"fmt"
	"sort"

	"github.com/goliatone/go-lazyconf"
)

// Scope models a named precedence bucket (system, tenant, user, etc.). Higher
// priority values represent stronger layers.
type Scope struct {
	Name     string         `json:"name"`
	Label    string         `json:"label,omitempty"`
	Priority int            `json:"priority"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ScopeOption configures metadata on Scope creation.
type ScopeOption func(*Scope)

// WithScopeLabel sets a human-friendly label on the scope.
func WithScopeLabel(label string) ScopeOption {
	return func(s *Scope) {
		s.Label = label
	}
}

// WithScopeMetadata attaches a copy of metadata to the scope.
func WithScopeMetadata(metadata map[string]any) ScopeOption {
	return func(s *Scope) {
		s.Metadata = copyMetadata(metadata)
	}
}

// NewScope builds a Scope. Validation is deferred to NewStack.
func NewScope(name string, priority int, opts ...ScopeOption) Scope {
	scope := Scope{Name: name, Priority: priority}
	for _, opt := range opts {
		if opt != nil {
			opt(&scope)
		}
	}
	return scope
}

func (s Scope) clone() Scope {
	s.Metadata = copyMetadata(s.Metadata)
	return s
}

// Layer pairs a scope with the tree captured for it.
type Layer struct {
	Scope      Scope
	Tree       *lazyconf.Mapping
	SnapshotID string
}

// LayerOption configures optional metadata for a layer.
type LayerOption func(*Layer)

// WithSnapshotID sets the snapshot identifier reported by Trace.
func WithSnapshotID(id string) LayerOption {
	return func(layer *Layer) {
		layer.SnapshotID = id
	}
}

// NewLayer pairs scope with tree. Trees are immutable, so the layer shares
// tree rather than copying it.
func NewLayer(scope Scope, tree *lazyconf.Mapping, opts ...LayerOption) Layer {
	layer := Layer{Scope: scope.clone(), Tree: tree}
	for _, opt := range opts {
		if opt != nil {
			opt(&layer)
		}
	}
	return layer
}

// NewPlainLayer freezes data and wraps it in a layer.
func NewPlainLayer(scope Scope, data map[string]any, opts ...LayerOption) (Layer, error) {
	tree, err := lazyconf.FromPlain(data)
	if err != nil {
		return Layer{}, err
	}
	return NewLayer(scope, tree, opts...), nil
}

var (
	// ErrScopeNameRequired indicates a missing scope name.
	ErrScopeNameRequired = errors.New("layering: scope name must be provided")
	// ErrDuplicateScopeName indicates two layers with the same scope name.
	ErrDuplicateScopeName = errors.New("layering: scope names must be unique")
	// ErrPriorityOrder indicates two layers with the same priority.
	ErrPriorityOrder = errors.New("layering: priorities must be strictly ordered")
	// ErrEmptyStack indicates Merge was called on a stack without layers.
	ErrEmptyStack = errors.New("layering: stack must include at least one layer")
)

// Stack is an immutable list of layers ordered from strongest to weakest.
type Stack struct {
	layers []Layer
}

// NewStack validates layers and sorts them so that the highest priority comes
// first.
func NewStack(layers ...Layer) (*Stack, error) {
	seen := make(map[string]struct{}, len(layers))
	copied := make([]Layer, len(layers))
	for i, layer := range layers {
		if layer.Scope.Name == "" {
			return nil, ErrScopeNameRequired
		}
		if _, ok := seen[layer.Scope.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateScopeName, layer.Scope.Name)
		}
		seen[layer.Scope.Name] = struct{}{}
		layer.Scope = layer.Scope.clone()
		copied[i] = layer
	}

	sort.Slice(copied, func(i, j int) bool {
		if copied[i].Scope.Priority == copied[j].Scope.Priority {
			return copied[i].Scope.Name < copied[j].Scope.Name
		}
		return copied[i].Scope.Priority > copied[j].Scope.Priority
	})

	for i := 1; i < len(copied); i++ {
		if copied[i-1].Scope.Priority <= copied[i].Scope.Priority {
			return nil, fmt.Errorf("%w: %d", ErrPriorityOrder, copied[i].Scope.Priority)
		}
	}
	return &Stack{layers: copied}, nil
}

// Layers returns a copy of the layers, strongest first.
func (s *Stack) Layers() []Layer {
	if s == nil || len(s.layers) == 0 {
		return nil
	}
	out := make([]Layer, len(s.layers))
	for i, layer := range s.layers {
		layer.Scope = layer.Scope.clone()
		out[i] = layer
	}
	return out
}

// Len returns the number of layers in the stack.
func (s *Stack) Len() int {
	if s == nil {
		return 0
	}
	return len(s.layers)
}

// Merge overlays every layer tree, see Merge.
func (s *Stack) Merge() (*lazyconf.Mapping, error) {
	if s.Len() == 0 {
		return nil, ErrEmptyStack
	}
	trees := make([]*lazyconf.Mapping, len(s.layers))
	for i, layer := range s.layers {
		trees[i] = layer.Tree
	}
	return Merge(trees...)
}

func copyMetadata(origin map[string]any) map[string]any {
	if len(origin) == 0 {
		return nil
	}
	out := make(map[string]any, len(origin))
	for key, value := range origin {
		out[key] = value
	}
	return out
}
