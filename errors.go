package lazyconf

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrKeyNotFound reports a read of a key outside the visible key set.
	ErrKeyNotFound = errors.New("lazyconf: key not found")
	// ErrUnset reports evaluation of a slot that has neither a factory nor a value.
	ErrUnset = errors.New("lazyconf: attribute has no value")
	// ErrAlreadySet reports a second SetOnce on a write-once attribute.
	ErrAlreadySet = errors.New("lazyconf: write-once attribute already set")
	// ErrNotWriteOnce reports SetOnce on an attribute that is not write-once.
	ErrNotWriteOnce = errors.New("lazyconf: attribute is not write-once")
	// ErrDuplicateAttribute reports Register on a name that already exists.
	ErrDuplicateAttribute = errors.New("lazyconf: attribute already registered")
	// ErrCyclicEvaluation reports a factory re-entering its own evaluation.
	ErrCyclicEvaluation = errors.New("lazyconf: cyclic evaluation")
	// ErrPathTraversal reports a GetPath failure. Use errors.As with *PathError
	// to recover the failing segment.
	ErrPathTraversal = errors.New("lazyconf: path traversal failed")
	// ErrUnhashable reports a set element that cannot be a map key, such as a
	// *Sequence added through NewSet.
	ErrUnhashable = errors.New("lazyconf: set element is not hashable")
	// ErrReservedName reports an import naming a key the mapping's shape hides.
	ErrReservedName = errors.New("lazyconf: key is reserved")
	// ErrCyclicExport reports an attempt to serialise a self-referencing tree.
	ErrCyclicExport = errors.New("lazyconf: cannot export cyclic structure")
)

// SlotError attaches the attribute name and operation to a slot failure.
type SlotError struct {
	Key string
	Op  string
	Err error
}

func (e *SlotError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("lazyconf: %s %q: %s", e.Op, e.Key, trimPrefix(e.Err))
}

func (e *SlotError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CycleError lists the attribute chain that led back into an attribute still
// being evaluated. The last entry repeats the attribute that closed the cycle.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("lazyconf: cyclic evaluation: %s", strings.Join(e.Chain, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrCyclicEvaluation
}

// PathError identifies the segment at which GetPath stopped.
type PathError struct {
	Index   int
	Segment any
	Err     error
}

func (e *PathError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("lazyconf: path segment %d (%#v): %s", e.Index, e.Segment, trimPrefix(e.Err))
}

func (e *PathError) Unwrap() []error {
	if e == nil {
		return nil
	}
	if e.Err == nil {
		return []error{ErrPathTraversal}
	}
	return []error{ErrPathTraversal, e.Err}
}

func slotErr(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &SlotError{Key: key, Op: op, Err: err}
}

func trimPrefix(err error) string {
	if err == nil {
		return "<nil>"
	}
	return strings.TrimPrefix(err.Error(), "lazyconf: ")
}
