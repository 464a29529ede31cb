package lazyconf

import (
	"errors"
	"testing"
)

func TestWrapEvaluationErrorCreatesMetadata(t *testing.T) {
	base := errors.New("boom")
	err := wrapEvaluationError("expr", "flag && missing", "enabled", base)

	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T", err)
	}
	if evalErr.Engine != "expr" {
		t.Fatalf("expected engine expr, got %q", evalErr.Engine)
	}
	if evalErr.Expr != "flag && missing" {
		t.Fatalf("expected expression metadata, got %q", evalErr.Expr)
	}
	if evalErr.Key != "enabled" {
		t.Fatalf("expected key metadata, got %q", evalErr.Key)
	}
	if !errors.Is(err, base) {
		t.Fatalf("wrapped error should unwrap to base error")
	}
}

func TestWrapEvaluationErrorAugmentsExisting(t *testing.T) {
	base := errors.New("compile failure")
	existing := &EvaluationError{
		Engine: "expr",
		Err:    base,
	}

	err := wrapEvaluationError("cel", "rule", "limit", existing)
	if !errors.Is(err, base) {
		t.Fatalf("expected base error to unwrap")
	}
	if existing.Engine != "expr" {
		t.Fatalf("existing engine should not be overwritten, got %q", existing.Engine)
	}
	if existing.Expr != "rule" {
		t.Fatalf("expression should be filled, got %q", existing.Expr)
	}
	if existing.Key != "limit" {
		t.Fatalf("key should be filled, got %q", existing.Key)
	}
}

func TestWrapEvaluatorErrorKeepsPrefixedErrors(t *testing.T) {
	prefixed := errors.New("lazyconf: already prefixed")
	if got := wrapEvaluatorError("cel", prefixed); got != prefixed {
		t.Fatalf("expected prefixed error returned unchanged, got %v", got)
	}
	plain := errors.New("parse")
	got := wrapEvaluatorError("cel", plain)
	if !errors.Is(got, plain) || got.Error() != "lazyconf: cel evaluator: parse" {
		t.Fatalf("unexpected wrapped error %v", got)
	}
	if wrapEvaluatorError("cel", nil) != nil {
		t.Fatalf("nil error must stay nil")
	}
}

func TestSlotAndPathErrorsUnwrap(t *testing.T) {
	err := &PathError{Index: 1, Segment: "b", Err: slotErr("get", "b", ErrKeyNotFound)}
	if !errors.Is(err, ErrPathTraversal) || !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("path error should unwrap to traversal and cause, got %v", err)
	}
	if got := err.Error(); got != `lazyconf: path segment 1 ("b"): get "b": key not found` {
		t.Fatalf("unexpected message %q", got)
	}
	cycle := &CycleError{Chain: []string{"a", "b", "a"}}
	if !errors.Is(cycle, ErrCyclicEvaluation) {
		t.Fatalf("cycle error should unwrap to ErrCyclicEvaluation")
	}
	if cycle.Error() != "lazyconf: cyclic evaluation: a -> b -> a" {
		t.Fatalf("unexpected message %q", cycle.Error())
	}
}
