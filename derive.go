package lazyconf

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// ErrNoEvaluator reports that no expression engine could be resolved.
var ErrNoEvaluator = errors.New("lazyconf: evaluator not configured")

var (
	stringLiteral = regexp.MustCompile(`"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'|` + "`[^`]*`")
	identifier    = regexp.MustCompile(`(^|[^.\w])([A-Za-z_]\w*)`)
)

// Derive registers name as a pending attribute computed from expression. The
// sibling attributes the expression names are evaluated first and exposed as
// variables; a reference back to name, directly or through other derived
// attributes, fails with ErrCyclicEvaluation.
func (m *Mapping) Derive(name, expression string, opts ...AttrOption) error {
	if expression == "" {
		return slotErr("derive", name, fmt.Errorf("expression must not be empty"))
	}
	refs := referencedNames(expression)
	factory := func(ctx context.Context) (any, error) {
		snapshot, err := m.snapshot(ctx, refs)
		if err != nil {
			return nil, err
		}
		return m.evaluate(RuleContext{Snapshot: snapshot, Key: name}, expression)
	}
	return m.Register(name, factory, opts...)
}

// Evaluate runs expression against the attributes it references.
func (m *Mapping) Evaluate(expression string) (any, error) {
	return m.EvaluateContext(context.Background(), expression)
}

// EvaluateContext is Evaluate with ctx for the evaluations it triggers.
func (m *Mapping) EvaluateContext(ctx context.Context, expression string) (any, error) {
	if expression == "" {
		return nil, fmt.Errorf("lazyconf: expression must not be empty")
	}
	snapshot, err := m.snapshot(contextOrBackground(ctx), referencedNames(expression))
	if err != nil {
		return nil, err
	}
	return m.evaluate(RuleContext{Snapshot: snapshot}, expression)
}

func (m *Mapping) evaluate(rc RuleContext, expression string) (any, error) {
	evaluator, err := m.resolveEvaluator()
	if err != nil {
		return nil, err
	}
	rc = rc.withDefaults()
	start := time.Now()
	value, evalErr := evaluator.Evaluate(rc, expression)
	evalErr = wrapEvaluationError(evaluatorEngineName(evaluator), expression, rc.keyLabel(), evalErr)
	m.cfg.evaluationLogger().LogEvaluation(EvaluationEvent{
		Key:      rc.Key,
		Engine:   evaluatorEngineName(evaluator),
		Expr:     expression,
		Duration: time.Since(start),
		Err:      evalErr,
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return value, nil
}

// snapshot exports the visible attributes among refs to plain values.
func (m *Mapping) snapshot(ctx context.Context, refs []string) (map[string]any, error) {
	out := make(map[string]any, len(refs))
	for _, ref := range refs {
		if !m.Has(ref) {
			continue
		}
		value, err := m.GetContext(ctx, ref)
		if err != nil {
			return nil, err
		}
		plain, err := ExportContext(ctx, value)
		if err != nil {
			return nil, slotErr("export", ref, err)
		}
		out[ref] = plain
	}
	return out, nil
}

func (m *Mapping) resolveEvaluator() (Evaluator, error) {
	if m.cfg.evaluator != nil {
		return m.cfg.evaluator, nil
	}
	var exprOpts []ExprEvaluatorOption
	if m.cfg.programCache != nil {
		exprOpts = append(exprOpts, ExprWithProgramCache(m.cfg.programCache))
	}
	if m.cfg.functions != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(m.cfg.functions))
	}
	evaluator := NewExprEvaluator(exprOpts...)
	if evaluator == nil {
		return nil, ErrNoEvaluator
	}
	return evaluator, nil
}

// referencedNames lists the free identifiers in expression, in order of first
// appearance. Member names after a dot and string literals are skipped.
func referencedNames(expression string) []string {
	stripped := stringLiteral.ReplaceAllString(expression, `""`)
	seen := map[string]struct{}{}
	var out []string
	for _, match := range identifier.FindAllStringSubmatch(stripped, -1) {
		name := match[2]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
