package lazyconf

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu     sync.Mutex
	events []EvaluationEvent
}

func (l *recordingLogger) LogEvaluation(event EvaluationEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *recordingLogger) engines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, event := range l.events {
		out = append(out, event.Engine)
	}
	return out
}

func TestDeriveWithExpr(t *testing.T) {
	logger := &recordingLogger{}
	tree, err := FromPlain(map[string]any{"host": "localhost", "port": 8080}, WithLogger(logger))
	require.NoError(t, err)
	require.NoError(t, tree.Derive("address", `host + ":" + string(port)`))

	state, _ := tree.State("address")
	assert.Equal(t, StatePending, state)

	address, err := tree.Get("address")
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", address)

	engines := logger.engines()
	assert.Contains(t, engines, "expr")
	assert.Contains(t, engines, "factory")
}

func TestDeriveWithCEL(t *testing.T) {
	m := New(WithEvaluator(NewCELEvaluator()))
	require.NoError(t, m.Register("limit", Value(10)))
	require.NoError(t, m.Register("enabled", Value(true)))
	require.NoError(t, m.Derive("double", "limit * 2"))
	require.NoError(t, m.Derive("active", "enabled && limit > 5"))

	double, err := m.Get("double")
	require.NoError(t, err)
	assert.EqualValues(t, 20, double)

	active, err := m.Get("active")
	require.NoError(t, err)
	assert.Equal(t, true, active)
}

func TestDeriveNestedMappingsAreExported(t *testing.T) {
	tree, err := FromPlain(map[string]any{
		"limits": map[string]any{"daily": 5, "monthly": 100},
	})
	require.NoError(t, err)
	require.NoError(t, tree.Derive("total", "limits.daily + limits.monthly"))

	total, err := tree.Get("total")
	require.NoError(t, err)
	assert.EqualValues(t, 105, total)
}

func TestDeriveCustomFunction(t *testing.T) {
	m := New(WithCustomFunction("shout", func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("shout takes one argument")
		}
		return strings.ToUpper(fmt.Sprint(args[0])) + "!", nil
	}))
	require.NoError(t, m.Register("name", Value("hi")))
	require.NoError(t, m.Derive("greeting", "shout(name)"))

	greeting, err := m.Get("greeting")
	require.NoError(t, err)
	assert.Equal(t, "HI!", greeting)
}

func TestDeriveCycleIsReported(t *testing.T) {
	m := New()
	require.NoError(t, m.Register("base", Value(1)))
	require.NoError(t, m.Derive("a", "b + base"))
	require.NoError(t, m.Derive("b", "a + 1"))
	require.NoError(t, m.Derive("loop", "loop + 1"))

	for _, key := range []string{"a", "loop"} {
		_, err := m.Get(key)
		if !errors.Is(err, ErrCyclicEvaluation) {
			t.Fatalf("%s: expected ErrCyclicEvaluation, got %v", key, err)
		}
		state, _ := m.State(key)
		assert.Equal(t, StatePending, state)
	}
}

func TestDeriveInvalidExpression(t *testing.T) {
	m := New()
	require.NoError(t, m.Register("x", Value(1)))
	require.NoError(t, m.Derive("bad", "x +"))

	_, err := m.Get("bad")
	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "expr", evalErr.Engine)
	assert.Equal(t, "x +", evalErr.Expr)
	assert.Equal(t, "bad", evalErr.Key)

	assert.Error(t, m.Derive("empty", ""))
}

func TestEvaluate(t *testing.T) {
	tree, err := FromPlain(map[string]any{"count": 3, "unused": map[string]any{"x": 1}})
	require.NoError(t, err)

	value, err := tree.EvaluateContext(context.Background(), `count * 2`)
	require.NoError(t, err)
	assert.EqualValues(t, 6, value)
	assert.False(t, tree.IsLoaded("unused"))

	_, err = tree.Evaluate("")
	assert.Error(t, err)
}

func TestDeriveSharesProgramCache(t *testing.T) {
	cache := newCountingCache()
	m := New(WithProgramCache(cache))
	require.NoError(t, m.Register("x", Value(2)))
	require.NoError(t, m.Derive("y", "x * x"))
	require.NoError(t, m.Derive("z", "x * x"))

	_, err := m.Get("y")
	require.NoError(t, err)
	_, err = m.Get("z")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.stores("expr:x * x"))
}

func TestDeriveSiblingsShadowBuiltins(t *testing.T) {
	now := "deploy-window"
	tree, err := FromPlain(map[string]any{
		"count": 3,
		"len":   4,
		"max":   5,
		"now":   now,
	})
	require.NoError(t, err)
	require.NoError(t, tree.Derive("total", "count + len + max"))
	require.NoError(t, tree.Derive("stamp", `now + "!"`))

	total, err := tree.Get("total")
	require.NoError(t, err)
	assert.EqualValues(t, 12, total)

	stamp, err := tree.Get("stamp")
	require.NoError(t, err)
	assert.Equal(t, "deploy-window!", stamp)

	value, err := tree.Evaluate("count * 2")
	require.NoError(t, err)
	assert.EqualValues(t, 6, value)
}

func TestDeriveRecompilesForNewValueTypes(t *testing.T) {
	cache := newCountingCache()
	ints := New(WithProgramCache(cache))
	require.NoError(t, ints.Register("x", Value(2)))
	require.NoError(t, ints.Derive("y", "x + x"))
	strs := New(WithProgramCache(cache))
	require.NoError(t, strs.Register("x", Value("ab")))
	require.NoError(t, strs.Derive("y", "x + x"))

	y, err := ints.Get("y")
	require.NoError(t, err)
	assert.EqualValues(t, 4, y)
	y, err = strs.Get("y")
	require.NoError(t, err)
	assert.Equal(t, "abab", y)
	assert.Equal(t, 2, cache.stores("expr:x + x"))
}

func TestReferencedNames(t *testing.T) {
	cases := map[string][]string{
		`host + ":" + string(port)`:    {"host", "string", "port"},
		`limits.daily + limits.monthly`: {"limits"},
		`"literal name" + other`:        {"other"},
		`a && b || a`:                   {"a", "b"},
	}
	for expression, want := range cases {
		if diff := cmp.Diff(want, referencedNames(expression)); diff != "" {
			t.Fatalf("%s: names mismatch (-want +got):\n%s", expression, diff)
		}
	}
}
