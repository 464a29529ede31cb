package lazyconf

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expensiveTree(t *testing.T, calls *atomic.Int32) *Mapping {
	t.Helper()
	m := New()
	require.NoError(t, m.Register("index", countingFactory(calls, []string{"a", "b"})))
	require.NoError(t, m.Register("report", countingFactory(calls, "report")))
	require.NoError(t, m.Register("region", nil, WriteOnce()))
	return m
}

func TestExportStateSkipsPending(t *testing.T) {
	var calls atomic.Int32
	m := expensiveTree(t, &calls)
	_, err := m.Get("index")
	require.NoError(t, err)
	require.NoError(t, m.SetOnce("region", "eu"))

	state := m.ExportState()
	want := map[string]any{"index": []string{"a", "b"}, "region": "eu"}
	if diff := cmp.Diff(want, state); diff != "" {
		t.Fatalf("exported state mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, m.IsLoaded("report"))
}

func TestImportStateMarksKeysComputed(t *testing.T) {
	var calls atomic.Int32
	m := expensiveTree(t, &calls)

	err := m.ImportState(map[string]any{
		"index":  []string{"restored"},
		"region": "us",
		"extra":  true,
	})
	require.NoError(t, err)

	value, err := m.Get("index")
	require.NoError(t, err)
	assert.Equal(t, []string{"restored"}, value)
	assert.Equal(t, int32(0), calls.Load())

	state, _ := m.State("report")
	assert.Equal(t, StatePending, state)

	state, _ = m.State("region")
	assert.Equal(t, StateWriteOnceSet, state)
	assert.ErrorIs(t, m.SetOnce("region", "eu"), ErrAlreadySet)

	extra, err := m.Get("extra")
	require.NoError(t, err)
	assert.Equal(t, true, extra)
	assert.Equal(t, []string{"index", "report", "region", "extra"}, m.Keys())
}

func TestStateRoundTripResumesWork(t *testing.T) {
	var first atomic.Int32
	source := expensiveTree(t, &first)
	_, err := source.Get("index")
	require.NoError(t, err)

	var second atomic.Int32
	resumed := expensiveTree(t, &second)
	require.NoError(t, resumed.ImportStateContext(context.Background(), source.ExportState()))

	_, err = resumed.Get("index")
	require.NoError(t, err)
	assert.Equal(t, int32(0), second.Load())

	_, err = resumed.Get("report")
	require.NoError(t, err)
	assert.Equal(t, int32(1), second.Load())
}

func TestExportStateHidesReservedNames(t *testing.T) {
	m := New(WithShape(NewShape("Hidden", nil, "secret")))
	require.NoError(t, m.Register("secret", Value(1)))
	require.NoError(t, m.Register("open", nil, Preloaded(2)))

	assert.Equal(t, map[string]any{"open": 2}, m.ExportState())
}

func TestImportStateKeepsWriteOnceValues(t *testing.T) {
	m := New()
	require.NoError(t, m.Register("x", nil, WriteOnce()))
	require.NoError(t, m.Register("y", Value(1)))
	require.NoError(t, m.SetOnce("x", 5))

	err := m.ImportState(map[string]any{"x": 6, "y": 2, "z": 3})
	assert.ErrorIs(t, err, ErrAlreadySet)
	var importErr *SlotError
	require.ErrorAs(t, err, &importErr)
	assert.Equal(t, "import", importErr.Op)
	assert.Equal(t, "x", importErr.Key)

	x, err := m.Get("x")
	require.NoError(t, err)
	assert.Equal(t, 5, x)
	assert.False(t, m.IsLoaded("y"))
	assert.False(t, m.Has("z"))

	require.NoError(t, m.ImportState(map[string]any{"x": 5, "y": 2}))
	y, err := m.Get("y")
	require.NoError(t, err)
	assert.Equal(t, 2, y)
}

func TestImportStateRejectsReservedNames(t *testing.T) {
	var calls atomic.Int32
	m := New(WithShape(NewShape("Hidden", nil, "secret")))
	require.NoError(t, m.Register("secret", countingFactory(&calls, "hidden")))
	require.NoError(t, m.Register("open", Value(1)))

	err := m.ImportState(map[string]any{"secret": "leaked", "open": 2})
	assert.ErrorIs(t, err, ErrReservedName)

	s, ok := m.table.lookup("secret")
	require.True(t, ok)
	state, value := s.peek()
	assert.Equal(t, StatePending, state)
	assert.Nil(t, value)
	assert.False(t, m.IsLoaded("open"))
	assert.Equal(t, int32(0), calls.Load())
}
