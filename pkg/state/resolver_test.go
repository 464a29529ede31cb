package state_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-lazyconf"
	"github.com/goliatone/go-lazyconf/layering"
	"github.com/goliatone/go-lazyconf/pkg/state"
)

type recordingStore struct {
	*state.MemoryStore
	saveCalls int
	savedMeta state.Meta
	saveMeta  state.Meta
}

func (s *recordingStore) Save(ctx context.Context, ref state.Ref, snapshot state.Snapshot, meta state.Meta) (state.Meta, error) {
	s.saveCalls++
	s.savedMeta = meta
	if _, err := s.MemoryStore.Save(ctx, ref, snapshot, meta); err != nil {
		return state.Meta{}, err
	}
	if s.saveMeta.SnapshotID != "" {
		return s.saveMeta, nil
	}
	return meta, nil
}

func systemScope() layering.Scope {
	return layering.NewScope("system", layering.PrioritySystem)
}

func userScope(id string) layering.Scope {
	return userRef(id).Scope
}

func TestResolverMergesScopes(t *testing.T) {
	store := state.NewMemoryStore()
	ctx := context.Background()
	_, err := store.Save(ctx, state.Ref{Domain: "notifications", Scope: systemScope()}, state.Snapshot{
		"email": map[string]any{"enabled": false, "digest": "daily"},
	}, state.Meta{SnapshotID: "sys-1"})
	require.NoError(t, err)
	_, err = store.Save(ctx, userRef("u42"), state.Snapshot{
		"email": map[string]any{"enabled": true},
	}, state.Meta{SnapshotID: "user-7"})
	require.NoError(t, err)

	resolver := state.Resolver{Store: store}
	merged, stack, err := resolver.Resolve(ctx, "notifications", systemScope(), userScope("u42"))
	require.NoError(t, err)

	enabled, err := merged.GetPath("email", "enabled")
	require.NoError(t, err)
	assert.Equal(t, true, enabled)
	digest, err := merged.GetPath("email", "digest")
	require.NoError(t, err)
	assert.Equal(t, "daily", digest)

	trace, err := stack.Trace("email", "enabled")
	require.NoError(t, err)
	winner, ok := trace.Winner()
	require.True(t, ok)
	assert.Equal(t, "user", winner.Scope.Name)
	assert.Equal(t, "user-7", winner.SnapshotID)
}

func TestResolverSkipsMissingScopes(t *testing.T) {
	store := state.NewMemoryStore()
	ctx := context.Background()
	_, _, err := state.Resolver{Store: store}.Resolve(ctx, "notifications", userScope("u1"))
	if err == nil {
		t.Fatalf("expected error when no layer is stored")
	}

	_, err = store.Save(ctx, state.Ref{Domain: "notifications", Scope: systemScope()}, state.Snapshot{"a": 1}, state.Meta{})
	require.NoError(t, err)
	_, stack, err := state.Resolver{Store: store}.Resolve(ctx, "notifications", systemScope(), userScope("u1"))
	require.NoError(t, err)
	assert.Equal(t, 1, stack.Len())
}

func TestResolverWithDefaults(t *testing.T) {
	store := state.NewMemoryStore()
	ctx := context.Background()
	_, err := store.Save(ctx, userRef("u1"), state.Snapshot{"theme": "dark"}, state.Meta{})
	require.NoError(t, err)

	defaults, err := lazyconf.FromPlain(map[string]any{"theme": "light", "locale": "en"})
	require.NoError(t, err)

	merged, stack, err := state.Resolver{Store: store}.ResolveWithDefaults(ctx, "notifications", defaults, userScope("u1"))
	require.NoError(t, err)
	assert.Equal(t, 2, stack.Len())
	assert.Equal(t, "defaults", stack.Layers()[1].Scope.Name)
	assert.Equal(t, layering.PriorityUser-1, stack.Layers()[1].Scope.Priority)

	plain, err := lazyconf.ToPlain(merged)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"theme": "dark", "locale": "en"}, plain)

	_, _, err = state.Resolver{Store: store}.ResolveWithDefaults(ctx, "notifications", defaults, layering.NewScope("defaults", 1))
	require.Error(t, err)
}

func TestResolverMutate(t *testing.T) {
	store := &recordingStore{MemoryStore: state.NewMemoryStore(), saveMeta: state.Meta{SnapshotID: "snap-new", ETag: "v2"}}
	ctx := context.Background()
	ref := userRef("u42")
	_, err := store.MemoryStore.Save(ctx, ref, state.Snapshot{
		"email": map[string]any{"enabled": false},
	}, state.Meta{SnapshotID: "snap-old", ETag: "v1"})
	require.NoError(t, err)

	resolver := state.Resolver{Store: store}
	tree, meta, err := resolver.Mutate(ctx, ref, state.Meta{ETag: "v1"}, func(s state.Snapshot) error {
		s["email"].(map[string]any)["enabled"] = true
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "snap-new", meta.SnapshotID)
	assert.Equal(t, 1, store.saveCalls)
	assert.Equal(t, "snap-old", store.savedMeta.SnapshotID)

	enabled, err := tree.GetPath("email", "enabled")
	require.NoError(t, err)
	assert.Equal(t, true, enabled)
}

func TestResolverMutateETagMismatch(t *testing.T) {
	store := &recordingStore{MemoryStore: state.NewMemoryStore()}
	ctx := context.Background()
	ref := userRef("u42")
	_, err := store.MemoryStore.Save(ctx, ref, state.Snapshot{"name": "ok"}, state.Meta{ETag: "v1"})
	require.NoError(t, err)

	_, _, err = state.Resolver{Store: store}.Mutate(ctx, ref, state.Meta{ETag: "v2"}, func(s state.Snapshot) error {
		s["name"] = "changed"
		return nil
	})
	if !errors.Is(err, state.ErrETagMismatch) {
		t.Fatalf("expected ErrETagMismatch, got %v", err)
	}
	if store.saveCalls != 0 {
		t.Fatalf("expected no save calls, got %d", store.saveCalls)
	}
}

func TestResolverMutateFailureDoesNotSave(t *testing.T) {
	store := &recordingStore{MemoryStore: state.NewMemoryStore()}
	boom := errors.New("name is required")
	_, _, err := state.Resolver{Store: store}.Mutate(context.Background(), userRef("u1"), state.Meta{}, func(state.Snapshot) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, store.saveCalls)
}
