package state

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-lazyconf"
)

// Checkpoint saves the attributes of m that already hold a value under ref,
// without evaluating anything still pending. The snapshot gets a fresh
// SnapshotID and UpdatedAt; meta supplies the rest.
func Checkpoint(ctx context.Context, store Store, ref Ref, m *lazyconf.Mapping, meta Meta) (Meta, error) {
	if store == nil {
		return Meta{}, fmt.Errorf("state: store is required")
	}
	if m == nil {
		return Meta{}, fmt.Errorf("state: mapping is required")
	}
	meta.SnapshotID = uuid.NewString()
	if meta.UpdatedAt.IsZero() {
		meta.UpdatedAt = time.Now().UTC()
	}
	saved, err := store.Save(ctx, ref, m.ExportState(), meta)
	if err != nil {
		return Meta{}, fmt.Errorf("state: checkpoint %q for scope %q: %w", ref.Domain, ref.Scope.Name, err)
	}
	return saved, nil
}

// Restore imports the snapshot stored under ref into m. Imported keys become
// computed; keys the snapshot does not name keep their current state.
func Restore(ctx context.Context, store Store, ref Ref, m *lazyconf.Mapping) (Meta, error) {
	if store == nil {
		return Meta{}, fmt.Errorf("state: store is required")
	}
	if m == nil {
		return Meta{}, fmt.Errorf("state: mapping is required")
	}
	snapshot, meta, ok, err := store.Load(ctx, ref)
	if err != nil {
		return Meta{}, fmt.Errorf("state: restore %q for scope %q: %w", ref.Domain, ref.Scope.Name, err)
	}
	if !ok {
		return Meta{}, fmt.Errorf("%w: %q for scope %q", ErrNotFound, ref.Domain, ref.Scope.Name)
	}
	if err := m.ImportStateContext(ctx, snapshot); err != nil {
		return Meta{}, err
	}
	return meta, nil
}
