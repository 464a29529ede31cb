package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-lazyconf/layering"
)

var (
	// ErrETagMismatch reports a Mutate whose expected ETag no longer matches
	// the stored one.
	ErrETagMismatch = errors.New("state: etag mismatch")
	// ErrNotFound reports a Restore for a ref that has nothing stored.
	ErrNotFound = errors.New("state: snapshot not found")
)

// Snapshot is the persisted form of a tree: either plain data for a layer, or
// the computed subset returned by Mapping.ExportState.
type Snapshot = map[string]any

// Ref identifies one persisted snapshot for one configuration domain.
type Ref struct {
	Domain string
	Scope  layering.Scope
}

// Meta is storage-owned metadata used for trace/audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads/saves one snapshot for a single scope reference.
type Store interface {
	Load(ctx context.Context, ref Ref) (snapshot Snapshot, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot Snapshot, meta Meta) (Meta, error)
}

// Identifier returns the canonical storage key for r. System scopes key on
// the domain alone; tenant, org, team and user scopes need a "<scope>_id"
// metadata entry.
func (r Ref) Identifier() (string, error) {
	switch r.Scope.Name {
	case "system":
		return fmt.Sprintf("system/%s", r.Domain), nil
	case "tenant", "org", "team", "user":
		metadataKey := r.Scope.Name + "_id"
		id, _ := r.Scope.Metadata[metadataKey].(string)
		if id == "" {
			return "", fmt.Errorf("state: missing metadata key %q for scope %q", metadataKey, r.Scope.Name)
		}
		return fmt.Sprintf("%s/%s/%s", r.Scope.Name, id, r.Domain), nil
	default:
		return "", fmt.Errorf("state: unsupported scope name %q", r.Scope.Name)
	}
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}
