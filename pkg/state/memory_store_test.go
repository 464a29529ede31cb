package state_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-lazyconf/layering"
	"github.com/goliatone/go-lazyconf/pkg/state"
)

func userRef(id string) state.Ref {
	return state.Ref{
		Domain: "notifications",
		Scope:  layering.NewScope("user", layering.PriorityUser, layering.WithScopeMetadata(map[string]any{"user_id": id})),
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := state.NewMemoryStore()
	ref := userRef("u1")

	if _, _, ok, err := store.Load(context.Background(), ref); err != nil || ok {
		t.Fatalf("expected empty store, got ok=%t err=%v", ok, err)
	}

	snapshot := state.Snapshot{"enabled": true}
	meta := state.Meta{SnapshotID: "s1", Extra: map[string]string{"by": "test"}}
	if _, err := store.Save(context.Background(), ref, snapshot, meta); err != nil {
		t.Fatalf("save: %v", err)
	}
	snapshot["enabled"] = false
	meta.Extra["by"] = "mutated"

	got, gotMeta, ok, err := store.Load(context.Background(), ref)
	if err != nil || !ok {
		t.Fatalf("load: ok=%t err=%v", ok, err)
	}
	if got["enabled"] != true {
		t.Fatalf("expected stored copy to keep enabled=true, got %v", got["enabled"])
	}
	if gotMeta.SnapshotID != "s1" || gotMeta.Extra["by"] != "test" {
		t.Fatalf("unexpected meta %+v", gotMeta)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", store.Len())
	}
}

func TestRefIdentifier(t *testing.T) {
	cases := []struct {
		name   string
		ref    state.Ref
		expect string
		err    string
	}{
		{
			name:   "system",
			ref:    state.Ref{Domain: "billing", Scope: layering.NewScope("system", layering.PrioritySystem)},
			expect: "system/billing",
		},
		{
			name:   "user",
			ref:    userRef("u42"),
			expect: "user/u42/notifications",
		},
		{
			name: "tenant",
			ref: state.Ref{Domain: "billing", Scope: layering.NewScope("tenant", layering.PriorityTenant,
				layering.WithScopeMetadata(map[string]any{"tenant_id": "acme"}))},
			expect: "tenant/acme/billing",
		},
		{
			name: "missing id",
			ref:  state.Ref{Domain: "billing", Scope: layering.NewScope("team", layering.PriorityTeam)},
			err:  `state: missing metadata key "team_id" for scope "team"`,
		},
		{
			name: "unsupported",
			ref:  state.Ref{Domain: "billing", Scope: layering.NewScope("galaxy", 1)},
			err:  `state: unsupported scope name "galaxy"`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.ref.Identifier()
			if tc.err != "" {
				if err == nil || err.Error() != tc.err {
					t.Fatalf("expected error %q, got %v", tc.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.expect {
				t.Fatalf("expected %q, got %q", tc.expect, got)
			}
		})
	}
}
