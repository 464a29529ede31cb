package state

import (
	"context"
	"fmt"

	"github.com/goliatone/go-lazyconf"
	"github.com/goliatone/go-lazyconf/layering"
)

// Resolver loads per-scope snapshots and overlays them with layering.Merge.
type Resolver struct {
	Store Store
	// Options apply to every layer tree frozen from a loaded snapshot.
	Options []lazyconf.Option
}

// Mutator edits a plain snapshot in place.
type Mutator func(Snapshot) error

// Resolve loads domain for every scope and returns the merged tree together
// with the stack, which answers provenance questions through Trace. Scopes
// with nothing stored are skipped.
func (r Resolver) Resolve(ctx context.Context, domain string, scopes ...layering.Scope) (*lazyconf.Mapping, *layering.Stack, error) {
	if err := r.check(domain); err != nil {
		return nil, nil, err
	}
	if len(scopes) == 0 {
		return nil, nil, fmt.Errorf("state: at least one scope is required")
	}
	layers, err := r.loadLayers(ctx, domain, scopes)
	if err != nil {
		return nil, nil, err
	}
	if len(layers) == 0 {
		return nil, nil, fmt.Errorf("state: no layers found for domain %q", domain)
	}
	return mergeStack(layers)
}

// ResolveWithDefaults is Resolve with defaults as the weakest layer, under a
// scope named "defaults".
func (r Resolver) ResolveWithDefaults(ctx context.Context, domain string, defaults *lazyconf.Mapping, scopes ...layering.Scope) (*lazyconf.Mapping, *layering.Stack, error) {
	if err := r.check(domain); err != nil {
		return nil, nil, err
	}

	priorities := make(map[int]struct{}, len(scopes))
	lowest := 0
	for i, scope := range scopes {
		if scope.Name == "defaults" {
			return nil, nil, fmt.Errorf("state: scope name %q is reserved", "defaults")
		}
		priorities[scope.Priority] = struct{}{}
		if i == 0 || scope.Priority < lowest {
			lowest = scope.Priority
		}
	}
	defaultsPriority := 0
	if len(scopes) > 0 {
		defaultsPriority = lowest - 1
		for {
			if _, taken := priorities[defaultsPriority]; !taken {
				break
			}
			defaultsPriority--
		}
	}

	layers, err := r.loadLayers(ctx, domain, scopes)
	if err != nil {
		return nil, nil, err
	}
	defaultsScope := layering.NewScope("defaults", defaultsPriority, layering.WithScopeLabel("Defaults"))
	layers = append(layers, layering.NewLayer(defaultsScope, defaults))
	return mergeStack(layers)
}

// Mutate loads the snapshot for ref, applies fn, checks the result still
// freezes, then saves it. A non-empty meta.ETag must match the stored ETag.
// The returned tree holds the saved snapshot alone.
func (r Resolver) Mutate(ctx context.Context, ref Ref, meta Meta, fn Mutator) (*lazyconf.Mapping, Meta, error) {
	if err := r.check(ref.Domain); err != nil {
		return nil, Meta{}, err
	}
	if ref.Scope.Name == "" {
		return nil, Meta{}, fmt.Errorf("state: scope name is required")
	}
	if fn == nil {
		return nil, Meta{}, fmt.Errorf("state: mutator is required")
	}

	snapshot, loadedMeta, ok, err := r.Store.Load(ctx, ref)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("state: load %q for scope %q: %w", ref.Domain, ref.Scope.Name, err)
	}
	if !ok || snapshot == nil {
		snapshot = Snapshot{}
		loadedMeta = Meta{}
	}

	if meta.ETag != "" && loadedMeta.ETag != "" && meta.ETag != loadedMeta.ETag {
		return nil, loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loadedMeta.ETag)
	}

	if err := fn(snapshot); err != nil {
		return nil, loadedMeta, err
	}
	tree, err := lazyconf.FromPlain(snapshot, r.Options...)
	if err != nil {
		return nil, loadedMeta, err
	}

	saved, err := r.Store.Save(ctx, ref, snapshot, mergeMeta(loadedMeta, meta))
	if err != nil {
		return nil, loadedMeta, fmt.Errorf("state: save %q for scope %q: %w", ref.Domain, ref.Scope.Name, err)
	}
	return tree, saved, nil
}

func (r Resolver) check(domain string) error {
	if r.Store == nil {
		return fmt.Errorf("state: store is required")
	}
	if domain == "" {
		return fmt.Errorf("state: domain is required")
	}
	return nil
}

func (r Resolver) loadLayers(ctx context.Context, domain string, scopes []layering.Scope) ([]layering.Layer, error) {
	layers := make([]layering.Layer, 0, len(scopes)+1)
	for _, scope := range scopes {
		snapshot, meta, ok, err := r.Store.Load(ctx, Ref{Domain: domain, Scope: scope})
		if err != nil {
			return nil, fmt.Errorf("state: load %q for scope %q: %w", domain, scope.Name, err)
		}
		if !ok {
			continue
		}
		tree, err := lazyconf.FromPlain(snapshot, r.Options...)
		if err != nil {
			return nil, fmt.Errorf("state: freeze %q for scope %q: %w", domain, scope.Name, err)
		}
		layers = append(layers, layering.NewLayer(scope, tree, layering.WithSnapshotID(meta.SnapshotID)))
	}
	return layers, nil
}

func mergeStack(layers []layering.Layer) (*lazyconf.Mapping, *layering.Stack, error) {
	stack, err := layering.NewStack(layers...)
	if err != nil {
		return nil, nil, fmt.Errorf("state: stack: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return nil, nil, err
	}
	return merged, stack, nil
}
