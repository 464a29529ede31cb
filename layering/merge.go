// Package layering overlays lazyconf trees by precedence and reports which
// layer supplied a value.
package layering

import (
	"context"

	"github.com/goliatone/go-lazyconf"
)

// Merge composes layers ordered from strongest to weakest into a new mapping.
// Each key resolves from the strongest layer holding a non-nil value for it.
// When that value is a mapping, it is merged with the mappings weaker layers
// hold under the same key, down to the first layer holding something else.
// Nothing is evaluated until a merged key is read. The result takes the shape
// and options of the strongest layer; nil layers are skipped.
func Merge(layers ...*lazyconf.Mapping) (*lazyconf.Mapping, error) {
	present := make([]*lazyconf.Mapping, 0, len(layers))
	for _, layer := range layers {
		if layer != nil {
			present = append(present, layer)
		}
	}
	if len(present) == 0 {
		return lazyconf.New(), nil
	}

	merged := present[0].Empty()
	seen := map[string]struct{}{}
	for _, layer := range present {
		for _, key := range layer.Keys() {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			if err := merged.Register(key, resolver(present, key)); err != nil {
				return nil, err
			}
		}
	}
	return merged, nil
}

func resolver(layers []*lazyconf.Mapping, key string) lazyconf.Factory {
	return func(ctx context.Context) (any, error) {
		var nested []*lazyconf.Mapping
		for _, layer := range layers {
			if !layer.Has(key) {
				continue
			}
			value, err := layer.GetContext(ctx, key)
			if err != nil {
				return nil, err
			}
			if value == nil {
				continue
			}
			m, ok := value.(*lazyconf.Mapping)
			if !ok {
				if len(nested) > 0 {
					break
				}
				return value, nil
			}
			nested = append(nested, m)
		}
		switch len(nested) {
		case 0:
			return nil, nil
		case 1:
			return nested[0], nil
		default:
			return Merge(nested...)
		}
	}
}
