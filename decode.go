package lazyconf

import (
	"context"
	"fmt"

	"github.com/goliatone/go-lazyconf/internal/hydrate"
)

// DecodeOption configures Decode.
type DecodeOption[T any] func(*decodeConfig[T])

type decodeConfig[T any] struct {
	source  string
	options []hydrate.DecoderOption[T]
}

// DecodeSource names the tree in decode errors.
func DecodeSource[T any](source string) DecodeOption[T] {
	return func(cfg *decodeConfig[T]) {
		cfg.source = source
	}
}

// DecodeUseNumber decodes numbers held in interface fields as json.Number.
func DecodeUseNumber[T any]() DecodeOption[T] {
	return func(cfg *decodeConfig[T]) {
		cfg.options = append(cfg.options, hydrate.WithUseNumber[T]())
	}
}

// DecodeDisallowUnknownFields fails when the tree holds a key with no
// matching struct field.
func DecodeDisallowUnknownFields[T any]() DecodeOption[T] {
	return func(cfg *decodeConfig[T]) {
		cfg.options = append(cfg.options, hydrate.WithDisallowUnknownFields[T]())
	}
}

// DecodePreHook rewrites the exported tree before it is decoded.
func DecodePreHook[T any](hook func(map[string]any) (map[string]any, error)) DecodeOption[T] {
	return func(cfg *decodeConfig[T]) {
		if hook == nil {
			return
		}
		cfg.options = append(cfg.options, hydrate.WithPreHook[T](func(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
			return hook(payload)
		}))
	}
}

// DecodePostHook validates or completes the decoded value.
func DecodePostHook[T any](hook func(*T) error) DecodeOption[T] {
	return func(cfg *decodeConfig[T]) {
		if hook == nil {
			return
		}
		cfg.options = append(cfg.options, hydrate.WithPostHook[T](func(_ hydrate.Context, value *T) error {
			return hook(value)
		}))
	}
}

// Decode evaluates every attribute of m and decodes the result into T using
// its json struct tags.
func Decode[T any](ctx context.Context, m *Mapping, opts ...DecodeOption[T]) (T, error) {
	var zero T
	if m == nil {
		return zero, fmt.Errorf("lazyconf: decode: mapping is nil")
	}
	cfg := decodeConfig[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	plain, err := ExportContext(ctx, m)
	if err != nil {
		return zero, err
	}
	payload, _ := plain.(map[string]any)
	decoder := hydrate.NewDecoder(cfg.options...)
	out, err := decoder.Decode(hydrate.Context{Source: cfg.source, Shape: m.Shape().Name()}, payload)
	if err != nil {
		return zero, fmt.Errorf("lazyconf: %w", err)
	}
	return out, nil
}
