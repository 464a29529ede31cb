package lazyconf

import (
	"context"
	"reflect"
	"sort"
)

// ExportState returns the visible keys that already hold a value, without
// evaluating anything still pending. Values are returned as stored, so nested
// mappings keep their own pending attributes.
func (m *Mapping) ExportState() map[string]any {
	out := map[string]any{}
	for _, key := range m.Keys() {
		s, ok := m.table.lookup(key)
		if !ok {
			continue
		}
		if state, value := s.peek(); state.HasValue() {
			out[key] = value
		}
	}
	return out
}

// ImportState marks every key in state as already computed with the given
// value. Write-once attributes become set; unknown keys are added. Keys not
// named in state are left untouched.
//
// The import is all or nothing. It fails with ErrReservedName for a key the
// shape hides and with ErrAlreadySet for a write-once attribute that already
// holds a different value; either way no key is changed.
func (m *Mapping) ImportState(state map[string]any) error {
	return m.ImportStateContext(context.Background(), state)
}

// ImportStateContext is ImportState with a context for activity hooks.
func (m *Mapping) ImportStateContext(ctx context.Context, state map[string]any) error {
	keys := make([]string, 0, len(state))
	for key := range state {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := m.checkImport(key, state[key]); err != nil {
			return err
		}
	}

	for _, key := range keys {
		value := state[key]
		if s, ok := m.table.lookup(key); ok {
			s.preload(value)
			continue
		}
		if err := m.Register(key, nil, Preloaded(value)); err != nil {
			return err
		}
	}
	if len(keys) > 0 {
		m.emitImported(ctx, keys)
	}
	return nil
}

func (m *Mapping) checkImport(key string, value any) error {
	if m.shape.IsReserved(key) {
		return slotErr("import", key, ErrReservedName)
	}
	s, ok := m.table.lookup(key)
	if !ok {
		return nil
	}
	if state, current := s.peek(); state == StateWriteOnceSet && !reflect.DeepEqual(current, value) {
		return slotErr("import", key, ErrAlreadySet)
	}
	return nil
}
