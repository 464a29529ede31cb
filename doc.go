// Package lazyconf builds immutable configuration trees whose attributes are
// computed on first read and memoized.
//
// A Mapping holds named slots. Each slot is unset, pending (a factory that has
// not run), loaded, or write-once. Reading a pending slot runs its factory at
// most once, even under concurrent readers. A factory that reads its own slot
// again, directly or through siblings, fails with ErrCyclicEvaluation as long
// as it passes on the context it was given.
//
// Freeze turns plain maps, slices and map[K]struct{} sets into Mappings,
// Sequences and Sets, converting nested maps lazily and preserving shared and
// cyclic references. Thaw and ToPlain reverse the conversion.
//
//	tree, _ := lazyconf.FromPlain(map[string]any{
//		"a": 1,
//		"b": []any{1, 2, map[string]any{"c": 3}},
//	})
//	c, _ := tree.GetPath("b", 2, "c") // 3
//
// ExportState and ImportState move the already computed subset of a Mapping
// in and out without forcing pending attributes; pkg/state persists it.
package lazyconf
