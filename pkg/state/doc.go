// Package state persists lazyconf trees.
//
// Two kinds of snapshot go through a Store:
//   - plain per-scope data, loaded by Resolver, frozen into layering layers
//     and merged strongest first;
//   - the computed subset of a live tree, saved by Checkpoint from
//     Mapping.ExportState and put back by Restore through Mapping.ImportState,
//     so expensive attributes survive a restart without forcing the ones that
//     never ran.
//
// Data flow:
//
//	Store -> Resolver -> layering.NewStack(...).Merge() -> *lazyconf.Mapping
//	*lazyconf.Mapping -> Checkpoint -> Store -> Restore -> *lazyconf.Mapping
//
// Meta.SnapshotID becomes layering.Layer.SnapshotID and shows up in
// Stack.Trace provenance. Ref.Identifier is the canonical storage key
// (system/tenant/org/team/user).
package state
