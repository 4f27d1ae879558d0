// Package reconcile merges a snapshot reported by the rendered frame into the
// authoritative document.
//
// The snapshot is untrusted and flat: an ordered list of the elements the
// frame currently renders, without parent information. Reconcile keeps every
// block the snapshot mentions (authored content always wins over snapshot
// content), synthesizes blocks for ids it has never seen, and drops blocks
// the frame no longer renders.
//
// Modes:
//   - ModeFlat: every surviving or synthesized block becomes a direct child of
//     root, in snapshot order. Nesting degrades toward a flat list; this is a
//     known limitation, not a bug.
//   - ModeHierarchical: surviving blocks keep their nearest surviving ancestor
//     as parent; new blocks go under root. Nesting is preserved, never
//     inferred.
//
// Both modes are idempotent: reconciling twice with the same snapshot yields
// the same tree.
package reconcile
