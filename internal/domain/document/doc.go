// Package document provides the page model the editor treats as ground truth.
//
// A Document is a tree of Blocks rooted at a container with id "root". Every
// operation in this package is pure: it never mutates its input and returns
// the very same *Document when nothing changed, so callers detect a no-op by
// pointer comparison.
//
// Operations:
//   - FindParentAndIndex: pre-order search for a block's parent and position
//   - GetBlockByID: pre-order lookup
//   - MoveSibling: swap a block with its previous or next sibling
//   - PatchStyles: set or remove inline style properties
//   - PatchText: set props.text
//
// Unchanged subtrees are shared between the input and the result; blocks
// reachable from a Document must therefore be treated as read-only.
//
// Example Usage:
//
//	doc := document.Default("/demo")
//	next := document.PatchText(doc, "para-1", "Hello")
//	if next != doc {
//		// changed
//	}
package document
