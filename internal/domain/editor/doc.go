// Package editor provides the editing session: the single owner of the
// authoritative document, the selection and the save status.
//
// State transitions are described by Actions and applied by Reduce, a pure
// function. A Session serializes every transition through one goroutine
// (an actor with a mailbox), so UI panels and the frame channel can call it
// concurrently without locks of their own.
//
// Persistence:
//   - Every document change restarts a debounce window (600ms by default).
//   - When the window elapses with the session dirty, the document is saved.
//   - A failed save leaves the session dirty with status "Save failed"; the
//     next edit schedules another attempt.
//   - Operations that change nothing (unknown id, boundary reached) do not
//     mark the session dirty.
//
// Example Usage:
//
//	sess := editor.NewSession("/demo", doc, store, editor.Options{})
//	defer sess.Close(ctx)
//	st, err := sess.Dispatch(ctx, editor.PatchText{ID: "para-1", Text: "Hello"})
package editor
