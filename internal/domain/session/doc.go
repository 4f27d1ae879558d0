// Package session manages the editing sessions of a running server.
//
// The Manager owns at most one editor.Session per slug. Sessions are created
// on first use from the persisted document (or the default template) and live
// until Close or CloseAll. Every consumer (HTTP panels, frame connections)
// receives the session explicitly from the manager; there is no global
// editor state.
//
// Example Usage:
//
//	manager := session.NewManager(store, editor.Options{Debounce: 600 * time.Millisecond})
//	sess, err := manager.Get(ctx, "/demo")
//	defer manager.CloseAll(ctx)
package session
