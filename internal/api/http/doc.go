// Package http provides the REST surface used by the editor's UI panels.
//
// Panels (style inspector, layer controls, selection display) read the
// session state and call the editor operations through these endpoints. The
// frame itself talks to the server over the WebSocket in package ws.
//
// Endpoints:
//   - Health: / and /health
//   - Metrics: /metrics (Prometheus), /metrics/summary (JSON)
//   - Editor: GET /editor/state, POST /editor/select, /editor/styles,
//     /editor/text, /editor/move
//   - Documents: GET /documents, POST /documents/import
//   - Sessions: GET /sessions
//
// Every editor endpoint takes the page slug in the "slug" query parameter
// and falls back to the configured default slug.
//
// Example Usage:
//
//	handlers := http.NewHandlers(http.Deps{Sessions: manager, Documents: store})
//	handlers.Register(router)
package http
