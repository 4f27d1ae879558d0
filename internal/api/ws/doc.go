// Package ws carries the frame protocol over a WebSocket.
//
// The rendered frame opens /frame?slug=<page> from its own origin. The
// handshake is refused unless that origin is configured; the connection is
// then pinned to it and every host message goes only to that connection.
//
// Each connection runs three loops:
//   - reader: size limit, per-connection rate limit, hands messages to the
//     protocol.Channel
//   - writer: the single goroutine allowed to write to the socket; drains
//     the outbox and sends pings
//   - channel: re-hydrates the frame when the session's document changes
//
// Sends never block the session. When the outbox is full the message is
// dropped, which the protocol tolerates.
//
// Example Usage:
//
//	handler := ws.NewHandler(manager, ws.Options{AllowedOrigins: []string{"http://localhost:3000"}})
//	router.GET("/frame", handler.HandleConnection)
package ws
