// Package server assembles the editor backend: storage, session manager,
// importer, REST handlers and the frame WebSocket, behind the shared
// middleware chain (recovery, request ids, metrics, CORS, rate limiting).
package server
