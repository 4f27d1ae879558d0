// Package main is the entry point for the Visual Editor backend server.
//
// The server hosts the editing sessions of the visual page editor. UI panels
// use the REST API; the sandboxed page frame connects to /frame over a
// WebSocket and speaks the frame protocol.
//
// Architecture:
//
//	Panels (REST) ──┐
//	                ├─→ Session Manager → Editor Session → Storage
//	Frame (WS) ─────┘                         ↑
//	                              Importer (live site HTML)
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -storage sqlite
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown, dirty sessions are flushed
package main
