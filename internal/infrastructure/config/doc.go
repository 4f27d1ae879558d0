// Package config provides 12-factor configuration management for the editor backend.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - Editor: Debounce window, reconcile mode, flush on close
//   - Frame: Allowed frame origins and inbound message limits
//   - Storage: Persistence backend (file, sqlite, memory) and template file
//   - Importer: Live site origin and block discovery selectors
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - EDITOR_DEBOUNCE, EDITOR_RECONCILE_MODE, EDITOR_FLUSH_ON_CLOSE
//   - FRAME_ALLOWED_ORIGINS, FRAME_MSG_RPS, FRAME_MSG_BURST
//   - STORAGE_BACKEND, STORAGE_PATH, STORAGE_COMPRESS, STORAGE_TEMPLATE
//   - SITE_ORIGIN, IMPORT_TIMEOUT, IMPORT_BLOCK_SELECTOR, IMPORT_BLOCK_XPATH
package config
