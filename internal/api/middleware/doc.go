// Package middleware provides HTTP middleware for the editor backend.
//
// Middleware stack includes:
//   - CORS: cross-origin access for the editor UI origins
//   - RateLimit: per-IP token bucket with idle client eviction
//   - RequestID: X-Request-ID propagation for log correlation
//
// Example Usage:
//
//	router.Use(middleware.RequestID())
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Frame.AllowedOrigins...)))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
