// Package middleware provides HTTP middleware for the webview-facing surface.
//
// Middleware stack includes:
//   - CORS: webview origins are opaque per-instance values, so the resource
//     surface allows any origin but never credentials
//   - RateLimit: per-IP token bucket sized for asset fan-out on page load,
//     with idle-client sweeping
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
