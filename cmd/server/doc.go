// Package main is the entry point for the webview content proxy.
//
// The service sits between sandboxed webviews and their host editor:
// webviews fetch resources over plain HTTP, the proxy forwards each
// request to the connected host over a WebSocket channel, and replies
// are correlated back to the waiting HTTP request by id.
//
// Architecture:
//
//	Webview (HTTP) → Proxy → Host editor (WebSocket channel)
//
// The server provides:
//   - Resource fetching with ETag caching and conditional requests
//   - Localhost origin mapping with optional reachability probing
//   - Static fallback asset serving
//   - Prometheus metrics and rate limiting
//
// Configuration:
//   - Environment variables (12-factor)
//   - Optional YAML file via -config (env vars fill gaps)
//   - CLI flags (override both)
//
// Usage:
//
//	# Production mode
//	./server -port 8000
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
//	# With a config file
//	./server -config proxy.yaml
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
