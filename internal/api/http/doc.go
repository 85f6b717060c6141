// Package http provides the webview-facing HTTP surface.
//
// Endpoints:
//   - GET /vscode-resource/:channel/*path — proxied resource fetch
//   - GET /localhost/:authority/*path     — localhost origin redirect
//   - GET /, /health, /stats              — service status
//
// Resource responses honor If-None-Match, carry the host's (or a computed)
// ETag, and are gzip-compressed for clients that accept it. A fetch that
// cannot be satisfied — unknown channel, missing resource, or a host that
// never answers — falls back to the built-in asset index and then to a
// generic 404.
package http
