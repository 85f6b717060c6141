// Package utils provides hashing and path validation shared across the proxy.
//
// Hashing:
//   - BLAKE2b (default) and SHA256 content hashing
//   - Weak ETag generation for responses without a host-supplied validator
//
// Validation:
//   - Resource path normalization with traversal rejection
//   - Doublestar glob allowlists for proxied paths
package utils
