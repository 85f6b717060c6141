package utils

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MaxPathLength bounds proxied resource paths.
const MaxPathLength = 2048

// NormalizeResourcePath validates and canonicalizes a proxied resource path.
// Traversal segments and absolute escapes are rejected; the result never
// starts with a slash.
func NormalizeResourcePath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty resource path")
	}
	if len(p) > MaxPathLength {
		return "", fmt.Errorf("resource path exceeds %d bytes", MaxPathLength)
	}
	if strings.ContainsRune(p, 0) {
		return "", fmt.Errorf("resource path contains NUL")
	}

	cleaned := path.Clean("/" + p)
	if cleaned == "/" || strings.HasPrefix(cleaned, "/..") {
		return "", fmt.Errorf("resource path escapes root: %q", p)
	}
	return strings.TrimPrefix(cleaned, "/"), nil
}

// Allowlist matches resource paths against doublestar glob patterns. An
// empty pattern set allows everything.
type Allowlist struct {
	patterns []string
}

// NewAllowlist builds an allowlist, rejecting malformed patterns up front.
func NewAllowlist(patterns []string) (*Allowlist, error) {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("invalid allowlist pattern: %q", pat)
		}
	}
	return &Allowlist{patterns: patterns}, nil
}

// Allows reports whether the normalized path matches any pattern.
func (a *Allowlist) Allows(resourcePath string) bool {
	if len(a.patterns) == 0 {
		return true
	}
	for _, pat := range a.patterns {
		if ok, _ := doublestar.Match(pat, resourcePath); ok {
			return true
		}
	}
	return false
}
