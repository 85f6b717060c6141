// Package static serves built-in fallback assets for paths the host reports
// as missing. The fallback root is indexed once at startup.
package static

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
)

// Asset is one indexed fallback file.
type Asset struct {
	AbsPath string
	Mime    string
	Size    int64
}

// Store indexes a directory of fallback webview assets.
type Store struct {
	root   string
	assets map[string]Asset // keyed by slash-separated relative path
}

// New walks root and indexes every regular file. A missing or empty root
// yields an empty store, not an error, so the fallback stays optional.
func New(root string) (*Store, error) {
	s := &Store{root: root, assets: make(map[string]Asset)}
	if root == "" {
		return s, nil
	}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return s, nil
	}

	var mu sync.Mutex
	conf := fastwalk.Config{Follow: false}

	err := fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}

		mime := "application/octet-stream"
		if mtype, err := mimetype.DetectFile(p); err == nil {
			mime = mtype.String()
		}

		mu.Lock()
		s.assets[filepath.ToSlash(rel)] = Asset{AbsPath: p, Mime: mime, Size: info.Size()}
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to index fallback root %s: %w", root, err)
	}
	return s, nil
}

// Get looks up a normalized resource path in the index.
func (s *Store) Get(path string) (Asset, bool) {
	a, ok := s.assets[path]
	return a, ok
}

// Read returns the asset's content.
func (s *Store) Read(path string) ([]byte, string, error) {
	a, ok := s.assets[path]
	if !ok {
		return nil, "", os.ErrNotExist
	}
	body, err := os.ReadFile(a.AbsPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read fallback asset %s: %w", path, err)
	}
	return body, a.Mime, nil
}

// Len returns the number of indexed assets.
func (s *Store) Len() int {
	return len(s.assets)
}
