// Package mirror copies the resources of a resolved asset to a
// destination store, skipping objects that are already there.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Store is a destination for mirrored objects. Keys use '/' separators.
type Store interface {
	// List returns the keys under prefix, relative to it.
	List(ctx context.Context, prefix string) ([]string, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Location renders key as a location a user can open.
	Location(key string) string
}

// FileStore writes objects below a local directory.
type FileStore struct {
	Root string
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Root: dir}
}

// List walks Root/prefix. A missing directory yields no keys.
func (s *FileStore) List(ctx context.Context, prefix string) ([]string, error) {
	dir := filepath.Join(s.Root, filepath.FromSlash(prefix))

	var keys []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	return keys, nil
}

// Put writes data to Root/key, creating parent directories.
func (s *FileStore) Put(_ context.Context, key string, data []byte, _ string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

// Location returns the local path of key.
func (s *FileStore) Location(key string) string {
	return filepath.Join(s.Root, filepath.FromSlash(key))
}

func (s *FileStore) path(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "\x00") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.Root, filepath.FromSlash(clean[1:])), nil
}
