// Package file provides a Storage that keeps one JSON document per key on the
// local filesystem. It is meant for the CLI and single-process deployments.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/ports"
	"github.com/google/uuid"
)

const ext = ".json"

// Store implements ports.Storage using the local filesystem.
type Store struct {
	BasePath string
	mu       sync.Mutex
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".palaver/state".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".palaver", "state")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(key string) string {
	return filepath.Join(s.BasePath, url.PathEscape(key)+ext)
}

// Read loads the documents for the given keys.
func (s *Store) Read(ctx context.Context, keys []string) (map[string]*ports.StoreItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*ports.StoreItem, len(keys))
	for _, key := range keys {
		item, err := s.load(key)
		if err != nil {
			return nil, err
		}
		if item != nil {
			out[key] = item
		}
	}
	return out, nil
}

// Write checks every eTag and then persists each document atomically.
func (s *Store) Write(ctx context.Context, changes map[string]*ports.StoreItem) error {
	if len(changes) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, item := range changes {
		if key == "" || item == nil {
			return fmt.Errorf("file: empty key or item: %w", domain.ErrMissingArgument)
		}
		if item.ETag == "" || item.ETag == ports.ETagAny {
			continue
		}
		current, err := s.load(key)
		if err != nil {
			return err
		}
		if current == nil || current.ETag != item.ETag {
			return &domain.ConflictError{Key: key, Expected: item.ETag}
		}
	}

	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return fmt.Errorf("file: ensure state directory: %w", err)
	}

	for key, item := range changes {
		stored := ports.StoreItem{ETag: uuid.NewString(), Data: item.Data}
		if stored.Data == nil {
			stored.Data = map[string]any{}
		}
		if err := s.save(key, &stored); err != nil {
			return err
		}
		item.ETag = stored.ETag
	}
	return nil
}

// Delete removes the documents. Missing keys are ignored.
func (s *Store) Delete(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("file: delete %q: %w", key, err)
		}
	}
	return nil
}

// List returns every stored key.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("file: list: %w", err)
	}

	keys := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ext || strings.HasPrefix(name, "tmp-") {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, ext))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) load(key string) (*ports.StoreItem, error) {
	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("file: read %q: %w", key, err)
	}
	var item ports.StoreItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("file: decode %q: %w", key, err)
	}
	if item.Data == nil {
		item.Data = map[string]any{}
	}
	return &item, nil
}

// save writes to a temp file in the same directory, fsyncs it and renames it
// over the destination so readers never observe a partial document.
func (s *Store) save(key string, item *ports.StoreItem) error {
	raw, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return fmt.Errorf("file: encode %q: %w", key, err)
	}

	tmp, err := os.CreateTemp(s.BasePath, "tmp-*"+ext)
	if err != nil {
		return fmt.Errorf("file: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(raw); err != nil {
		return fmt.Errorf("file: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("file: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file: close temp file: %w", err)
	}

	dest := s.path(key)
	// Windows refuses to rename over an existing file.
	if _, err := os.Stat(dest); err == nil {
		if err := os.Remove(dest); err != nil {
			return fmt.Errorf("file: replace %q: %w", key, err)
		}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("file: rename into place: %w", err)
	}
	return nil
}
