package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/ports"
)

type record struct {
	etag string
	data []byte
}

// Store implements ports.Storage in memory.
// Records are kept as JSON so readers never share maps with the store.
// Safe for concurrent use.
type Store struct {
	data map[string]record
	seq  uint64
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]record),
	}
}

// Read returns copies of the stored records.
func (s *Store) Read(ctx context.Context, keys []string) (map[string]*ports.StoreItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*ports.StoreItem, len(keys))
	for _, key := range keys {
		rec, ok := s.data[key]
		if !ok {
			continue
		}
		item := &ports.StoreItem{ETag: rec.etag, Data: map[string]any{}}
		if err := json.Unmarshal(rec.data, &item.Data); err != nil {
			return nil, fmt.Errorf("memory: decode %q: %w", key, err)
		}
		out[key] = item
	}
	return out, nil
}

// Write applies every change or none of them: all eTags are checked before
// anything is stored.
func (s *Store) Write(ctx context.Context, changes map[string]*ports.StoreItem) error {
	if len(changes) == 0 {
		return nil
	}

	encoded := make(map[string][]byte, len(changes))
	for key, item := range changes {
		if item == nil {
			return fmt.Errorf("memory: nil item for %q: %w", key, domain.ErrMissingArgument)
		}
		raw, err := json.Marshal(item.Data)
		if err != nil {
			return fmt.Errorf("memory: encode %q: %w", key, err)
		}
		encoded[key] = raw
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range sortedKeys(changes) {
		if err := checkETag(key, changes[key].ETag, s.data); err != nil {
			return err
		}
	}

	for key, item := range changes {
		s.seq++
		etag := strconv.FormatUint(s.seq, 10)
		s.data[key] = record{etag: etag, data: encoded[key]}
		item.ETag = etag
	}
	return nil
}

// Delete removes the records.
func (s *Store) Delete(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

// List returns all stored keys in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func checkETag(key, etag string, data map[string]record) error {
	if etag == "" || etag == ports.ETagAny {
		return nil
	}
	rec, ok := data[key]
	if !ok || rec.etag != etag {
		return &domain.ConflictError{Key: key, Expected: etag}
	}
	return nil
}

func sortedKeys(m map[string]*ports.StoreItem) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
