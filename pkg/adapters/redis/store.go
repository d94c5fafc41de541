package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

const defaultPrefix = "palaver:state:"

// farFuture is the index score of records without a TTL (2100-01-01).
const farFuture = 4102444800

// Store implements ports.Storage using Redis. Conditional writes use
// WATCH/MULTI so a concurrent writer between the eTag check and the write
// aborts the transaction instead of being overwritten.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for state records.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for state records.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: defaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(key string) string {
	return s.prefix + key
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Read fetches all keys with a single MGET.
func (s *Store) Read(ctx context.Context, keys []string) (map[string]*ports.StoreItem, error) {
	out := make(map[string]*ports.StoreItem, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}

	vals, err := s.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read: %w", err)
	}

	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		item, err := decode(raw)
		if err != nil {
			return nil, fmt.Errorf("redis: decode %q: %w", keys[i], err)
		}
		out[keys[i]] = item
	}
	return out, nil
}

// Write stores the changes in one transaction. Keys carrying a concrete eTag
// are watched and compared before the transaction is queued.
func (s *Store) Write(ctx context.Context, changes map[string]*ports.StoreItem) error {
	if len(changes) == 0 {
		return nil
	}

	keys := make([]string, 0, len(changes))
	for k, item := range changes {
		if item == nil {
			return fmt.Errorf("redis: nil item for %q: %w", k, domain.ErrMissingArgument)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	watched := []string{}
	for _, k := range keys {
		if etag := changes[k].ETag; etag != "" && etag != ports.ETagAny {
			watched = append(watched, s.key(k))
		}
	}

	issued := make(map[string]string, len(keys))
	payloads := make(map[string][]byte, len(keys))
	for _, k := range keys {
		issued[k] = uuid.NewString()
		data := changes[k].Data
		if data == nil {
			data = map[string]any{}
		}
		raw, err := json.Marshal(ports.StoreItem{ETag: issued[k], Data: data})
		if err != nil {
			return fmt.Errorf("redis: encode %q: %w", k, err)
		}
		payloads[k] = raw
	}

	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = farFuture
	}

	txf := func(tx *backend.Tx) error {
		for _, k := range keys {
			etag := changes[k].ETag
			if etag == "" || etag == ports.ETagAny {
				continue
			}
			raw, err := tx.Get(ctx, s.key(k)).Result()
			if errors.Is(err, backend.Nil) {
				return &domain.ConflictError{Key: k, Expected: etag}
			}
			if err != nil {
				return fmt.Errorf("redis: read %q: %w", k, err)
			}
			current, err := decode(raw)
			if err != nil {
				return fmt.Errorf("redis: decode %q: %w", k, err)
			}
			if current.ETag != etag {
				return &domain.ConflictError{Key: k, Expected: etag}
			}
		}

		_, err := tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			for _, k := range keys {
				pipe.Set(ctx, s.key(k), payloads[k], s.ttl)
				pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: k})
			}
			return nil
		})
		return err
	}

	if err := s.client.Watch(ctx, txf, watched...); err != nil {
		if errors.Is(err, backend.TxFailedErr) {
			return &domain.ConflictError{Key: keys[0], Expected: changes[keys[0]].ETag}
		}
		return err
	}

	for _, k := range keys {
		changes[k].ETag = issued[k]
	}
	return nil
}

// Delete removes the records and their index entries.
func (s *Store) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, k := range keys {
		pipe.Del(ctx, s.key(k))
		pipe.ZRem(ctx, s.indexKey(), k)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: delete: %w", err)
	}
	return nil
}

// List returns live keys from the index, lazily pruning expired entries.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("redis: prune expired keys: %w", err)
	}

	keys, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list: %w", err)
	}
	return keys, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func decode(raw string) (*ports.StoreItem, error) {
	var item ports.StoreItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return nil, err
	}
	if item.Data == nil {
		item.Data = map[string]any{}
	}
	return &item, nil
}
