package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/aretw0/palaver/internal/codec"
	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/ports"
	"github.com/aretw0/palaver/pkg/turn"
)

// KeyFunc derives the storage key of a scope from the turn.
type KeyFunc func(tc *turn.Context) (string, error)

type cachedState struct {
	key   string
	state map[string]any
	etag  string
	hash  string
}

// BotState is a storage backed property bag for one scope.
type BotState struct {
	storage  ports.Storage
	name     string
	keyFn    KeyFunc
	cacheKey turn.Key[*cachedState]
}

// New creates a BotState named name that stores its record under keyFn(tc).
func New(storage ports.Storage, name string, keyFn KeyFunc) *BotState {
	return &BotState{
		storage:  storage,
		name:     name,
		keyFn:    keyFn,
		cacheKey: turn.NewKey[*cachedState]("state:" + name),
	}
}

// Name returns the scope name.
func (b *BotState) Name() string { return b.name }

// Storage returns the backing storage.
func (b *BotState) Storage() ports.Storage { return b.storage }

// StorageKey returns the record key for the turn.
func (b *BotState) StorageKey(tc *turn.Context) (string, error) {
	return b.keyFn(tc)
}

// Load reads the scope record into the turn cache. It is a no-op if the
// record is already cached, unless force is set.
func (b *BotState) Load(ctx context.Context, tc *turn.Context, force bool) error {
	key, err := b.keyFn(tc)
	if err != nil {
		return err
	}

	if cached, ok := turn.Get(tc, b.cacheKey); ok && !force && cached.key == key {
		return nil
	}

	items, err := b.storage.Read(ctx, []string{key})
	if err != nil {
		return fmt.Errorf("state: load %s: %w", b.name, err)
	}

	cs := &cachedState{key: key, state: map[string]any{}}
	if item, ok := items[key]; ok {
		cs.etag = item.ETag
		if item.Data != nil {
			cs.state = item.Data
		}
	}
	if cs.hash, err = hash(cs.state); err != nil {
		return fmt.Errorf("state: load %s: %w", b.name, err)
	}

	turn.Set(tc, b.cacheKey, cs)
	return nil
}

// SaveChanges writes the cached record if it changed since Load, or always
// when force is set. A forced write ignores the stored eTag.
func (b *BotState) SaveChanges(ctx context.Context, tc *turn.Context, force bool) error {
	cs, ok := turn.Get(tc, b.cacheKey)
	if !ok {
		return nil
	}

	h, err := hash(cs.state)
	if err != nil {
		return fmt.Errorf("state: save %s: %w", b.name, err)
	}
	if !force && h == cs.hash {
		return nil
	}

	item := &ports.StoreItem{ETag: cs.etag, Data: cs.state}
	if force {
		item.ETag = ports.ETagAny
	}
	if err := b.storage.Write(ctx, map[string]*ports.StoreItem{cs.key: item}); err != nil {
		return fmt.Errorf("state: save %s: %w", b.name, err)
	}

	cs.etag = item.ETag
	cs.hash = h
	return nil
}

// Clear empties the cached record. The eTag is kept, so the following save
// still detects concurrent writers.
func (b *BotState) Clear(ctx context.Context, tc *turn.Context) error {
	key, err := b.keyFn(tc)
	if err != nil {
		return err
	}
	cs, ok := turn.Get(tc, b.cacheKey)
	if !ok || cs.key != key {
		cs = &cachedState{key: key}
		turn.Set(tc, b.cacheKey, cs)
	}
	cs.state = map[string]any{}
	cs.hash = ""
	return nil
}

// Delete drops the cached record and removes it from storage.
func (b *BotState) Delete(ctx context.Context, tc *turn.Context) error {
	key, err := b.keyFn(tc)
	if err != nil {
		return err
	}
	turn.Delete(tc, b.cacheKey)
	if err := b.storage.Delete(ctx, []string{key}); err != nil {
		return fmt.Errorf("state: delete %s: %w", b.name, err)
	}
	return nil
}

// Get returns the live cached record.
func (b *BotState) Get(tc *turn.Context) (map[string]any, error) {
	cs, err := b.cached(tc)
	if err != nil {
		return nil, err
	}
	return cs.state, nil
}

// ETag returns the eTag observed at load time or issued by the last save.
func (b *BotState) ETag(tc *turn.Context) (string, error) {
	cs, err := b.cached(tc)
	if err != nil {
		return "", err
	}
	return cs.etag, nil
}

// GetProperty returns a property of the loaded record.
func (b *BotState) GetProperty(tc *turn.Context, name string) (any, bool, error) {
	cs, err := b.cached(tc)
	if err != nil {
		return nil, false, err
	}
	v, ok := cs.state[name]
	return v, ok, nil
}

// SetProperty sets a property of the loaded record.
func (b *BotState) SetProperty(tc *turn.Context, name string, value any) error {
	if name == "" {
		return fmt.Errorf("state: property name: %w", domain.ErrMissingArgument)
	}
	cs, err := b.cached(tc)
	if err != nil {
		return err
	}
	cs.state[name] = value
	return nil
}

// DeleteProperty removes a property of the loaded record.
func (b *BotState) DeleteProperty(tc *turn.Context, name string) error {
	cs, err := b.cached(tc)
	if err != nil {
		return err
	}
	delete(cs.state, name)
	return nil
}

func (b *BotState) cached(tc *turn.Context) (*cachedState, error) {
	cs, ok := turn.Get(tc, b.cacheKey)
	if !ok {
		return nil, fmt.Errorf("state: %s: %w", b.name, domain.ErrStateNotLoaded)
	}
	return cs, nil
}

// hash fingerprints the JSON form of state. Typed values are normalized to
// generic maps first, so a decoded struct hashes the same as the record it
// was read from.
func hash(state map[string]any) (string, error) {
	canonical, err := codec.CloneMap(state)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(canonical)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
