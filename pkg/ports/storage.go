package ports

import "context"

// ETagAny forces a write regardless of the stored eTag.
const ETagAny = "*"

// StoreItem is a single persisted record. Every record carries an eTag; a write
// that presents a concrete eTag only succeeds if it still matches the stored one.
type StoreItem struct {
	ETag string         `json:"eTag"`
	Data map[string]any `json:"data"`
}

// Storage defines the key/blob persistence used by bot state.
//
// Concurrency policy: an empty eTag or ETagAny writes unconditionally; any other
// eTag must equal the currently stored eTag, and a concrete eTag against a missing
// record is a conflict. Conflicts are reported as *domain.ConflictError.
type Storage interface {
	// Read returns the records that exist for the given keys. Missing keys are
	// absent from the result map; values are never nil.
	Read(ctx context.Context, keys []string) (map[string]*StoreItem, error)

	// Write persists the given records and sets the newly issued eTag on each item.
	Write(ctx context.Context, changes map[string]*StoreItem) error

	// Delete removes the given keys. Missing keys are ignored.
	Delete(ctx context.Context, keys []string) error
}

// Lister is implemented by storages that can enumerate their keys.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}
