package middleware

import (
	"context"
	"fmt"

	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/ports"
)

// Middleware allows wrapping a Storage to add behavior.
type Middleware func(ports.Storage) ports.Storage

// Chain wraps storage with mws. The first middleware is the outermost.
func Chain(storage ports.Storage, mws ...Middleware) ports.Storage {
	for i := len(mws) - 1; i >= 0; i-- {
		storage = mws[i](storage)
	}
	return storage
}

// list forwards List to next when it can enumerate keys.
func list(ctx context.Context, next ports.Storage) ([]string, error) {
	l, ok := next.(ports.Lister)
	if !ok {
		return nil, fmt.Errorf("storage %T cannot list keys: %w", next, domain.ErrNotSupported)
	}
	return l.List(ctx)
}

// copyETags reports the eTags issued for the wrapped records back to the
// caller's items.
func copyETags(dst, src map[string]*ports.StoreItem) {
	for k, item := range dst {
		if written, ok := src[k]; ok {
			item.ETag = written.ETag
		}
	}
}
