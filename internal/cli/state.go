package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/ports"
)

// ListState writes the stored keys that start with prefix, one per line.
func ListState(ctx context.Context, w io.Writer, storage ports.Storage, prefix string) (int, error) {
	lister, ok := storage.(ports.Lister)
	if !ok {
		return 0, fmt.Errorf("cli: storage cannot list keys: %w", domain.ErrNotSupported)
	}
	keys, err := lister.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		fmt.Fprintln(w, k)
		n++
	}
	return n, nil
}

// ShowState writes a record as indented JSON, including its eTag.
func ShowState(ctx context.Context, w io.Writer, storage ports.Storage, key string) error {
	items, err := storage.Read(ctx, []string{key})
	if err != nil {
		return err
	}
	item, ok := items[key]
	if !ok {
		return fmt.Errorf("cli: state %q: %w", key, domain.ErrNotFound)
	}
	out, err := json.MarshalIndent(struct {
		Key  string         `json:"key"`
		ETag string         `json:"eTag"`
		Data map[string]any `json:"data"`
	}{key, item.ETag, item.Data}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// DeleteState removes records. Missing keys are not an error.
func DeleteState(ctx context.Context, storage ports.Storage, keys ...string) error {
	return storage.Delete(ctx, keys)
}
