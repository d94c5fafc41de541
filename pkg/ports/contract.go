package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/palaver/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStorageContract runs a suite of tests to verify that a Storage implementation
// adheres to the defined interface contract, including the eTag policy.
func RunStorageContract(t *testing.T, storage Storage) {
	ctx := context.Background()
	prefix := "contract/" + time.Now().Format("20060102150405.000000") + "/"

	t.Run("Write and Read", func(t *testing.T) {
		key := prefix + "roundtrip"
		item := &StoreItem{Data: map[string]any{"foo": "bar", "count": 42}}

		err := storage.Write(ctx, map[string]*StoreItem{key: item})
		require.NoError(t, err, "Write should not return error")
		assert.NotEmpty(t, item.ETag, "Write should issue an eTag")

		got, err := storage.Read(ctx, []string{key})
		require.NoError(t, err, "Read should not return error")
		require.Contains(t, got, key)
		assert.Equal(t, item.ETag, got[key].ETag)
		assert.Equal(t, "bar", got[key].Data["foo"])
		// JSON backed stores turn ints into float64; only check presence.
		assert.NotNil(t, got[key].Data["count"])
	})

	t.Run("Read Missing", func(t *testing.T) {
		got, err := storage.Read(ctx, []string{prefix + "missing"})
		require.NoError(t, err)
		assert.Empty(t, got, "missing keys must be absent, not nil entries")
	})

	t.Run("Read Multiple", func(t *testing.T) {
		k1, k2 := prefix+"multi-1", prefix+"multi-2"
		require.NoError(t, storage.Write(ctx, map[string]*StoreItem{
			k1: {Data: map[string]any{"n": "one"}},
			k2: {Data: map[string]any{"n": "two"}},
		}))

		got, err := storage.Read(ctx, []string{k1, k2, prefix + "multi-absent"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.Equal(t, "two", got[k2].Data["n"])
	})

	t.Run("Stale ETag Conflicts", func(t *testing.T) {
		key := prefix + "stale"
		first := &StoreItem{Data: map[string]any{"v": "1"}}
		require.NoError(t, storage.Write(ctx, map[string]*StoreItem{key: first}))
		stale := first.ETag

		second := &StoreItem{ETag: stale, Data: map[string]any{"v": "2"}}
		require.NoError(t, storage.Write(ctx, map[string]*StoreItem{key: second}), "matching eTag must succeed")
		assert.NotEqual(t, stale, second.ETag, "each write issues a new eTag")

		third := &StoreItem{ETag: stale, Data: map[string]any{"v": "3"}}
		err := storage.Write(ctx, map[string]*StoreItem{key: third})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)

		got, err := storage.Read(ctx, []string{key})
		require.NoError(t, err)
		assert.Equal(t, "2", got[key].Data["v"], "rejected write must not be applied")
	})

	t.Run("Wildcard ETag Overwrites", func(t *testing.T) {
		key := prefix + "wildcard"
		require.NoError(t, storage.Write(ctx, map[string]*StoreItem{key: {Data: map[string]any{"v": "1"}}}))

		forced := &StoreItem{ETag: ETagAny, Data: map[string]any{"v": "forced"}}
		require.NoError(t, storage.Write(ctx, map[string]*StoreItem{key: forced}))

		got, err := storage.Read(ctx, []string{key})
		require.NoError(t, err)
		assert.Equal(t, "forced", got[key].Data["v"])
	})

	t.Run("Concrete ETag On Missing Record Conflicts", func(t *testing.T) {
		err := storage.Write(ctx, map[string]*StoreItem{
			prefix + "never-written": {ETag: "some-etag", Data: map[string]any{}},
		})
		assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	})

	t.Run("Read Returns Copies", func(t *testing.T) {
		key := prefix + "isolation"
		require.NoError(t, storage.Write(ctx, map[string]*StoreItem{key: {Data: map[string]any{"v": "original"}}}))

		got, err := storage.Read(ctx, []string{key})
		require.NoError(t, err)
		got[key].Data["v"] = "mutated"

		again, err := storage.Read(ctx, []string{key})
		require.NoError(t, err)
		assert.Equal(t, "original", again[key].Data["v"])
	})

	t.Run("Delete", func(t *testing.T) {
		key := prefix + "delete"
		require.NoError(t, storage.Write(ctx, map[string]*StoreItem{key: {Data: map[string]any{}}}))

		require.NoError(t, storage.Delete(ctx, []string{key}), "Delete should not return error")
		require.NoError(t, storage.Delete(ctx, []string{key}), "Deleting a missing key is not an error")

		got, err := storage.Read(ctx, []string{key})
		require.NoError(t, err)
		assert.NotContains(t, got, key)
	})
}
