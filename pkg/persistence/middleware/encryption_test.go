package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/aretw0/palaver/pkg/adapters/memory"
	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/persistence/middleware"
	"github.com/aretw0/palaver/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func encrypted(t *testing.T, config middleware.EncryptionConfig, next ports.Storage) ports.Storage {
	mw, err := middleware.NewEncryptionMiddleware(config)
	require.NoError(t, err)
	return mw(next)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	ports.RunStorageContract(t, encrypted(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)}, memory.NewStore()))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	secure := encrypted(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)}, underlying)
	ctx := context.Background()
	key := "test/conversations/c1"

	item := &ports.StoreItem{Data: map[string]any{"secret": "my-secret-sauce"}}
	require.NoError(t, secure.Write(ctx, map[string]*ports.StoreItem{key: item}))
	assert.NotEmpty(t, item.ETag, "the wrapped storage's eTag is reported back")

	raw, err := underlying.Read(ctx, []string{key})
	require.NoError(t, err)
	assert.NotContains(t, raw[key].Data, "secret", "plain values must not reach storage")
	assert.Contains(t, raw[key].Data, "__encrypted__")
	assert.Equal(t, item.ETag, raw[key].ETag)

	got, err := secure.Read(ctx, []string{key})
	require.NoError(t, err)
	assert.Equal(t, "my-secret-sauce", got[key].Data["secret"])
	assert.Equal(t, item.ETag, got[key].ETag)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)
	ctx := context.Background()

	old := encrypted(t, middleware.EncryptionConfig{ActiveKey: oldKey}, underlying)
	require.NoError(t, old.Write(ctx, map[string]*ports.StoreItem{"k": {Data: map[string]any{"v": "1"}}}))

	rotated := encrypted(t, middleware.EncryptionConfig{ActiveKey: newKey, FallbackKeys: [][]byte{oldKey}}, underlying)
	got, err := rotated.Read(ctx, []string{"k"})
	require.NoError(t, err)
	assert.Equal(t, "1", got["k"].Data["v"])

	wrong := encrypted(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)}, underlying)
	_, err = wrong.Read(ctx, []string{"k"})
	assert.Error(t, err)
}

func TestEncryptionMiddleware_RejectsPlainRecords(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, underlying.Write(ctx, map[string]*ports.StoreItem{"k": {Data: map[string]any{"v": "plain"}}}))

	_, err := encrypted(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)}, underlying).Read(ctx, []string{"k"})
	assert.ErrorContains(t, err, "missing encrypted data envelope")
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short")})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
