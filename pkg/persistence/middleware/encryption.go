package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/ports"
)

const envelopeField = "__encrypted__"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.Storage
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts every record
// using AES-GCM. Only the eTag stays readable in the wrapped storage.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, fmt.Errorf("active key must be 32 bytes (AES-256): %w", domain.ErrConfiguration)
	}
	return func(next ports.Storage) ports.Storage {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}, nil
}

func (m *encryptionMiddleware) Write(ctx context.Context, changes map[string]*ports.StoreItem) error {
	envelopes := make(map[string]*ports.StoreItem, len(changes))
	for key, item := range changes {
		plainText, err := json.Marshal(item.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal %q: %w", key, err)
		}

		ciphertext, err := encrypt(plainText, m.config.ActiveKey)
		if err != nil {
			return fmt.Errorf("failed to encrypt %q: %w", key, err)
		}

		envelopes[key] = &ports.StoreItem{
			ETag: item.ETag,
			Data: map[string]any{envelopeField: base64.StdEncoding.EncodeToString(ciphertext)},
		}
	}

	if err := m.next.Write(ctx, envelopes); err != nil {
		return err
	}
	copyETags(changes, envelopes)
	return nil
}

func (m *encryptionMiddleware) Read(ctx context.Context, keys []string) (map[string]*ports.StoreItem, error) {
	envelopes, err := m.next.Read(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*ports.StoreItem, len(envelopes))
	for key, envelope := range envelopes {
		encryptedStr, ok := envelope.Data[envelopeField].(string)
		if !ok {
			// Fail secure: a plain record in an encrypted store is not trusted.
			return nil, fmt.Errorf("record %q is missing encrypted data envelope", key)
		}

		ciphertext, err := base64.StdEncoding.DecodeString(encryptedStr)
		if err != nil {
			return nil, fmt.Errorf("failed to decode ciphertext base64 of %q: %w", key, err)
		}

		plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt %q: %w", key, err)
		}

		var data map[string]any
		if err := json.Unmarshal(plainText, &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal decrypted %q: %w", key, err)
		}
		if data == nil {
			data = map[string]any{}
		}
		out[key] = &ports.StoreItem{ETag: envelope.ETag, Data: data}
	}
	return out, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, keys []string) error {
	return m.next.Delete(ctx, keys)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return list(ctx, m.next)
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}

	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}
