package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/palaver/internal/codec"
	"github.com/aretw0/palaver/pkg/domain"
	"github.com/aretw0/palaver/pkg/ports"
)

// Mask replaces the values of masked keys.
const Mask = "***"

type piiMiddleware struct {
	next     ports.Storage
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks values of keys matching
// the patterns before they reach storage. The caller's state is not changed,
// but the masked values are what later turns will read back.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PII pattern %q: %v: %w", p, err, domain.ErrConfiguration)
		}
		patterns[i] = re
	}
	return func(next ports.Storage) ports.Storage {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Write(ctx context.Context, changes map[string]*ports.StoreItem) error {
	masked := make(map[string]*ports.StoreItem, len(changes))
	for key, item := range changes {
		// Cloning through JSON also flattens typed values into maps the
		// masking can walk.
		data, err := codec.CloneMap(item.Data)
		if err != nil {
			return fmt.Errorf("failed to copy %q: %w", key, err)
		}
		maskMap(data, m.patterns)
		masked[key] = &ports.StoreItem{ETag: item.ETag, Data: data}
	}

	if err := m.next.Write(ctx, masked); err != nil {
		return err
	}
	copyETags(changes, masked)
	return nil
}

func (m *piiMiddleware) Read(ctx context.Context, keys []string) (map[string]*ports.StoreItem, error) {
	return m.next.Read(ctx, keys)
}

func (m *piiMiddleware) Delete(ctx context.Context, keys []string) error {
	return m.next.Delete(ctx, keys)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return list(ctx, m.next)
}

// Helpers

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		if matchesAny(k, patterns) {
			m[k] = Mask
			continue
		}
		maskValue(v, patterns)
	}
}

func maskValue(v any, patterns []*regexp.Regexp) {
	switch t := v.(type) {
	case map[string]any:
		maskMap(t, patterns)
	case []any:
		for _, e := range t {
			maskValue(e, patterns)
		}
	}
}

func matchesAny(key string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
