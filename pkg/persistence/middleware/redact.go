package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/cortex/pkg/domain"
	"github.com/aretw0/cortex/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type redactMiddleware struct {
	next     ports.MemoryStore
	patterns []*regexp.Regexp
}

// NewRedactMiddleware creates a middleware that masks the values of
// structured payload keys matching any of the patterns before items are
// stored. Nested objects and arrays of objects are visited.
func NewRedactMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("redact pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.MemoryStore) ports.MemoryStore {
		return &redactMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *redactMiddleware) Add(ctx context.Context, item domain.MemoryItem) error {
	// The caller keeps the unmasked payload.
	item.Structured = m.mask(item.Structured)
	return m.next.Add(ctx, item)
}

func (m *redactMiddleware) Retrieve(ctx context.Context, q domain.MemoryQuery) ([]domain.MemoryItem, error) {
	return m.next.Retrieve(ctx, q)
}

// mask returns a masked copy of v. Values that are not objects or arrays
// are returned unchanged.
func (m *redactMiddleware) mask(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			if m.matches(k) {
				out[k] = Mask
				continue
			}
			out[k] = m.mask(sub)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, sub := range val {
			out[i] = m.mask(sub)
		}
		return out
	default:
		return v
	}
}

func (m *redactMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
