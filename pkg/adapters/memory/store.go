// Package memory provides an in-process MemoryStore.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/cortex/pkg/domain"
	"github.com/aretw0/cortex/pkg/ports"
)

// Store implements ports.MemoryStore in memory.
// Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	items []domain.MemoryItem
	limit int
}

var _ ports.MemoryStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLimit caps the number of retained items. The oldest items are evicted first.
func WithLimit(n int) Option {
	return func(s *Store) {
		s.limit = n
	}
}

// NewStore creates a new in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add records an item.
func (s *Store) Add(ctx context.Context, item domain.MemoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append(s.items, clone(item))
	if s.limit > 0 && len(s.items) > s.limit {
		s.items = slices.Delete(s.items, 0, len(s.items)-s.limit)
	}
	return nil
}

// Retrieve returns the items most relevant to q.
func (s *Store) Retrieve(ctx context.Context, q domain.MemoryQuery) ([]domain.MemoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ranked := domain.RankMemory(s.items, q)
	for i := range ranked {
		ranked[i] = clone(ranked[i])
	}
	return ranked, nil
}

// Len returns the number of stored items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// clone copies the mutable parts of an item so callers can't reach store state.
func clone(item domain.MemoryItem) domain.MemoryItem {
	item.Tags = slices.Clone(item.Tags)
	if m, ok := item.Structured.(map[string]any); ok {
		item.Structured = maps.Clone(m)
	}
	return item
}
