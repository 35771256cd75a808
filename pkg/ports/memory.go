package ports

import (
	"context"

	"github.com/aretw0/cortex/pkg/domain"
)

// MemoryStore records tool outcomes and retrieves them by relevance.
type MemoryStore interface {
	// Add persists an item. Items are never modified afterwards.
	Add(ctx context.Context, item domain.MemoryItem) error

	// Retrieve returns at most q.TopK items ordered by relevance to q.Text.
	// It has no side effects.
	Retrieve(ctx context.Context, q domain.MemoryQuery) ([]domain.MemoryItem, error)
}
