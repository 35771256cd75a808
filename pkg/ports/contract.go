package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/cortex/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunMemoryStoreContract runs a suite of tests to verify that a MemoryStore
// implementation adheres to the interface contract.
// The store must be empty when the suite starts.
func RunMemoryStoreContract(t *testing.T, store MemoryStore) {
	ctx := context.Background()
	suffix := time.Now().Format("20060102150405.000000000")
	sessionA := "contract-a-" + suffix
	sessionB := "contract-b-" + suffix
	base := time.Now().Add(-time.Hour)

	t.Run("Retrieve Empty", func(t *testing.T) {
		items, err := store.Retrieve(ctx, domain.MemoryQuery{Text: "anything", TopK: 3, SessionID: sessionA})
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	seed := []domain.MemoryItem{
		{Text: "search(q=weather) → sunny in lisbon", Kind: domain.KindToolOutput, ToolName: "search", SessionID: sessionA, Timestamp: base},
		{Text: "create_sheet(title=standings) → sheet created", Kind: domain.KindToolOutput, ToolName: "create_sheet", SessionID: sessionA, Timestamp: base.Add(time.Minute)},
		{Text: "user asked about league standings", Kind: "note", SessionID: sessionA, Timestamp: base.Add(2 * time.Minute)},
		{Text: "search(q=standings) → table for another session", Kind: domain.KindToolOutput, ToolName: "search", SessionID: sessionB, Timestamp: base.Add(3 * time.Minute)},
	}
	for _, item := range seed {
		require.NoError(t, store.Add(ctx, item), "Add should not return error")
	}

	t.Run("Session Filter", func(t *testing.T) {
		items, err := store.Retrieve(ctx, domain.MemoryQuery{Text: "standings", TopK: 10, SessionID: sessionA})
		require.NoError(t, err)
		require.Len(t, items, 3)
		for _, item := range items {
			assert.Equal(t, sessionA, item.SessionID)
		}
	})

	t.Run("Relevance Order", func(t *testing.T) {
		items, err := store.Retrieve(ctx, domain.MemoryQuery{Text: "sheet standings", TopK: 1, SessionID: sessionA})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "create_sheet", items[0].ToolName)
	})

	t.Run("Kind Filter", func(t *testing.T) {
		items, err := store.Retrieve(ctx, domain.MemoryQuery{Text: "standings", TopK: 10, SessionID: sessionA, Kind: "note"})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "user asked about league standings", items[0].Text)
	})

	t.Run("Without Session Filter", func(t *testing.T) {
		items, err := store.Retrieve(ctx, domain.MemoryQuery{Text: "standings", TopK: 10, Kind: domain.KindToolOutput})
		require.NoError(t, err)
		sessions := map[string]bool{}
		for _, item := range items {
			sessions[item.SessionID] = true
		}
		assert.True(t, sessions[sessionA])
		assert.True(t, sessions[sessionB])
	})

	t.Run("Items Are Preserved", func(t *testing.T) {
		items, err := store.Retrieve(ctx, domain.MemoryQuery{Text: "weather lisbon", TopK: 1, SessionID: sessionA})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, seed[0].Text, items[0].Text)
		assert.Equal(t, seed[0].ToolName, items[0].ToolName)
		assert.True(t, seed[0].Timestamp.Equal(items[0].Timestamp))
	})
}
