package redis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/cortex/pkg/adapters/redis"
	"github.com/aretw0/cortex/pkg/domain"
	"github.com/aretw0/cortex/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	ports.RunMemoryStoreContract(t, store)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, domain.MemoryItem{Text: "search → sunny", SessionID: "session-ttl"}))

	sessions, err := store.Sessions(ctx)
	require.NoError(t, err)
	assert.Contains(t, sessions, "session-ttl")

	// Key expiration is driven by miniredis time.
	mr.FastForward(2 * time.Second)

	items, err := store.Retrieve(ctx, domain.MemoryQuery{Text: "sunny", SessionID: "session-ttl"})
	require.NoError(t, err)
	assert.Empty(t, items)

	// Index pruning is driven by wall time.
	time.Sleep(1200 * time.Millisecond)

	sessions, err = store.Sessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestRedisStore_MaxItemsAndDelete(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("test:"), redis.WithMaxItems(2))
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, store.Add(ctx, domain.MemoryItem{Text: text, SessionID: "s1"}))
	}
	assert.True(t, mr.Exists("test:session:s1"))

	items, err := store.Retrieve(ctx, domain.MemoryQuery{SessionID: "s1"})
	require.NoError(t, err)
	texts := []string{}
	for _, item := range items {
		texts = append(texts, item.Text)
		assert.False(t, item.Timestamp.IsZero(), "timestamp is filled on add")
	}
	assert.ElementsMatch(t, []string{"two", "three"}, texts)

	require.NoError(t, store.Delete(ctx, "s1"))
	assert.False(t, mr.Exists("test:session:s1"))

	sessions, err := store.Sessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestRedisStore_GlobalItems(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, domain.MemoryItem{Text: "shared fact about lisbon"}))

	items, err := store.Retrieve(ctx, domain.MemoryQuery{Text: "lisbon"})
	require.NoError(t, err)
	require.Len(t, items, 1)

	sessions, err := store.Sessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions, "unscoped items do not count as a session")
}

func TestLocker(t *testing.T) {
	_, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "msg-1", time.Minute)
	require.NoError(t, err)

	_, err = locker.TryLock(ctx, "msg-1", time.Minute)
	assert.True(t, errors.Is(err, redis.ErrLockAcquire))

	waitCtx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(waitCtx, "msg-1", time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(ctx))

	unlock2, err := locker.TryLock(ctx, "msg-1", time.Minute)
	require.NoError(t, err)

	// A stale unlock must not release someone else's lock.
	require.NoError(t, unlock(ctx))
	_, err = locker.TryLock(ctx, "msg-1", time.Minute)
	assert.ErrorIs(t, err, redis.ErrLockAcquire)

	require.NoError(t, unlock2(ctx))
}
