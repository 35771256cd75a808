// Package redis provides Redis-backed memory and locking for agents that
// share state across processes.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/cortex/pkg/domain"
	"github.com/aretw0/cortex/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "cortex:memory:"

// farFuture is the index score of sessions without expiry (2100-01-01).
const farFuture = 4102444800

// globalSession holds items recorded without a session.
const globalSession = "_"

// Store implements ports.MemoryStore using Redis.
// Items are kept in one list per session; a sorted set indexes live sessions
// by expiry so Retrieve without a session filter can visit all of them.
type Store struct {
	client   *backend.Client
	prefix   string
	ttl      time.Duration
	maxItems int64
}

var _ ports.MemoryStore = (*Store)(nil)

type Option func(*Store)

// WithTTL sets the expiration for session memory. Every Add refreshes it.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithMaxItems caps the items kept per session. Older items are trimmed first.
func WithMaxItems(n int) Option {
	return func(s *Store) {
		s.maxItems = int64(n)
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(sessionID string) string {
	if sessionID == "" {
		sessionID = globalSession
	}
	return s.prefix + "session:" + sessionID
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Add appends the item to its session list and refreshes the session expiry.
func (s *Store) Add(ctx context.Context, item domain.MemoryItem) error {
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now()
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal memory item: %w", err)
	}

	member := item.SessionID
	if member == "" {
		member = globalSession
	}

	// Score = Now + TTL. Without TTL the session never leaves the index.
	score := float64(farFuture)
	if s.ttl > 0 {
		score = float64(time.Now().Add(s.ttl).Unix())
	}

	key := s.key(item.SessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if s.maxItems > 0 {
		pipe.LTrim(ctx, key, -s.maxItems, -1)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: member})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save memory to redis: %w", err)
	}
	return nil
}

// Retrieve loads the candidate sessions and ranks their items against q.
func (s *Store) Retrieve(ctx context.Context, q domain.MemoryQuery) ([]domain.MemoryItem, error) {
	var sessions []string
	if q.SessionID != "" {
		sessions = []string{q.SessionID}
	} else {
		var err error
		if sessions, err = s.liveSessions(ctx); err != nil {
			return nil, err
		}
	}

	pipe := s.client.Pipeline()
	cmds := make([]*backend.StringSliceCmd, len(sessions))
	for i, id := range sessions {
		cmds[i] = pipe.LRange(ctx, s.key(id), 0, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != backend.Nil {
		return nil, fmt.Errorf("failed to read memory from redis: %w", err)
	}

	var items []domain.MemoryItem
	for _, cmd := range cmds {
		for _, raw := range cmd.Val() {
			var item domain.MemoryItem
			if err := json.Unmarshal([]byte(raw), &item); err != nil {
				return nil, fmt.Errorf("failed to unmarshal memory item: %w", err)
			}
			items = append(items, item)
		}
	}
	return domain.RankMemory(items, q), nil
}

// Sessions returns the sessions with live memory.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	sessions, err := s.liveSessions(ctx)
	if err != nil {
		return nil, err
	}
	out := sessions[:0]
	for _, id := range sessions {
		if id != globalSession {
			out = append(out, id)
		}
	}
	return out, nil
}

// liveSessions prunes expired index entries and returns the rest.
func (s *Store) liveSessions(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
	}

	sessions, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Delete removes the memory of a session.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	member := sessionID
	if member == "" {
		member = globalSession
	}
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(sessionID))
	pipe.ZRem(ctx, s.indexKey(), member)
	_, err := pipe.Exec(ctx)
	return err
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
