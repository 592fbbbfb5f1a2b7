package sessionsvc

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore remembers invalidated refresh token IDs until their natural
// expiry. Entries outliving the token's lifetime are useless, so every write
// carries a TTL.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

const revokedKeyPrefix = "console:revoked:"

var _ RevocationStore = (*RedisRevocations)(nil)

// RedisRevocations keeps revocations in Redis so every consoled replica
// observes a logout immediately.
type RedisRevocations struct {
	rdb *redis.Client
}

// NewRedisRevocations wraps an existing Redis client.
func NewRedisRevocations(rdb *redis.Client) *RedisRevocations {
	return &RedisRevocations{rdb: rdb}
}

func (r *RedisRevocations) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl).Err()
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.rdb.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

var _ RevocationStore = (*MemoryRevocations)(nil)

// MemoryRevocations is a process-local store for dev and tests.
type MemoryRevocations struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocations returns an empty in-memory store.
func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (m *MemoryRevocations) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[tokenID] = m.now().Add(ttl)
	m.prune()
	return nil
}

func (m *MemoryRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deadline, ok := m.entries[tokenID]
	if !ok {
		return false, nil
	}
	if m.now().After(deadline) {
		delete(m.entries, tokenID)
		return false, nil
	}
	return true, nil
}

// prune drops expired entries; called under the lock.
func (m *MemoryRevocations) prune() {
	now := m.now()
	for id, deadline := range m.entries {
		if now.After(deadline) {
			delete(m.entries, id)
		}
	}
}
