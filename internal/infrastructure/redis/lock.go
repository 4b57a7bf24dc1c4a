package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// releaseScript deletes the key only when it still holds our token, so an
// expired lock grabbed by another instance is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a held distributed lock.
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// Release frees the lock. Safe to call after expiry.
func (l *Lock) Release(ctx context.Context) {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil && err != redis.Nil {
		log.Warn().Err(err).Str("key", l.key).Msg("failed to release distributed lock")
	}
}

// LockManager hands out best-effort distributed locks. Serialization across
// instances is advisory; database row locks remain the source of truth.
type LockManager struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLockManager creates a lock manager with the given default TTL
func NewLockManager(client *redis.Client, ttl time.Duration) *LockManager {
	return &LockManager{client: client, ttl: ttl}
}

// Acquire takes the lock, waiting with short polls until the context ends.
func (m *LockManager) Acquire(ctx context.Context, key string) (*Lock, error) {
	token := uuid.NewString()
	fullKey := "lock:" + key

	for {
		ok, err := m.client.SetNX(ctx, fullKey, token, m.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquiring lock %s: %w", fullKey, err)
		}
		if ok {
			return &Lock{client: m.client, key: fullKey, token: token}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquiring lock %s: %w", fullKey, ctx.Err())
		case <-time.After(50 * time.Millisecond):
		}
	}
}
