// Package lock provides a Redis-backed run lock.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"sftsync/internal/store"
)

const keyPrefix = "lock:"

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock implements store.Locker with SET NX and a token-checked release.
type RedisLock struct {
	client redis.UniversalClient
	mu     sync.Mutex
	tokens map[string]string
}

func NewRedisLock(client redis.UniversalClient) *RedisLock {
	return &RedisLock{client: client, tokens: make(map[string]string)}
}

func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, keyPrefix+key, token, ttl).Result()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.tokens[key] = token
	l.mu.Unlock()
	return true, nil
}

// Release is a no-op when the lock expired or was never held by l.
func (l *RedisLock) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	token, held := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()
	if !held {
		return nil
	}
	return releaseScript.Run(ctx, l.client, []string{keyPrefix + key}, token).Err()
}

var _ store.Locker = (*RedisLock)(nil)
