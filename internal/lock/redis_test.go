package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("SYNCER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SYNCER_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return client
}

func TestRedisLockExclusive(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	key := "sftsync-test-" + time.Now().Format("150405.000000")

	first := NewRedisLock(client)
	second := NewRedisLock(client)

	ok, err := first.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	// Releasing a lock held elsewhere leaves it in place.
	require.NoError(t, second.Release(ctx, key))
	ok, err = second.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, first.Release(ctx, key))
	ok, err = second.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, second.Release(ctx, key))
}

func TestRedisLockReleaseAfterExpiry(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	key := "sftsync-expiry-" + time.Now().Format("150405.000000")

	first := NewRedisLock(client)
	ok, err := first.Acquire(ctx, key, 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(100 * time.Millisecond)
	second := NewRedisLock(client)
	ok, err = second.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// The expired holder must not delete the new holder's lock.
	require.NoError(t, first.Release(ctx, key))
	exists, err := client.Exists(ctx, keyPrefix+key).Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), exists)
	require.NoError(t, second.Release(ctx, key))
}
