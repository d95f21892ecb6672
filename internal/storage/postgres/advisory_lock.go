package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"sftsync/internal/store"
)

// AdvisoryLock is a store.Locker backed by session-level Postgres advisory
// locks. Each held key pins one pooled connection until Release.
type AdvisoryLock struct {
	pool  *pgxpool.Pool
	mu    sync.Mutex
	conns map[string]*pgxpool.Conn
}

// AdvisoryLock returns a locker sharing the store's pool.
func (s *Store) AdvisoryLock() *AdvisoryLock {
	return &AdvisoryLock{pool: s.pool, conns: make(map[string]*pgxpool.Conn)}
}

// Acquire tries the lock without waiting. The ttl is unused: the lock lives
// as long as the session.
func (l *AdvisoryLock) Acquire(ctx context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.conns[key]; held {
		return false, nil
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, key).Scan(&locked); err != nil {
		conn.Release()
		return false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !locked {
		conn.Release()
		return false, nil
	}
	l.conns[key] = conn
	return true, nil
}

func (l *AdvisoryLock) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	conn, held := l.conns[key]
	delete(l.conns, key)
	l.mu.Unlock()
	if !held {
		return nil
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock(hashtext($1))`, key); err != nil {
		// The session may still hold the lock; drop the connection so it is released.
		conn.Conn().Close(ctx)
		return fmt.Errorf("advisory unlock: %w", err)
	}
	return nil
}

var _ store.Locker = (*AdvisoryLock)(nil)
