// Package distlock serializes runs that touch the same destination. Two
// overlapping runs would both see the same existing-key snapshot and write
// duplicate rows, so a run holds a lock for its whole duration.
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned by Hold when another process owns the lock.
var ErrNotAcquired = errors.New("lock held by another run")

// DistLock is the interface for distributed locking.
// Implementations must be safe for use from a single goroutine.
type DistLock interface {
	// Acquire tries to acquire the lock without blocking. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// KeyFor builds the lock key for a spreadsheet.
func KeyFor(spreadsheetID string) string {
	return "campaign-tracker:" + spreadsheetID
}

// NewLock picks a backend: Redis when a client is given, else a PostgreSQL
// advisory lock when db is given, else a process-local no-op lock.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	switch {
	case redisClient != nil:
		return NewRedisLock(redisClient, key, ttl)
	case db != nil:
		return NewPGAdvisoryLock(db, key)
	default:
		return NoopLock{}
	}
}

// Hold acquires l, runs fn and releases l. Release errors are returned only
// when fn itself succeeded.
func Hold(ctx context.Context, l DistLock, fn func(ctx context.Context) error) (err error) {
	ok, err := l.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring run lock: %w", err)
	}
	if !ok {
		return ErrNotAcquired
	}
	defer func() {
		// Release on a fresh context so a cancelled run still unlocks.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if rerr := l.Release(releaseCtx); rerr != nil && err == nil {
			err = fmt.Errorf("releasing run lock: %w", rerr)
		}
	}()
	return fn(ctx)
}

// NoopLock always succeeds. Used when no lock backend is configured; runs
// must then be serialized by the scheduler.
type NoopLock struct{}

// Acquire always succeeds.
func (NoopLock) Acquire(context.Context) (bool, error) { return true, nil }

// Release does nothing.
func (NoopLock) Release(context.Context) error { return nil }

// PGAdvisoryLock implements DistLock with pg_try_advisory_lock. The lock is
// session-scoped, so it is pinned to one pooled connection and released
// automatically if that connection drops.
type PGAdvisoryLock struct {
	db     *sql.DB
	conn   *sql.Conn
	lockID int64
}

// NewPGAdvisoryLock derives a deterministic lock ID from key.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire tries the advisory lock on a dedicated connection.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release unlocks on the connection that acquired the lock.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	defer func() {
		l.conn.Close()
		l.conn = nil
	}()
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}
