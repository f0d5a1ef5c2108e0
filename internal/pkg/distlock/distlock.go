// Package distlock serialises validation runs across processes. A run over a
// source holds the lock named after that source; a second run over the same
// source is refused until the first releases it or its TTL lapses.
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoBackend is returned by NewLocker when neither redis nor postgres is set.
var ErrNoBackend = errors.New("distlock: no lock backend configured")

// Lock is one named lock. A Lock value belongs to a single run.
type Lock interface {
	// Acquire tries once and reports whether the lock is now held.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lock up if this Lock still owns it.
	Release(ctx context.Context) error
}

// Locker hands out locks on one backend.
type Locker struct {
	redis *redis.Client
	db    *sql.DB
	ttl   time.Duration
}

// NewLocker prefers redis and falls back to postgres advisory locks.
func NewLocker(redisClient *redis.Client, db *sql.DB, ttl time.Duration) (*Locker, error) {
	if redisClient == nil && db == nil {
		return nil, ErrNoBackend
	}
	return &Locker{redis: redisClient, db: db, ttl: ttl}, nil
}

// ForSource returns the run lock for a source name.
func (l *Locker) ForSource(source string) Lock {
	key := RunKey(source)
	if l.redis != nil {
		return NewRedisLock(l.redis, key, l.ttl)
	}
	return NewPGAdvisoryLock(l.db, key)
}

// RunKey is the lock name used for runs over source.
func RunKey(source string) string { return "panrun:" + source }

// PGAdvisoryLock uses session-scoped pg_try_advisory_lock. The lock goes away
// with the connection, so it needs no TTL.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
	conn   *sql.Conn
}

// NewPGAdvisoryLock derives a stable 64-bit lock ID from key.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{db: db, lockID: int64(h.Sum64())}
}

// Acquire pins a connection so Release unlocks on the same session.
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

// Release unlocks and returns the pinned connection to the pool.
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
