package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestRedisLock_Exclusive(t *testing.T) {
	client, mr := setupRedis(t)
	ctx := context.Background()
	locker, err := NewLocker(client, nil, time.Minute)
	require.NoError(t, err)

	first := locker.ForSource("file:batch.csv")
	second := locker.ForSource("file:batch.csv")
	other := locker.ForSource("s3://b/k")

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("lock:panrun:file:batch.csv"))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "same source must be refused")

	ok, err = other.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "different source is independent")

	require.NoError(t, second.Release(ctx))
	assert.True(t, mr.Exists("lock:panrun:file:batch.csv"), "non-owner release is a no-op")

	require.NoError(t, first.Release(ctx))
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_TTLAndExtend(t *testing.T) {
	client, mr := setupRedis(t)
	ctx := context.Background()
	lock := NewRedisLock(client, "panrun:x", time.Second)

	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	extended, err := lock.Extend(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, extended)
	assert.Equal(t, time.Minute, mr.TTL("lock:panrun:x"))

	mr.FastForward(2 * time.Minute)
	extended, err = lock.Extend(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, extended)
}

func TestPGAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	lock := NewPGAdvisoryLock(db, RunKey("postgres:staging.pan"))
	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WithArgs(lock.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec("SELECT pg_advisory_unlock").
		WithArgs(lock.lockID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, lock.Release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewLocker_NoBackend(t *testing.T) {
	_, err := NewLocker(nil, nil, time.Minute)
	assert.ErrorIs(t, err, ErrNoBackend)
}
