package distlock

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeepAlive_ExtendsHeldLock(t *testing.T) {
	client, mr := setupRedis(t)
	ctx := context.Background()
	lock := NewRedisLock(client, "panrun:slow", 150*time.Millisecond)
	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	var lost atomic.Bool
	stop := KeepAlive(ctx, lock, func() { lost.Store(true) })
	defer stop()

	mr.SetTTL("lock:panrun:slow", time.Hour)
	assert.Eventually(t, func() bool {
		return mr.TTL("lock:panrun:slow") == 150*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, lost.Load())
}

func TestKeepAlive_ReportsLostLock(t *testing.T) {
	client, mr := setupRedis(t)
	ctx := context.Background()
	lock := NewRedisLock(client, "panrun:slow", 150*time.Millisecond)
	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	lostCh := make(chan struct{})
	stop := KeepAlive(ctx, lock, func() { close(lostCh) })
	defer stop()

	require.NoError(t, mr.Set("lock:panrun:slow", "someone-else"))
	select {
	case <-lostCh:
	case <-time.After(2 * time.Second):
		t.Fatal("lost callback not called")
	}
}

func TestKeepAlive_NonExpiringLockIsNoop(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	stop := KeepAlive(context.Background(), NewPGAdvisoryLock(db, "k"), func() { t.Error("unexpected lost") })
	stop()
	stop()
}
