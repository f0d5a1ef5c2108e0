package distlock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ignite/pan-validator/internal/pkg/logger"
)

// ErrLockLost means an expiring lock was taken over or lapsed mid-run.
var ErrLockLost = errors.New("distlock: run lock lost")

// Refresher is a Lock that expires unless extended.
type Refresher interface {
	Lock
	Extend(ctx context.Context, ttl time.Duration) (bool, error)
	TTL() time.Duration
}

// KeepAlive extends l every third of its TTL until stop is called or ctx is
// done. lost runs once if an extension finds the lock no longer owned. Locks
// that do not expire get a no-op stop.
func KeepAlive(ctx context.Context, l Lock, lost func()) (stop func()) {
	r, ok := l.(Refresher)
	if !ok || r.TTL() <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(r.TTL() / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				held, err := r.Extend(ctx, r.TTL())
				if err != nil {
					logger.Warn("extend run lock", "error", err)
					continue
				}
				if !held {
					lost()
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		wg.Wait()
	}
}
