package distlock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	releaseScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		end
		return 0
	`)
	extendScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		end
		return 0
	`)
)

// RedisLock is SET NX with a TTL and a random owner token, so a run never
// releases a lock that expired and was taken by another run.
type RedisLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// NewRedisLock creates an unacquired lock stored under "lock:<key>".
func NewRedisLock(client *redis.Client, key string, ttl time.Duration) *RedisLock {
	b := make([]byte, 16)
	rand.Read(b)
	return &RedisLock{
		client: client,
		key:    "lock:" + key,
		token:  hex.EncodeToString(b),
		ttl:    ttl,
	}
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	return ok, nil
}

func (l *RedisLock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return nil
}

// Extend pushes the TTL out for runs that outlast it. It reports false when
// the lock is no longer owned.
func (l *RedisLock) Extend(ctx context.Context, ttl time.Duration) (bool, error) {
	n, err := extendScript.Run(ctx, l.client, []string{l.key}, l.token, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("extend lock %s: %w", l.key, err)
	}
	return n == 1, nil
}

// TTL is the expiry set on acquire and on each extension.
func (l *RedisLock) TTL() time.Duration { return l.ttl }
