package util

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrLockTimeout = errors.New("timed out waiting for lock")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a SetNX based mutual exclusion lock shared by every process
// pointed at the same redis.
type RedisLock struct {
	rdb      *redis.Client
	ttl      time.Duration
	maxWait  time.Duration
	interval time.Duration
	logger   *zap.Logger
}

func NewRedisLock(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisLock {
	return &RedisLock{
		rdb:      rdb,
		ttl:      ttl,
		maxWait:  ttl,
		interval: 50 * time.Millisecond,
		logger:   logger,
	}
}

// Acquire blocks until the lock for name is held, ctx is done, or the
// lock TTL has elapsed. The returned func releases the lock.
//
// 当 redis 不可用时，不阻止处理：the store's own compare-and-set still
// prevents duplicate schedules, so a redis error only logs and proceeds.
func (l *RedisLock) Acquire(ctx context.Context, name string) (func(), error) {
	key := fmt.Sprintf("lock:%s", name)
	token := fmt.Sprintf("%d", time.Now().UnixNano())
	deadline := time.Now().Add(l.maxWait)

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			l.logger.Warn("Redis lock unavailable, continuing without it",
				zap.String("key", key),
				zap.Error(err),
			)
			return func() {}, nil
		}
		if ok {
			l.logger.Debug("Lock acquired", zap.String("key", key))
			return func() { l.release(key, token) }, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.interval):
		}
	}
}

func (l *RedisLock) release(key, token string) {
	// A fresh context: the caller's may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
		l.logger.Warn("Failed to release lock", zap.String("key", key), zap.Error(err))
	}
}
