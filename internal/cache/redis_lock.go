package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	redis "github.com/redis/go-redis/v9"

	"github.com/jayhereforshort/haulharbor/internal/logger"
	"github.com/jayhereforshort/haulharbor/internal/store"
)

type RedisAccountLocker struct {
	locker *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisAccountLocker holds each lock for at most ttl and waits up to wait
// for a busy lock before giving up with store.ErrBusy.
func NewRedisAccountLocker(client *redis.Client, ttl time.Duration, wait time.Duration) *RedisAccountLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisAccountLocker{locker: redislock.New(client), ttl: ttl, wait: wait}
}

func (l *RedisAccountLocker) Lock(ctx context.Context, accountID string) (func(), error) {
	opts := &redislock.Options{}
	if l.wait > 0 {
		opts.RetryStrategy = redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), int(l.wait/(50*time.Millisecond)))
	}

	lock, err := l.locker.Obtain(ctx, fmt.Sprintf("%s:lock:sales:%s", keyPrefix, accountID), l.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, store.ErrBusy
	}
	if err != nil {
		return nil, err
	}

	return func() {
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logger.Warn(ctx, "release account lock failed", "account_id", accountID, "error", err)
		}
	}, nil
}
