package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only while it still holds our token, so
// a lock that expired and was taken by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisOptions tunes RedisLocker.
type RedisOptions struct {
	Prefix     string        // key namespace, e.g. "lock"
	TTL        time.Duration // lease length; must exceed the longest critical section
	Attempts   int           // SET NX tries before giving up
	RetryDelay time.Duration // pause between tries
}

// RedisLocker implements Locker with SET NX PX and a token-checked
// release.
type RedisLocker struct {
	rdb  *redis.Client
	opts RedisOptions
	log  *zap.Logger
}

// NewRedisLocker builds a RedisLocker. Zero option fields fall back to
// sane defaults.
func NewRedisLocker(rdb *redis.Client, opts RedisOptions, log *zap.Logger) *RedisLocker {
	if opts.Prefix == "" {
		opts.Prefix = "lock"
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Second
	}
	if opts.Attempts < 1 {
		opts.Attempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 100 * time.Millisecond
	}
	return &RedisLocker{rdb: rdb, opts: opts, log: log}
}

// Lock tries to take key up to Attempts times.
func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	full := l.opts.Prefix + ":" + key
	token := uuid.New().String()

	for i := 0; i < l.opts.Attempts; i++ {
		ok, err := l.rdb.SetNX(ctx, full, token, l.opts.TTL).Result()
		if err != nil {
			l.log.Error("redis lock: set failed", zap.String("key", full), zap.Error(err))
		}
		if ok {
			return l.unlocker(full, token), nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.opts.RetryDelay):
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotAcquired, full)
}

func (l *RedisLocker) unlocker(key, token string) Unlock {
	var once sync.Once
	return func() {
		once.Do(func() {
			// Released with a fresh context: the caller's may already be cancelled.
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
				l.log.Warn("redis lock: release failed", zap.String("key", key), zap.Error(err))
			}
		})
	}
}
