package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"fusion-trader/internal/logger"
)

// releaseScript deletes the key only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var ErrNotAcquired = errors.New("lock not acquired")

// RedisLocker is a lease lock shared by every process using the same Redis.
// Leases expire after ttl so a crashed holder cannot wedge an instrument.
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

func NewRedisLocker(rdb *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{rdb: rdb, prefix: prefix, ttl: ttl, retry: 50 * time.Millisecond}
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	k := r.prefix + key
	token := uuid.NewString()

	for {
		ok, err := r.rdb.SetNX(ctx, k, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", k, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, k, ctx.Err())
		case <-time.After(r.retry):
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// release must not be skipped because the caller's ctx was cancelled
		if err := releaseScript.Run(context.WithoutCancel(ctx), r.rdb, []string{k}, token).Err(); err != nil {
			logger.ErrorWithErr(ctx, "Failed to release lock", err, "key", k)
		}
	}, nil
}
