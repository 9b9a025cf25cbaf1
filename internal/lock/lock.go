// Package lock provides a Redis lease used to elect one replica for
// periodic jobs.
package lock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLocker takes leases with SET NX PX.  A lease is never released
// explicitly; it simply runs out.
type RedisLocker struct {
	rdb   *redis.Client
	owner string
}

// NewRedisLocker returns a locker that records owner as the lease holder.
func NewRedisLocker(rdb *redis.Client, owner string) *RedisLocker {
	return &RedisLocker{rdb: rdb, owner: owner}
}

// TryLock reports whether the caller now holds key for ttl.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.rdb.SetNX(ctx, key, l.owner, ttl).Result()
}
