package ratelimit

import (
	"context"
	"time"

	"callcenter-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares windows across instances with an atomic INCR+PEXPIRE script.
type RedisStore struct {
	rdb    redis.Scripter
	prefix string
}

func NewRedisStore(rdb redis.Scripter, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) Hit(ctx context.Context, key string, window time.Duration, now time.Time) (int, time.Time, error) {
	count, ttl, err := utils.IncrFixedWindow(ctx, s.rdb, s.prefix+key, window)
	if err != nil {
		return 0, time.Time{}, err
	}
	return int(count), now.Add(ttl), nil
}
