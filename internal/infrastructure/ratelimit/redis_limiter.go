// Package ratelimit provides the Redis-backed sliding-window limiter used when
// several server instances share one admission budget.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/commxr/commxr-go/internal/domain/entities/ratelimit"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/commxr/commxr-go/internal/infrastructure/security"
	"github.com/redis/go-redis/v9"
)

// RedisLimiterConfig configures the Redis limiter.
type RedisLimiterConfig struct {
	Prefix string           // key prefix, default "commxr:ratelimit"
	Clock  func() time.Time // default time.Now
}

// RedisLimiter keeps one sorted set per key, scored by request time in
// microseconds. A request is recorded first and removed again when it pushed
// the window over its limit, so concurrent callers never both slip through.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
	logger *logging.ChanneledLogger
}

// NewRedisLimiter creates a limiter over an existing client
func NewRedisLimiter(client redis.UniversalClient, logger *logging.ChanneledLogger, config ...RedisLimiterConfig) *RedisLimiter {
	cfg := RedisLimiterConfig{}
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "commxr:ratelimit"
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &RedisLimiter{client: client, prefix: cfg.Prefix, now: cfg.Clock, logger: logger}
}

// NewClientFromURL parses a redis:// URL and pings the server
func NewClientFromURL(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func (l *RedisLimiter) key(key string) string {
	return l.prefix + ":" + key
}

// CheckAndIncrement admits the request when fewer than limit requests were
// recorded in the trailing window. Transport failures admit the request.
func (l *RedisLimiter) CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) ratelimit.Result {
	now := l.now()
	resetAt := now.Unix() + int64(window/time.Second)
	redisKey := l.key(key)
	member := strconv.FormatInt(now.UnixMicro(), 10) + "-" + security.GenerateULID()

	var card *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "-inf", windowStartScore(now, window))
		pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixMicro()), Member: member})
		card = pipe.ZCard(ctx, redisKey)
		pipe.Expire(ctx, redisKey, window+time.Second)
		return nil
	})
	if err != nil {
		l.logger.RateLimit().Error("Redis limiter unavailable, admitting request", "key", key, "error", err)
		return ratelimit.Result{Allowed: true, Limit: limit, Remaining: limit, ResetAt: resetAt}
	}

	count := int(card.Val())
	if count > limit {
		if err := l.client.ZRem(ctx, redisKey, member).Err(); err != nil {
			l.logger.RateLimit().Warn("Failed to roll back rejected request", "key", key, "error", err)
		}
		l.logger.RateLimit().Debug("Request rejected", "key", key, "limit", limit)
		return ratelimit.Result{Allowed: false, Limit: limit, Remaining: 0, ResetAt: resetAt}
	}

	return ratelimit.Result{Allowed: true, Limit: limit, Remaining: limit - count, ResetAt: resetAt}
}

// CurrentCount returns the number of requests inside the window without recording one
func (l *RedisLimiter) CurrentCount(ctx context.Context, key string, window time.Duration) int {
	n, err := l.client.ZCount(ctx, l.key(key), "("+windowStartScore(l.now(), window), "+inf").Result()
	if err != nil {
		l.logger.RateLimit().Error("Redis limiter count failed", "key", key, "error", err)
		return 0
	}
	return int(n)
}

// Clear deletes every limiter key. Intended for tests.
func (l *RedisLimiter) Clear(ctx context.Context) error {
	iter := l.client.Scan(ctx, 0, l.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		if err := l.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// windowStartScore is the inclusive upper bound of expired entries
func windowStartScore(now time.Time, window time.Duration) string {
	return strconv.FormatInt(now.Add(-window).UnixMicro(), 10)
}
