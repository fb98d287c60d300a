package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/notify-dispatch/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultLimitPerSec int64 = 10
	windowSeconds            = 1
	rateLimitKeyPrefix       = "ratelimit:provider"
)

var allowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RateLimiterOption configures a RedisRateLimiter.
type RateLimiterOption func(*RedisRateLimiter)

// WithProviderLimit overrides the per-second budget for one provider.
func WithProviderLimit(provider string, limitPerSec int) RateLimiterOption {
	return func(r *RedisRateLimiter) {
		if limitPerSec > 0 {
			r.overrides[normalizeProvider(provider)] = int64(limitPerSec)
		}
	}
}

// RedisRateLimiter is a fixed-window per-second limiter shared by every process sending through
// the same provider accounts.
type RedisRateLimiter struct {
	client      goredis.Scripter
	limitPerSec int64
	overrides   map[string]int64
	now         func() time.Time
	script      *goredis.Script
}

func NewRedisRateLimiter(client goredis.Scripter, limitPerSec int, opts ...RateLimiterOption) (*RedisRateLimiter, error) {
	return newRedisRateLimiter(client, int64(limitPerSec), time.Now, opts...)
}

func newRedisRateLimiter(
	client goredis.Scripter,
	limitPerSec int64,
	nowFn func() time.Time,
	opts ...RateLimiterOption,
) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if limitPerSec <= 0 {
		limitPerSec = defaultLimitPerSec
	}
	if nowFn == nil {
		nowFn = time.Now
	}

	r := &RedisRateLimiter{
		client:      client,
		limitPerSec: limitPerSec,
		overrides:   make(map[string]int64),
		now:         nowFn,
		script:      allowScript,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Limit returns the per-second budget applied to provider.
func (r *RedisRateLimiter) Limit(provider string) int64 {
	if limit, ok := r.overrides[normalizeProvider(provider)]; ok {
		return limit
	}
	return r.limitPerSec
}

func (r *RedisRateLimiter) Allow(ctx context.Context, provider string) (bool, error) {
	if r == nil || r.client == nil || r.script == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}

	name := normalizeProvider(provider)
	if name == "" {
		return false, fmt.Errorf("provider is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key := fmt.Sprintf("%s:%s:%d", rateLimitKeyPrefix, name, r.now().UTC().Unix())
	result, err := r.script.Run(ctx, r.client, []string{key}, r.Limit(name), windowSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}

	return result == 1, nil
}

func normalizeProvider(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
