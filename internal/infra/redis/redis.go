package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pingTimeout = 5 * time.Second
	clientName  = "notify-dispatch"
)

// NewRedis connects to the Redis used by the failure log and the provider rate limiter.
func NewRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	if opts.ClientName == "" {
		opts.ClientName = clientName
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// AppendOnlyEnabled reports whether the server persists writes to its append-only file. The
// failure log only survives a Redis restart when it does. Managed Redis offerings often block
// CONFIG, in which case an error is returned and the caller decides how to proceed.
func AppendOnlyEnabled(ctx context.Context, client redis.UniversalClient) (bool, error) {
	values, err := client.ConfigGet(ctx, "appendonly").Result()
	if err != nil {
		return false, fmt.Errorf("failed to read redis appendonly setting: %w", err)
	}

	value, ok := values["appendonly"]
	if !ok {
		return false, fmt.Errorf("redis did not report the appendonly setting")
	}
	return strings.EqualFold(value, "yes"), nil
}
