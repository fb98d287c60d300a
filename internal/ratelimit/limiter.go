package ratelimit

import "context"

// RateLimiter bounds how often a provider may be called. Allow never blocks: a denied call is
// expected to fall through to the next provider.
type RateLimiter interface {
	Allow(ctx context.Context, provider string) (bool, error)
}
