package core

import (
	"context"
	"time"
)

// RateLimitStore decides whether a client may make another request.
// MemoryRateLimitStore is the in-process implementation.
type RateLimitStore interface {
	// Allow consumes one request from key's budget.
	Allow(ctx context.Context, key string) (RateLimitResult, error)
}

// RateLimitResult contains the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed bool
	// Limit is the bucket size (burst).
	Limit int
	// Remaining is the number of whole requests left right now.
	Remaining int
	// RetryAfter is how long until one request is available again. Zero
	// when Allowed.
	RetryAfter time.Duration
}
