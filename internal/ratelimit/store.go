package ratelimit

import (
	"context"
	"time"
)

// BucketStore records an attempt against a key and reports whether it fits
// inside the window. Implementations use a sliding window so a burst right
// before a window boundary cannot double the effective limit.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
	Reset(ctx context.Context, key string) error
}
