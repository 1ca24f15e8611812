package ratelimit

import (
	"context"
	"time"
)

// Service applies the registration rate limit policy to a bucket store.
type Service struct {
	store  BucketStore
	window time.Duration
	max    int
}

func NewService(store BucketStore, window time.Duration, max int) *Service {
	return &Service{store: store, window: window, max: max}
}

// CheckRegistration records an attempt for the client IP and reports
// whether it is allowed.
func (s *Service) CheckRegistration(ctx context.Context, ip string) (*Result, error) {
	return s.store.Allow(ctx, RegistrationKey(ip), s.max, s.window)
}

// Reset clears the bucket for an IP, for admin tooling and tests.
func (s *Service) Reset(ctx context.Context, ip string) error {
	return s.store.Reset(ctx, RegistrationKey(ip))
}
