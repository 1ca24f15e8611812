package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryBucketStore is a sliding-window store for a single process. Rejected
// attempts are not recorded, so a throttled client's wait does not extend.
type MemoryBucketStore struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
	now     func() time.Time
}

func NewMemoryBucketStore() *MemoryBucketStore {
	return &MemoryBucketStore{
		buckets: make(map[string][]time.Time),
		now:     time.Now,
	}
}

func (s *MemoryBucketStore) Allow(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-window)

	timestamps := s.buckets[key]
	i := 0
	for ; i < len(timestamps); i++ {
		if timestamps[i].After(cutoff) {
			break
		}
	}
	timestamps = timestamps[i:]

	if len(timestamps) >= limit {
		oldest := timestamps[0]
		s.buckets[key] = timestamps
		return &Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    oldest.Add(window),
			RetryAfter: oldest.Add(window).Sub(now),
		}, nil
	}

	timestamps = append(timestamps, now)
	s.buckets[key] = timestamps
	return &Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(timestamps),
		ResetAt:   timestamps[0].Add(window),
	}, nil
}

func (s *MemoryBucketStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
	return nil
}
