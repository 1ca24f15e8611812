package audit

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps attempts in a slice. Used by unit tests.
type MemoryStore struct {
	mu       sync.RWMutex
	attempts []Attempt
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, attempt Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, attempt)
	return nil
}

func (s *MemoryStore) ListByEmail(_ context.Context, email string) ([]Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Attempt
	for _, a := range s.attempts {
		if strings.EqualFold(a.Email, email) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListRecent(_ context.Context, limit int) ([]Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.attempts)
	if limit > n {
		limit = n
	}
	out := make([]Attempt, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.attempts[i])
	}
	return out, nil
}

func (s *MemoryStore) CountFailuresSince(_ context.Context, ip string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, a := range s.attempts {
		if a.IPAddress == ip && !a.Success && !a.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// All returns a copy of every recorded attempt, oldest first.
func (s *MemoryStore) All() []Attempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Attempt{}, s.attempts...)
}
