package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	domainerrors "healthfirst/pkg/domain-errors"
	"healthfirst/pkg/platform/sentinel"

	"healthfirst/internal/provider"
)

// MemoryStore is an in-memory Store with the same uniqueness and token
// semantics as the Postgres implementation. Used by unit tests.
type MemoryStore struct {
	mu        sync.RWMutex
	providers map[uuid.UUID]*provider.Provider
	tokens    map[string]*TokenRecord
}

// NewMemory constructs an empty in-memory provider store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		providers: make(map[uuid.UUID]*provider.Provider),
		tokens:    make(map[string]*TokenRecord),
	}
}

func (s *MemoryStore) Create(_ context.Context, p *provider.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.providers {
		if strings.EqualFold(existing.Email, p.Email) {
			return domainerrors.New(domainerrors.CodeConflict, "A provider with this email address already exists.").
				WithField("email", "A provider with this email address already exists.")
		}
		if existing.PhoneNumber == p.PhoneNumber {
			return domainerrors.New(domainerrors.CodeConflict, "A provider with this phone number already exists.").
				WithField("phone_number", "A provider with this phone number already exists.")
		}
		if existing.LicenseNumber == p.LicenseNumber {
			return domainerrors.New(domainerrors.CodeConflict, "A provider with this license number already exists.").
				WithField("license_number", "A provider with this license number already exists.")
		}
	}

	clone := *p
	s.providers[p.ID] = &clone
	if token, expires, ok := p.EmailVerification.Pending(); ok {
		s.tokens[token] = &TokenRecord{
			ID:         uuid.New(),
			ProviderID: p.ID,
			Token:      token,
			ExpiresAt:  expires,
			CreatedAt:  p.CreatedAt,
		}
	}
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id uuid.UUID) (*provider.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*provider.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.providers {
		if strings.EqualFold(p.Email, email) {
			clone := *p
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) EmailTaken(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.providers {
		if strings.EqualFold(p.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) PhoneTaken(_ context.Context, phone string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.providers {
		if p.PhoneNumber == phone {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) LicenseTaken(_ context.Context, license string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.providers {
		if p.LicenseNumber == license {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) LookupToken(_ context.Context, token string) (*TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.tokens[token]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (s *MemoryStore) ConsumeToken(_ context.Context, token string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tokens[token]
	if !ok || rec.Consumed {
		return false, nil
	}
	rec.Consumed = true
	if p, ok := s.providers[rec.ProviderID]; ok {
		p.EmailVerification = provider.VerifiedEmail()
		p.UpdatedAt = now
	}
	return true, nil
}

func (s *MemoryStore) ReplacePendingToken(_ context.Context, providerID uuid.UUID, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for value, rec := range s.tokens {
		if rec.ProviderID == providerID && !rec.Consumed {
			delete(s.tokens, value)
		}
	}
	now := time.Now().UTC()
	s.tokens[token] = &TokenRecord{
		ID:         uuid.New(),
		ProviderID: providerID,
		Token:      token,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
	}
	if p, ok := s.providers[providerID]; ok {
		p.EmailVerification = provider.PendingEmailVerification(token, expiresAt)
		p.UpdatedAt = now
	}
	return nil
}

func (s *MemoryStore) DeleteExpiredTokens(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for value, rec := range s.tokens {
		if rec.Consumed || rec.ExpiresAt.After(cutoff) {
			continue
		}
		delete(s.tokens, value)
		if p, ok := s.providers[rec.ProviderID]; ok {
			p.EmailVerification = provider.NoEmailVerification()
		}
		removed++
	}
	return removed, nil
}
