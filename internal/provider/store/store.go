// Package store persists providers and their verification tokens. It ships
// two implementations with identical semantics: an in-memory store used by
// unit tests and a Postgres store used in production.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"healthfirst/internal/provider"
)

// TokenRecord is a verification token row. Consumed tokens are retained so a
// repeated verification call can be answered idempotently instead of being
// mistaken for an invalid token.
type TokenRecord struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	Token      string
	ExpiresAt  time.Time
	Consumed   bool
	CreatedAt  time.Time
}

// Store is the persistence boundary for provider registration.
//
// Create is atomic: the clinic address, the provider row and the initial
// verification token are written together or not at all. Uniqueness
// violations surface as a coded conflict error naming the offending field.
type Store interface {
	// Create inserts the provider together with its clinic address and,
	// when the provider carries a pending verification, its token row.
	Create(ctx context.Context, p *provider.Provider) error

	FindByID(ctx context.Context, id uuid.UUID) (*provider.Provider, error)
	FindByEmail(ctx context.Context, email string) (*provider.Provider, error)

	EmailTaken(ctx context.Context, email string) (bool, error)
	PhoneTaken(ctx context.Context, phone string) (bool, error)
	LicenseTaken(ctx context.Context, license string) (bool, error)

	// LookupToken returns the token row for the exact token value, consumed
	// or not. sentinel.ErrNotFound when no such token was ever issued (or it
	// has been swept).
	LookupToken(ctx context.Context, token string) (*TokenRecord, error)

	// ConsumeToken atomically marks the token consumed and the provider
	// verified. It returns false without error when the token was already
	// consumed by a concurrent call, so exactly one caller observes true.
	ConsumeToken(ctx context.Context, token string, now time.Time) (bool, error)

	// ReplacePendingToken discards any unconsumed token for the provider and
	// installs a fresh one.
	ReplacePendingToken(ctx context.Context, providerID uuid.UUID, token string, expiresAt time.Time) error

	// DeleteExpiredTokens removes unconsumed tokens that expired at or
	// before cutoff and reports how many were removed.
	DeleteExpiredTokens(ctx context.Context, cutoff time.Time) (int64, error)
}
