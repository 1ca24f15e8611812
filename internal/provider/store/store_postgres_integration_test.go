//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	domainerrors "healthfirst/pkg/domain-errors"
	"healthfirst/pkg/platform/sentinel"
	"healthfirst/pkg/testutil/containers"

	"healthfirst/internal/provider"
	"healthfirst/internal/provider/store"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"verification_tokens", "providers", "clinic_addresses")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newProvider(email string) *provider.Provider {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &provider.Provider{
		ID:                uuid.New(),
		FirstName:         "Jane",
		LastName:          "Smith",
		Email:             email,
		PhoneNumber:       "+1" + uuid.NewString()[:10],
		PasswordHash:      "$2a$12$fakehashfakehashfakehash",
		Specialization:    "cardiology",
		LicenseNumber:     "MD" + uuid.NewString()[:8],
		YearsOfExperience: 10,
		ClinicAddress: provider.ClinicAddress{
			ID:      uuid.New(),
			Street:  "123 Main St",
			City:    "Springfield",
			State:   "IL",
			ZipCode: "62701",
		},
		VerificationStatus: provider.StatusPending,
		EmailVerification:  provider.PendingEmailVerification("tok-"+uuid.NewString(), now.Add(24*time.Hour)),
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// TestCreateRoundTrip verifies the provider, address and token persist together.
func (s *PostgresStoreSuite) TestCreateRoundTrip() {
	ctx := context.Background()

	p := s.newProvider("roundtrip@example.com")
	token, expires, _ := p.EmailVerification.Pending()
	s.Require().NoError(s.store.Create(ctx, p))

	found, err := s.store.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(p.Email, found.Email)
	s.Equal(p.ClinicAddress.Street, found.ClinicAddress.Street)
	s.Equal(provider.StatusPending, found.VerificationStatus)

	gotToken, gotExpires, ok := found.EmailVerification.Pending()
	s.Require().True(ok)
	s.Equal(token, gotToken)
	s.WithinDuration(expires, gotExpires, time.Second)

	_, err = s.store.FindByID(ctx, uuid.New())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

// TestUniqueViolations verifies constraint names map back to request fields.
func (s *PostgresStoreSuite) TestUniqueViolations() {
	ctx := context.Background()

	first := s.newProvider("unique@example.com")
	s.Require().NoError(s.store.Create(ctx, first))

	dupEmail := s.newProvider("unique@example.com")
	err := s.store.Create(ctx, dupEmail)
	s.Require().Error(err)
	s.True(domainerrors.Is(err, domainerrors.CodeConflict))
	s.Contains(domainerrors.FieldsOf(err), "email")

	dupPhone := s.newProvider("other@example.com")
	dupPhone.PhoneNumber = first.PhoneNumber
	err = s.store.Create(ctx, dupPhone)
	s.Require().Error(err)
	s.Contains(domainerrors.FieldsOf(err), "phone_number")

	dupLicense := s.newProvider("third@example.com")
	dupLicense.LicenseNumber = first.LicenseNumber
	err = s.store.Create(ctx, dupLicense)
	s.Require().Error(err)
	s.Contains(domainerrors.FieldsOf(err), "license_number")

	// A failed create leaves no orphan address row behind.
	var addresses int
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx,
		"SELECT count(*) FROM clinic_addresses").Scan(&addresses))
	s.Equal(1, addresses)
}

// TestConcurrentConsume verifies exactly one of N concurrent verifications
// consumes the token.
func (s *PostgresStoreSuite) TestConcurrentConsume() {
	ctx := context.Background()

	p := s.newProvider("concurrent@example.com")
	token, _, _ := p.EmailVerification.Pending()
	s.Require().NoError(s.store.Create(ctx, p))

	const goroutines = 20
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumed, err := s.store.ConsumeToken(ctx, token, time.Now().UTC())
			if err == nil && consumed {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())

	found, err := s.store.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.True(found.EmailVerification.Verified())

	rec, err := s.store.LookupToken(ctx, token)
	s.Require().NoError(err)
	s.True(rec.Consumed)
}

// TestTokenReplaceAndSweep verifies reissue and expiry cleanup.
func (s *PostgresStoreSuite) TestTokenReplaceAndSweep() {
	ctx := context.Background()
	now := time.Now().UTC()

	p := s.newProvider("sweep@example.com")
	oldToken, _, _ := p.EmailVerification.Pending()
	s.Require().NoError(s.store.Create(ctx, p))

	s.Require().NoError(s.store.ReplacePendingToken(ctx, p.ID, "reissued", now.Add(-72*time.Hour)))

	_, err := s.store.LookupToken(ctx, oldToken)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	removed, err := s.store.DeleteExpiredTokens(ctx, now.Add(-48*time.Hour))
	s.Require().NoError(err)
	s.Equal(int64(1), removed)

	found, err := s.store.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.False(found.EmailVerification.Verified())
	_, _, pending := found.EmailVerification.Pending()
	s.False(pending)
}
