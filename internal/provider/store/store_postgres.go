package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	domainerrors "healthfirst/pkg/domain-errors"
	"healthfirst/pkg/platform/sentinel"
	txcontext "healthfirst/pkg/platform/tx"

	"healthfirst/internal/provider"
)

// PostgresStore persists providers in PostgreSQL. Unique violations are
// translated back to request fields by constraint name, so the schema's
// constraint names are part of the contract.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed provider store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, p *provider.Provider) error {
	err := txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		ex := s.execer(ctx)

		_, err := ex.ExecContext(ctx, `
			INSERT INTO clinic_addresses (id, street, city, state, zip_code)
			VALUES ($1, $2, $3, $4, $5)
		`,
			p.ClinicAddress.ID,
			p.ClinicAddress.Street,
			p.ClinicAddress.City,
			p.ClinicAddress.State,
			p.ClinicAddress.ZipCode,
		)
		if err != nil {
			return fmt.Errorf("insert clinic address: %w", err)
		}

		_, err = ex.ExecContext(ctx, `
			INSERT INTO providers (
				id, first_name, last_name, email, phone_number, password_hash,
				specialization, license_number, years_of_experience,
				clinic_address_id, verification_status, license_document_url,
				is_active, is_staff, is_superuser, email_verified,
				created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		`,
			p.ID,
			p.FirstName,
			p.LastName,
			p.Email,
			p.PhoneNumber,
			p.PasswordHash,
			string(p.Specialization),
			p.LicenseNumber,
			p.YearsOfExperience,
			p.ClinicAddress.ID,
			string(p.VerificationStatus),
			nullString(p.LicenseDocumentURL),
			p.IsActive,
			p.IsStaff,
			p.IsSuperuser,
			p.EmailVerification.Verified(),
			p.CreatedAt,
			p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert provider: %w", err)
		}

		if token, expires, ok := p.EmailVerification.Pending(); ok {
			_, err = ex.ExecContext(ctx, `
				INSERT INTO verification_tokens (id, provider_id, token, expires_at, consumed, created_at)
				VALUES ($1, $2, $3, $4, FALSE, $5)
			`, uuid.New(), p.ID, token, expires, p.CreatedAt)
			if err != nil {
				return fmt.Errorf("insert verification token: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if conflict := conflictError(err); conflict != nil {
			return conflict
		}
		return err
	}
	return nil
}

const providerColumns = `
	p.id, p.first_name, p.last_name, p.email, p.phone_number, p.password_hash,
	p.specialization, p.license_number, p.years_of_experience,
	p.verification_status, p.license_document_url,
	p.is_active, p.is_staff, p.is_superuser, p.email_verified,
	p.created_at, p.updated_at,
	a.id, a.street, a.city, a.state, a.zip_code,
	t.token, t.expires_at
`

const providerFrom = `
	FROM providers p
	JOIN clinic_addresses a ON a.id = p.clinic_address_id
	LEFT JOIN verification_tokens t ON t.provider_id = p.id AND NOT t.consumed
`

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*provider.Provider, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+providerColumns+providerFrom+` WHERE p.id = $1`, id)
	p, err := scanProvider(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find provider by id: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*provider.Provider, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+providerColumns+providerFrom+` WHERE p.email = $1`, email)
	p, err := scanProvider(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find provider by email: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) EmailTaken(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM providers WHERE email = $1)`, email)
}

func (s *PostgresStore) PhoneTaken(ctx context.Context, phone string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM providers WHERE phone_number = $1)`, phone)
}

func (s *PostgresStore) LicenseTaken(ctx context.Context, license string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM providers WHERE license_number = $1)`, license)
}

func (s *PostgresStore) exists(ctx context.Context, query string, arg any) (bool, error) {
	var exists bool
	if err := s.execer(ctx).QueryRowContext(ctx, query, arg).Scan(&exists); err != nil {
		return false, fmt.Errorf("check uniqueness: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) LookupToken(ctx context.Context, token string) (*TokenRecord, error) {
	var rec TokenRecord
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, provider_id, token, expires_at, consumed, created_at
		FROM verification_tokens
		WHERE token = $1
	`, token).Scan(&rec.ID, &rec.ProviderID, &rec.Token, &rec.ExpiresAt, &rec.Consumed, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lookup verification token: %w", err)
	}
	return &rec, nil
}

// ConsumeToken flips the token to consumed and the provider to verified in
// one transaction. The WHERE NOT consumed guard makes exactly one of any
// set of concurrent callers observe consumed=true.
func (s *PostgresStore) ConsumeToken(ctx context.Context, token string, now time.Time) (bool, error) {
	var consumed bool
	err := txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		ex := s.execer(ctx)

		var providerID uuid.UUID
		err := ex.QueryRowContext(ctx, `
			UPDATE verification_tokens
			SET consumed = TRUE
			WHERE token = $1 AND NOT consumed
			RETURNING provider_id
		`, token).Scan(&providerID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("consume verification token: %w", err)
		}

		_, err = ex.ExecContext(ctx, `
			UPDATE providers
			SET email_verified = TRUE, updated_at = $2
			WHERE id = $1
		`, providerID, now)
		if err != nil {
			return fmt.Errorf("mark provider verified: %w", err)
		}
		consumed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return consumed, nil
}

func (s *PostgresStore) ReplacePendingToken(ctx context.Context, providerID uuid.UUID, token string, expiresAt time.Time) error {
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		ex := s.execer(ctx)

		_, err := ex.ExecContext(ctx, `
			DELETE FROM verification_tokens
			WHERE provider_id = $1 AND NOT consumed
		`, providerID)
		if err != nil {
			return fmt.Errorf("discard pending token: %w", err)
		}

		_, err = ex.ExecContext(ctx, `
			INSERT INTO verification_tokens (id, provider_id, token, expires_at, consumed, created_at)
			VALUES ($1, $2, $3, $4, FALSE, $5)
		`, uuid.New(), providerID, token, expiresAt, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("insert verification token: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) DeleteExpiredTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `
		DELETE FROM verification_tokens
		WHERE NOT consumed AND expires_at <= $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted tokens: %w", err)
	}
	return n, nil
}

func scanProvider(row *sql.Row) (*provider.Provider, error) {
	var (
		p           provider.Provider
		specs       string
		status      string
		licenseDoc  sql.NullString
		verified    bool
		token       sql.NullString
		tokenExpiry sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.PhoneNumber, &p.PasswordHash,
		&specs, &p.LicenseNumber, &p.YearsOfExperience,
		&status, &licenseDoc,
		&p.IsActive, &p.IsStaff, &p.IsSuperuser, &verified,
		&p.CreatedAt, &p.UpdatedAt,
		&p.ClinicAddress.ID, &p.ClinicAddress.Street, &p.ClinicAddress.City,
		&p.ClinicAddress.State, &p.ClinicAddress.ZipCode,
		&token, &tokenExpiry,
	)
	if err != nil {
		return nil, err
	}
	p.Specialization = provider.Specialization(specs)
	p.VerificationStatus = provider.VerificationStatus(status)
	p.LicenseDocumentURL = licenseDoc.String

	switch {
	case verified:
		p.EmailVerification = provider.VerifiedEmail()
	case token.Valid && tokenExpiry.Valid:
		p.EmailVerification = provider.PendingEmailVerification(token.String, tokenExpiry.Time)
	default:
		p.EmailVerification = provider.NoEmailVerification()
	}
	return &p, nil
}

// uniqueConstraints maps schema constraint names to the request field and
// client message reported when that constraint is violated.
var uniqueConstraints = map[string]struct {
	field   string
	message string
}{
	"ux_providers_email": {
		field:   "email",
		message: "A provider with this email address already exists.",
	},
	"ux_providers_phone_number": {
		field:   "phone_number",
		message: "A provider with this phone number already exists.",
	},
	"ux_providers_license_number": {
		field:   "license_number",
		message: "A provider with this license number already exists.",
	},
}

// conflictError translates a Postgres unique violation into a field-tagged
// conflict error, or returns nil when err is not a unique violation.
func conflictError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return nil
	}
	mapping, ok := uniqueConstraints[pqErr.Constraint]
	if !ok {
		return domainerrors.Wrap(err, domainerrors.CodeConflict, "Registration failed due to a conflict.")
	}
	return domainerrors.Wrap(err, domainerrors.CodeConflict, mapping.message).
		WithField(mapping.field, mapping.message)
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
