package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore persists attempts in the provider_registration_logs table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, attempt Attempt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO provider_registration_logs (
			id, ip_address, email, success, error_message,
			user_agent, client_name, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		attempt.ID,
		attempt.IPAddress,
		attempt.Email,
		attempt.Success,
		nullString(attempt.ErrorMessage),
		nullString(attempt.UserAgent),
		nullString(attempt.ClientName),
		attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert registration log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByEmail(ctx context.Context, email string) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ip_address, email, success, error_message,
		       user_agent, client_name, created_at
		FROM provider_registration_logs
		WHERE lower(email) = lower($1)
		ORDER BY created_at DESC
	`, email)
	if err != nil {
		return nil, fmt.Errorf("query registration logs: %w", err)
	}
	defer rows.Close()
	return scanAttempts(rows)
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ip_address, email, success, error_message,
		       user_agent, client_name, created_at
		FROM provider_registration_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query registration logs: %w", err)
	}
	defer rows.Close()
	return scanAttempts(rows)
}

func (s *PostgresStore) CountFailuresSince(ctx context.Context, ip string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*)
		FROM provider_registration_logs
		WHERE ip_address = $1 AND NOT success AND created_at >= $2
	`, ip, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count failed attempts: %w", err)
	}
	return count, nil
}

func scanAttempts(rows *sql.Rows) ([]Attempt, error) {
	var attempts []Attempt
	for rows.Next() {
		var (
			a          Attempt
			errMsg     sql.NullString
			userAgent  sql.NullString
			clientName sql.NullString
		)
		err := rows.Scan(&a.ID, &a.IPAddress, &a.Email, &a.Success,
			&errMsg, &userAgent, &clientName, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan registration log: %w", err)
		}
		a.ErrorMessage = errMsg.String
		a.UserAgent = userAgent.String
		a.ClientName = clientName.String
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registration logs: %w", err)
	}
	return attempts, nil
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
