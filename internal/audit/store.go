package audit

import (
	"context"
	"time"
)

// Store is the persistence boundary for registration attempts. Append is
// append-only; the list methods exist for investigation tooling and tests.
type Store interface {
	Append(ctx context.Context, attempt Attempt) error
	ListByEmail(ctx context.Context, email string) ([]Attempt, error)
	ListRecent(ctx context.Context, limit int) ([]Attempt, error)
	CountFailuresSince(ctx context.Context, ip string, since time.Time) (int, error)
}
