// Package password wraps credential hashing and strength policy. Hashes are
// bcrypt, which self-describes its cost, so verification keeps working for
// hashes minted at any historical work factor.
package password

import (
	"errors"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = 12

var (
	upperPattern   = regexp.MustCompile(`[A-Z]`)
	lowerPattern   = regexp.MustCompile(`[a-z]`)
	digitPattern   = regexp.MustCompile(`\d`)
	specialPattern = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

// ErrEmptyPassword rejects hashing of empty input.
var ErrEmptyPassword = errors.New("password cannot be empty")

// StrengthError carries every unmet strength rule so callers can display
// the complete list in one pass.
type StrengthError struct {
	Violations []string
}

func (e *StrengthError) Error() string {
	if len(e.Violations) == 0 {
		return "password too weak"
	}
	return e.Violations[0]
}

// ValidateStrength checks the password policy: length >= 8, at least one
// uppercase, lowercase, digit, and special character. All violations are
// collected rather than failing on the first.
func ValidateStrength(password string) error {
	var violations []string
	if len(password) < 8 {
		violations = append(violations, "Password must be at least 8 characters long.")
	}
	if !upperPattern.MatchString(password) {
		violations = append(violations, "Password must contain at least one uppercase letter.")
	}
	if !lowerPattern.MatchString(password) {
		violations = append(violations, "Password must contain at least one lowercase letter.")
	}
	if !digitPattern.MatchString(password) {
		violations = append(violations, "Password must contain at least one number.")
	}
	if !specialPattern.MatchString(password) {
		violations = append(violations, "Password must contain at least one special character.")
	}
	if len(violations) > 0 {
		return &StrengthError{Violations: violations}
	}
	return nil
}

// Hasher hashes and verifies credentials at a configured work factor.
type Hasher struct {
	cost int
}

// NewHasher builds a Hasher. Costs outside bcrypt's supported range fall
// back to DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash produces a salted bcrypt hash. The input must be non-empty and must
// already satisfy the strength policy; hashing never silently re-validates
// a password the pipeline skipped.
func (h *Hasher) Hash(raw string) (string, error) {
	if raw == "" {
		return "", ErrEmptyPassword
	}
	if err := ValidateStrength(raw); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(raw), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether raw matches the stored hash. It never returns an
// error: empty input, malformed hashes, and mismatches all report false.
func (h *Hasher) Verify(raw, hash string) bool {
	if raw == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}
