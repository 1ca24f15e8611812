// Package token issues cryptographically secure random tokens for email
// verification links.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// VerificationTokenBytes is the entropy used for email verification tokens.
const VerificationTokenBytes = 64

// New returns a URL-safe random token built from byteLen bytes of CSPRNG
// output. Uniqueness rests on the birthday bound of the randomness source.
func New(byteLen int) (string, error) {
	if byteLen <= 0 {
		byteLen = VerificationTokenBytes
	}
	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewVerification returns a token at verification strength.
func NewVerification() (string, error) {
	return New(VerificationTokenBytes)
}
