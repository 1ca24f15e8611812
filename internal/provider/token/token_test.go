package token

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tok, err := New(32)
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(tok)
	require.NoError(t, err, "tokens must be URL-safe base64")
	assert.Len(t, raw, 32)
}

func TestNewDefaultsLength(t *testing.T) {
	for _, n := range []int{0, -5} {
		tok, err := New(n)
		require.NoError(t, err)
		raw, err := base64.RawURLEncoding.DecodeString(tok)
		require.NoError(t, err)
		assert.Len(t, raw, VerificationTokenBytes)
	}
}

func TestNewVerificationUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		tok, err := NewVerification()
		require.NoError(t, err)
		_, dup := seen[tok]
		require.False(t, dup, "verification token repeated")
		seen[tok] = struct{}{}
	}
}
