package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestValidateStrength(t *testing.T) {
	require.NoError(t, ValidateStrength("Str0ng!Passw0rd"))

	t.Run("collects all violations", func(t *testing.T) {
		err := ValidateStrength("abc")
		require.Error(t, err)

		var strength *StrengthError
		require.ErrorAs(t, err, &strength)
		assert.ElementsMatch(t, []string{
			"Password must be at least 8 characters long.",
			"Password must contain at least one uppercase letter.",
			"Password must contain at least one number.",
			"Password must contain at least one special character.",
		}, strength.Violations)
	})

	t.Run("single violation", func(t *testing.T) {
		err := ValidateStrength("Str0ngPassw0rd")
		var strength *StrengthError
		require.ErrorAs(t, err, &strength)
		assert.Equal(t, []string{"Password must contain at least one special character."}, strength.Violations)
	})
}

func TestHashAndVerify(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("Str0ng!Passw0rd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2a$"))

	assert.True(t, h.Verify("Str0ng!Passw0rd", hash))
	assert.False(t, h.Verify("Wr0ng!Passw0rd", hash))
	assert.False(t, h.Verify("", hash))
	assert.False(t, h.Verify("Str0ng!Passw0rd", ""))
	assert.False(t, h.Verify("Str0ng!Passw0rd", "not-a-bcrypt-hash"))
}

func TestHashRejectsWeakInput(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	_, err := h.Hash("")
	require.ErrorIs(t, err, ErrEmptyPassword)

	_, err = h.Hash("weak")
	var strength *StrengthError
	require.ErrorAs(t, err, &strength)
}

func TestHasherCostFallback(t *testing.T) {
	assert.Equal(t, DefaultCost, NewHasher(0).cost)
	assert.Equal(t, DefaultCost, NewHasher(99).cost)
	assert.Equal(t, bcrypt.MinCost, NewHasher(bcrypt.MinCost).cost)
}

func TestHashesAreSalted(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	a, err := h.Hash("Str0ng!Passw0rd")
	require.NoError(t, err)
	b, err := h.Hash("Str0ng!Passw0rd")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.True(t, h.Verify("Str0ng!Passw0rd", a))
	assert.True(t, h.Verify("Str0ng!Passw0rd", b))
}
