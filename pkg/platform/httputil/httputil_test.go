package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "healthfirst/pkg/domain-errors"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestWriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, http.StatusCreated, "Provider registered successfully. Verification email sent.", map[string]string{"provider_id": "abc"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	env := decode(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, "Provider registered successfully. Verification email sent.", env.Message)
	assert.Nil(t, env.Errors)
}

func TestWriteErrorFieldMessages(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, dErrors.New(dErrors.CodeInvalidInput, "Registration validation failed").
		WithField("email", "Invalid email format."))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "Registration validation failed", env.Message)
	assert.Equal(t, []string{"Invalid email format."}, env.Errors["email"])
}

func TestWriteErrorInternal(t *testing.T) {
	t.Run("coded internal keeps its message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, dErrors.Wrap(errors.New("pq: connection reset"),
			dErrors.CodeInternal, "An error occurred during registration"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		env := decode(t, rec)
		assert.Equal(t, "An error occurred during registration", env.Message)
		assert.Equal(t, []string{"Please try again later"}, env.Errors["general"])
		assert.NotContains(t, rec.Body.String(), "pq:")
	})

	t.Run("uncoded errors never leak", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, errors.New("dial tcp 10.0.0.5:5432: refused"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		env := decode(t, rec)
		assert.Equal(t, "An unexpected error occurred", env.Message)
		assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	})
}

func TestEnvelopeOmitsEmpty(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, Envelope{Success: true, Message: "ok"})

	body := rec.Body.String()
	assert.NotContains(t, body, "data")
	assert.NotContains(t, body, "errors")
}
