package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	providerhandler "healthfirst/internal/provider/handler"
	"healthfirst/internal/provider/password"
	"healthfirst/internal/provider/service"
	"healthfirst/internal/provider/store"
)

func testRouter(t *testing.T, checks ...HealthCheck) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(store.NewMemory(), password.NewHasher(bcrypt.MinCost))
	return NewRouter(Deps{
		Logger:      logger,
		Provider:    providerhandler.New(svc, logger),
		ReadyChecks: checks,
	})
}

func TestHealthEndpoint(t *testing.T) {
	router := testRouter(t)

	for _, path := range []string{"/health", "/api/v1/health"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "API is healthy", body["message"])
		assert.NotEmpty(t, body["timestamp"])
	}
}

func TestReadinessReportsPerCheck(t *testing.T) {
	healthy := HealthCheck{Name: "postgres", Check: func(context.Context) error { return nil }}
	broken := HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }}

	t.Run("all healthy", func(t *testing.T) {
		router := testRouter(t, healthy)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		checks := body["checks"].(map[string]any)
		assert.Equal(t, "ok", checks["postgres"])
	})

	t.Run("one failing", func(t *testing.T) {
		router := testRouter(t, healthy, broken)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, false, body["success"])
		checks := body["checks"].(map[string]any)
		assert.Equal(t, "ok", checks["postgres"])
		assert.Equal(t, "connection refused", checks["redis"])
	})
}

func TestMetricsEndpoint(t *testing.T) {
	router := testRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAPIMount(t *testing.T) {
	router := testRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/provider/specializations", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Specializations retrieved successfully", body["message"])
}
