// Package httptransport assembles the public router: middleware chain,
// versioned API mount, and the operational endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"healthfirst/pkg/platform/httputil"
	"healthfirst/pkg/platform/middleware/metadata"

	providerhandler "healthfirst/internal/provider/handler"
)

// HealthCheck reports readiness of one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps are the wired components the router mounts.
type Deps struct {
	Logger   *slog.Logger
	Provider *providerhandler.Handler

	// ReadyChecks gate /health/ready; liveness never depends on them.
	ReadyChecks []HealthCheck
}

// NewRouter builds the full HTTP handler.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metadata.ClientMetadata)
	r.Use(requestLogger(deps.Logger))

	r.Route("/api/v1", func(api chi.Router) {
		deps.Provider.Register(api)

		api.Get("/health", handleHealth)
		api.Get("/health/ready", handleReady(deps.ReadyChecks))
	})

	r.Get("/health", handleHealth)
	r.Get("/health/ready", handleReady(deps.ReadyChecks))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "API is healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady probes every dependency and reports per-check status. Any
// failing check turns the response into a 503.
func handleReady(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				results[c.Name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[c.Name] = "ok"
		}

		httputil.WriteJSON(w, status, map[string]any{
			"success": status == http.StatusOK,
			"checks":  results,
		})
	}
}

// requestLogger emits one structured line per request once the response is
// written.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"client_ip", metadata.GetClientIP(r.Context()),
			)
		})
	}
}
