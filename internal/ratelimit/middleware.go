package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"healthfirst/pkg/platform/middleware/metadata"
)

// Limiter is what the middleware needs from the rate limit service.
type Limiter interface {
	CheckRegistration(ctx context.Context, ip string) (*Result, error)
}

// Middleware enforces the registration rate limit. Infrastructure failures
// fail open: an unreachable Redis must not take registration down with it.
type Middleware struct {
	limiter Limiter
	logger  *slog.Logger
	limited prometheus.Counter
}

// MiddlewareOption configures the middleware.
type MiddlewareOption func(*Middleware)

func WithMiddlewareLogger(logger *slog.Logger) MiddlewareOption {
	return func(m *Middleware) { m.logger = logger }
}

// WithLimitedCounter counts requests rejected with 429.
func WithLimitedCounter(counter prometheus.Counter) MiddlewareOption {
	return func(m *Middleware) { m.limited = counter }
}

func NewMiddleware(limiter Limiter, opts ...MiddlewareOption) *Middleware {
	m := &Middleware{limiter: limiter, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Limit wraps a handler with the registration rate limit.
func (m *Middleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := metadata.GetClientIP(ctx)
		if ip == "" {
			ip = metadata.ClientIPFromRequest(r)
		}

		result, err := m.limiter.CheckRegistration(ctx, ip)
		if err != nil {
			m.logger.Error("rate limit check failed, allowing request", "error", err, "ip", ip)
			next.ServeHTTP(w, r)
			return
		}

		addRateLimitHeaders(w, result)

		if !result.Allowed {
			if m.limited != nil {
				m.limited.Inc()
			}
			m.logger.Warn("registration rate limit exceeded", "ip", ip,
				"retry_after", result.RetryAfterSeconds())
			writeRateLimitExceeded(w, result)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func addRateLimitHeaders(w http.ResponseWriter, result *Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// rateLimitResponse carries retry_after at the top level next to the
// standard envelope fields; clients poll it directly.
type rateLimitResponse struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message"`
	Errors     map[string][]string `json:"errors"`
	RetryAfter int                 `json:"retry_after"`
}

func writeRateLimitExceeded(w http.ResponseWriter, result *Result) {
	retryAfter := result.RetryAfterSeconds()
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(rateLimitResponse{
		Success: false,
		Message: "Rate limit exceeded. Too many registration attempts.",
		Errors: map[string][]string{
			"rate_limit": {fmt.Sprintf(
				"You have exceeded the maximum number of registration attempts. Please try again in %d seconds.",
				retryAfter)},
		},
		RetryAfter: retryAfter,
	})
}
