// Package handler wires the provider endpoints to the registration service.
// Handlers decode and normalize transport concerns; all business rules stay
// in the service.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	dErrors "healthfirst/pkg/domain-errors"
	"healthfirst/pkg/platform/httputil"

	"healthfirst/internal/provider"
	"healthfirst/internal/provider/service"
)

// Service defines the provider operations the transport depends on.
type Service interface {
	Register(ctx context.Context, req provider.RegistrationRequest) (*provider.RegistrationResult, error)
	VerifyEmail(ctx context.Context, token string) (*service.VerifyResult, error)
	ResendVerification(ctx context.Context, email string) (string, error)
	GetProvider(ctx context.Context, id uuid.UUID) (*provider.Provider, error)
}

// Handler wires provider endpoints to the provider service.
type Handler struct {
	service Service
	logger  *slog.Logger
	limit   func(http.Handler) http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithRateLimit applies middleware to the registration endpoint only.
func WithRateLimit(limit func(http.Handler) http.Handler) Option {
	return func(h *Handler) { h.limit = limit }
}

// New constructs a provider handler with its dependencies.
func New(svc Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: svc, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts provider endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	if h.limit != nil {
		r.With(h.limit).Post("/provider/register", h.HandleRegister)
	} else {
		r.Post("/provider/register", h.HandleRegister)
	}
	r.Post("/provider/verify-email", h.HandleVerifyEmail)
	r.Post("/provider/resend-verification", h.HandleResendVerification)
	r.Get("/provider/specializations", h.HandleSpecializations)
	r.Get("/provider/{providerID}", h.HandleProviderDetail)
}

// HandleRegister handles POST /provider/register.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	var req provider.RegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "Registration validation failed").
			WithField("general", "Request body must be valid JSON"))
		return
	}

	result, err := h.service.Register(ctx, req)
	if err != nil {
		h.logger.InfoContext(ctx, "registration rejected",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "registration accepted",
		"provider_id", result.ProviderID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteSuccess(w, http.StatusCreated,
		"Provider registered successfully. Verification email sent.", result)
}

// HandleVerifyEmail handles POST /provider/verify-email.
func (h *Handler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req provider.VerifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "Invalid verification data").
			WithField("token", "This field is required."))
		return
	}

	result, err := h.service.VerifyEmail(ctx, req.Token)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	message := "Email verified successfully"
	if result.AlreadyVerified {
		message = "Email already verified"
	}
	httputil.WriteSuccess(w, http.StatusOK, message, map[string]any{
		"provider_id": result.ProviderID,
		"email":       result.Email,
		"verified":    true,
	})
}

// HandleResendVerification handles POST /provider/resend-verification.
func (h *Handler) HandleResendVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req provider.ResendVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "Invalid email address").
			WithField("email", "This field is required."))
		return
	}

	email, err := h.service.ResendVerification(ctx, req.Email)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "Verification email sent successfully", map[string]any{
		"email": email,
		"sent":  true,
	})
}

// HandleProviderDetail handles GET /provider/{providerID}.
func (h *Handler) HandleProviderDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "providerID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "Provider not found").
			WithField("provider_id", "No provider found with this ID"))
		return
	}

	p, err := h.service.GetProvider(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK,
		"Provider details retrieved successfully", provider.NewView(p))
}

// HandleSpecializations handles GET /provider/specializations.
func (h *Handler) HandleSpecializations(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteSuccess(w, http.StatusOK,
		"Specializations retrieved successfully", provider.SpecializationOptions())
}
