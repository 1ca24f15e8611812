// Package service implements the registration pipeline and the email
// verification lifecycle. The pipeline is strict about ordering: sanitize,
// validate everything at once, hash, create atomically, then side effects.
// Side effects (emails, audit, events) can degrade; persistence cannot.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	domainerrors "healthfirst/pkg/domain-errors"
	"healthfirst/pkg/platform/middleware/metadata"
	"healthfirst/pkg/platform/sentinel"

	"healthfirst/internal/audit"
	"healthfirst/internal/notify"
	"healthfirst/internal/outbox"
	"healthfirst/internal/provider"
	"healthfirst/internal/provider/password"
	"healthfirst/internal/provider/store"
	"healthfirst/internal/provider/token"
	"healthfirst/internal/provider/validation"
)

const (
	defaultTokenTTL   = 24 * time.Hour
	defaultSweepGrace = 48 * time.Hour
)

// Recorder accepts audit attempts. Satisfied by audit.Recorder.
type Recorder interface {
	Record(attempt audit.Attempt)
}

// Notifier queues outbound notifications. Satisfied by notify.Dispatcher.
type Notifier interface {
	Enqueue(n notify.Notification)
}

// TxRunner wraps a unit of work in a transaction. The Postgres wiring uses
// pkg/platform/tx; the in-memory wiring runs fn directly.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// VerifyResult is the outcome of a successful (or idempotent) verification.
type VerifyResult struct {
	ProviderID      string
	Email           string
	AlreadyVerified bool
}

// Service owns provider registration and verification.
type Service struct {
	store      store.Store
	hasher     *password.Hasher
	logger     *slog.Logger
	auditor    Recorder
	notifier   Notifier
	builder    notify.Builder
	outbox     outbox.Store
	runTx      TxRunner
	tokenTTL   time.Duration
	sweepGrace time.Duration
	now        func() time.Time

	observeRegistration func(outcome string, elapsed time.Duration)
	observeVerification func(result string)
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithAudit wires the registration attempt recorder.
func WithAudit(recorder Recorder) Option {
	return func(s *Service) { s.auditor = recorder }
}

// WithNotifier wires the notification dispatcher and message builder.
func WithNotifier(notifier Notifier, builder notify.Builder) Option {
	return func(s *Service) {
		s.notifier = notifier
		s.builder = builder
	}
}

// WithOutbox wires domain event publication. Append joins the registration
// transaction when the store supports it.
func WithOutbox(ob outbox.Store) Option {
	return func(s *Service) { s.outbox = ob }
}

// WithTxRunner sets the transaction wrapper for create-plus-outbox writes.
func WithTxRunner(run TxRunner) Option {
	return func(s *Service) { s.runTx = run }
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

func WithSweepGrace(grace time.Duration) Option {
	return func(s *Service) {
		if grace > 0 {
			s.sweepGrace = grace
		}
	}
}

// WithClock overrides wall-clock time in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRegistrationObserver wires registration outcome metrics.
func WithRegistrationObserver(observe func(outcome string, elapsed time.Duration)) Option {
	return func(s *Service) { s.observeRegistration = observe }
}

// WithVerificationObserver wires verification result metrics.
func WithVerificationObserver(observe func(result string)) Option {
	return func(s *Service) { s.observeVerification = observe }
}

func New(st store.Store, hasher *password.Hasher, opts ...Option) *Service {
	s := &Service{
		store:               st,
		hasher:              hasher,
		logger:              slog.Default(),
		runTx:               func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) },
		tokenTTL:            defaultTokenTTL,
		sweepGrace:          defaultSweepGrace,
		now:                 time.Now,
		observeRegistration: func(string, time.Duration) {},
		observeVerification: func(string) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register runs the full pipeline for one registration request. All field
// failures are collected into a single validation error; nothing persists
// unless every check passes.
func (s *Service) Register(ctx context.Context, req provider.RegistrationRequest) (*provider.RegistrationResult, error) {
	started := s.now()

	validation.Sanitize(&req)

	normalized, verr := s.validate(ctx, &req)
	if verr != nil {
		s.recordAttempt(ctx, req.Email, false, verr)
		s.observeRegistration("validation_failed", s.now().Sub(started))
		return nil, verr
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		wrapped := domainerrors.Wrap(err, domainerrors.CodeInternal, "An error occurred during registration")
		s.recordAttempt(ctx, normalized.Email, false, wrapped)
		s.observeRegistration("error", s.now().Sub(started))
		return nil, wrapped
	}

	verificationToken, err := token.NewVerification()
	if err != nil {
		wrapped := domainerrors.Wrap(err, domainerrors.CodeInternal, "An error occurred during registration")
		s.recordAttempt(ctx, normalized.Email, false, wrapped)
		s.observeRegistration("error", s.now().Sub(started))
		return nil, wrapped
	}

	now := s.now().UTC()
	p := &provider.Provider{
		ID:                uuid.New(),
		FirstName:         normalized.FirstName,
		LastName:          normalized.LastName,
		Email:             normalized.Email,
		PhoneNumber:       normalized.Phone,
		PasswordHash:      hash,
		Specialization:    provider.Specialization(normalized.Specialization),
		LicenseNumber:     normalized.License,
		YearsOfExperience: normalized.Years,
		ClinicAddress: provider.ClinicAddress{
			ID:      uuid.New(),
			Street:  normalized.Address.Street,
			City:    normalized.Address.City,
			State:   normalized.Address.State,
			ZipCode: normalized.Address.Zip,
		},
		VerificationStatus: provider.StatusPending,
		EmailVerification:  provider.PendingEmailVerification(verificationToken, now.Add(s.tokenTTL)),
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err = s.runTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, p); err != nil {
			return err
		}
		return s.appendEvent(ctx, p, outbox.EventProviderRegistered)
	})
	if err != nil {
		outcome := "error"
		if domainerrors.Is(err, domainerrors.CodeConflict) {
			outcome = "conflict"
		}
		s.recordAttempt(ctx, p.Email, false, err)
		s.observeRegistration(outcome, s.now().Sub(started))
		return nil, err
	}

	// Past this point registration has succeeded; side effects only log.
	s.recordAttempt(ctx, p.Email, true, nil)
	s.enqueueRegistrationMail(p, verificationToken)

	s.logger.Info("provider registered", "provider_id", p.ID, "email", p.Email)
	s.observeRegistration("success", s.now().Sub(started))

	return &provider.RegistrationResult{
		ProviderID:         p.ID.String(),
		Email:              p.Email,
		VerificationStatus: p.VerificationStatus,
	}, nil
}

// normalizedInput is the validated, canonical form of a request.
type normalizedInput struct {
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	Specialization string
	License        string
	Years          int
	Address        validation.Address
}

// validate checks every field, collecting all failures, then runs advisory
// uniqueness checks on fields that passed. A conflict that slips past the
// advisory check is caught by the store's unique constraints.
func (s *Service) validate(ctx context.Context, req *provider.RegistrationRequest) (*normalizedInput, error) {
	errs := make(validation.FieldErrors)
	var out normalizedInput
	var err error

	if out.FirstName, err = validation.Name(req.FirstName, "First name"); err != nil {
		errs.Add("first_name", err.Error())
	}
	if out.LastName, err = validation.Name(req.LastName, "Last name"); err != nil {
		errs.Add("last_name", err.Error())
	}
	if out.Email, err = validation.Email(req.Email); err != nil {
		errs.Add("email", err.Error())
	}
	if out.Phone, err = validation.Phone(req.PhoneNumber); err != nil {
		errs.Add("phone_number", err.Error())
	}

	if err = password.ValidateStrength(req.Password); err != nil {
		var strength *password.StrengthError
		if errors.As(err, &strength) {
			errs.AddAll("password", strength.Violations)
		} else {
			errs.Add("password", "Password is required.")
		}
	}
	if req.Password != req.ConfirmPassword {
		errs.Add("confirm_password", "Password and confirm password do not match.")
	}

	if out.Specialization, err = validation.Specialization(req.Specialization, func(v string) bool {
		return provider.Specialization(v).IsValid()
	}); err != nil {
		errs.Add("specialization", err.Error())
	}
	if out.License, err = validation.License(req.LicenseNumber); err != nil {
		errs.Add("license_number", err.Error())
	}
	if out.Years, err = validation.YearsOfExperience(req.YearsOfExperience.Raw()); err != nil {
		errs.Add("years_of_experience", err.Error())
	}

	var addrErrs validation.FieldErrors
	if out.Address, addrErrs = validation.ClinicAddress(
		req.ClinicAddress.Street, req.ClinicAddress.City,
		req.ClinicAddress.State, req.ClinicAddress.Zip,
	); addrErrs != nil {
		for field, messages := range addrErrs {
			errs.AddAll(field, messages)
		}
	}

	if _, ok := errs["email"]; !ok {
		taken, err := s.store.EmailTaken(ctx, out.Email)
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "An error occurred during registration")
		}
		if taken {
			errs.Add("email", "A provider with this email address already exists.")
		}
	}
	if _, ok := errs["phone_number"]; !ok {
		taken, err := s.store.PhoneTaken(ctx, out.Phone)
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "An error occurred during registration")
		}
		if taken {
			errs.Add("phone_number", "A provider with this phone number already exists.")
		}
	}
	if _, ok := errs["license_number"]; !ok {
		taken, err := s.store.LicenseTaken(ctx, out.License)
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "An error occurred during registration")
		}
		if taken {
			errs.Add("license_number", "A provider with this license number already exists.")
		}
	}

	if verr := errs.Err("Registration validation failed"); verr != nil {
		return nil, verr
	}
	return &out, nil
}

// VerifyEmail consumes a verification token. Consumed tokens stay
// resolvable, so verifying twice reports success both times while the
// welcome notification fires exactly once.
func (s *Service) VerifyEmail(ctx context.Context, rawToken string) (*VerifyResult, error) {
	rec, err := s.store.LookupToken(ctx, rawToken)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.observeVerification("invalid")
			return nil, domainerrors.New(domainerrors.CodeInvalidInput, "Invalid verification token").
				WithField("token", "Invalid or expired verification token")
		}
		s.observeVerification("error")
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "An error occurred during email verification")
	}

	if rec.Consumed {
		return s.alreadyVerified(ctx, rec.ProviderID)
	}

	if s.now().After(rec.ExpiresAt) {
		// The token is kept so a later resend or sweep decides its fate.
		s.observeVerification("expired")
		return nil, domainerrors.New(domainerrors.CodeInvalidState, "Verification token has expired").
			WithField("token", "Verification token has expired. Please request a new one.")
	}

	consumed, err := s.store.ConsumeToken(ctx, rawToken, s.now().UTC())
	if err != nil {
		s.observeVerification("error")
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "An error occurred during email verification")
	}
	if !consumed {
		// Lost a race with a concurrent verification of the same token.
		return s.alreadyVerified(ctx, rec.ProviderID)
	}

	p, err := s.store.FindByID(ctx, rec.ProviderID)
	if err != nil {
		s.observeVerification("error")
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "An error occurred during email verification")
	}

	if s.notifier != nil {
		s.notifier.Enqueue(s.builder.Welcome(p))
	}
	if err := s.appendEvent(ctx, p, outbox.EventEmailVerified); err != nil {
		s.logger.Error("append verification event", "provider_id", p.ID, "error", err)
	}

	s.logger.Info("email verified", "provider_id", p.ID, "email", p.Email)
	s.observeVerification("verified")
	return &VerifyResult{ProviderID: p.ID.String(), Email: p.Email}, nil
}

func (s *Service) alreadyVerified(ctx context.Context, providerID uuid.UUID) (*VerifyResult, error) {
	p, err := s.store.FindByID(ctx, providerID)
	if err != nil {
		s.observeVerification("error")
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "An error occurred during email verification")
	}
	s.observeVerification("already_verified")
	return &VerifyResult{ProviderID: p.ID.String(), Email: p.Email, AlreadyVerified: true}, nil
}

// ResendVerification rotates the pending token and queues a fresh
// verification email. The previous token stops working immediately.
func (s *Service) ResendVerification(ctx context.Context, rawEmail string) (string, error) {
	email, err := validation.Email(validation.SanitizeString(rawEmail))
	if err != nil {
		return "", domainerrors.New(domainerrors.CodeInvalidInput, "Invalid email address").
			WithField("email", err.Error())
	}

	p, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", domainerrors.New(domainerrors.CodeNotFound, "Provider not found").
				WithField("email", "No provider found with this email address")
		}
		return "", domainerrors.Wrap(err, domainerrors.CodeInternal, "An error occurred while sending verification email")
	}

	if p.EmailVerification.Verified() {
		return "", domainerrors.New(domainerrors.CodeInvalidState, "Email already verified").
			WithField("email", "This email address is already verified")
	}

	fresh, err := token.NewVerification()
	if err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeInternal, "An error occurred while sending verification email")
	}
	if err := s.store.ReplacePendingToken(ctx, p.ID, fresh, s.now().UTC().Add(s.tokenTTL)); err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeInternal, "An error occurred while sending verification email")
	}

	if s.notifier != nil {
		s.notifier.Enqueue(s.builder.Verification(p, fresh))
	}

	s.logger.Info("verification email resent", "provider_id", p.ID, "email", p.Email)
	return p.Email, nil
}

// GetProvider loads the read projection source for one provider.
func (s *Service) GetProvider(ctx context.Context, id uuid.UUID) (*provider.Provider, error) {
	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "Provider not found").
				WithField("provider_id", "No provider found with this ID")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "An error occurred while retrieving provider details")
	}
	return p, nil
}

// SweepExpiredTokens removes unconsumed tokens whose expiry is older than
// the grace period. Providers keep their accounts; they can request a new
// token any time.
func (s *Service) SweepExpiredTokens(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.sweepGrace)
	removed, err := s.store.DeleteExpiredTokens(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("swept expired verification tokens", "removed", removed)
	}
	return removed, nil
}

// RunTokenSweep sweeps on the given interval until ctx is cancelled.
func (s *Service) RunTokenSweep(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.SweepExpiredTokens(ctx); err != nil {
				s.logger.Error("token sweep failed", "error", err)
			}
		}
	}
}

func (s *Service) recordAttempt(ctx context.Context, email string, success bool, cause error) {
	if s.auditor == nil {
		return
	}
	ip := metadata.GetClientIP(ctx)
	if ip == "" {
		ip = "unknown"
	}
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	s.auditor.Record(audit.NewAttempt(ip, email, success, message, metadata.GetUserAgent(ctx)))
}

func (s *Service) enqueueRegistrationMail(p *provider.Provider, verificationToken string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Enqueue(s.builder.Verification(p, verificationToken))
	if alert, ok := s.builder.AdminAlert(p); ok {
		s.notifier.Enqueue(alert)
	}
}

func (s *Service) appendEvent(ctx context.Context, p *provider.Provider, eventType string) error {
	if s.outbox == nil {
		return nil
	}
	return s.outbox.Append(ctx, outbox.Event{
		AggregateType: "provider",
		AggregateID:   p.ID.String(),
		EventType:     eventType,
		Payload: map[string]string{
			"provider_id":         p.ID.String(),
			"email":               p.Email,
			"specialization":      string(p.Specialization),
			"verification_status": string(p.VerificationStatus),
		},
	})
}
