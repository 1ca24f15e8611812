package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"healthfirst/pkg/platform/httputil"

	"healthfirst/internal/notify"
	"healthfirst/internal/provider/password"
	"healthfirst/internal/provider/service"
	"healthfirst/internal/provider/store"
)

type queueNotifier struct {
	sent []notify.Notification
}

func (q *queueNotifier) Enqueue(n notify.Notification) { q.sent = append(q.sent, n) }

type HandlerSuite struct {
	suite.Suite
	store  *store.MemoryStore
	svc    *service.Service
	router chi.Router
}

func (s *HandlerSuite) SetupTest() {
	s.store = store.NewMemory()
	s.svc = service.New(s.store, password.NewHasher(bcrypt.MinCost),
		service.WithNotifier(&queueNotifier{}, notify.Builder{FrontendURL: "https://app.example"}),
	)

	h := New(s.svc, discardLogger())
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func registrationBody() map[string]any {
	return map[string]any{
		"first_name":       "Jane",
		"last_name":        "Doe",
		"email":            "jane.doe@example.com",
		"phone_number":     "+14155552671",
		"password":         "Str0ng!Passw0rd",
		"confirm_password": "Str0ng!Passw0rd",
		"specialization":   "cardiology",
		"license_number":   "MD1234567",
		// Numeric strings are accepted alongside numbers.
		"years_of_experience": "8",
		"clinic_address": map[string]string{
			"street": "123 Main St",
			"city":   "Springfield",
			"state":  "IL",
			"zip":    "62701",
		},
	}
}

func (s *HandlerSuite) do(method, path string, body any) (*httptest.ResponseRecorder, httputil.Envelope) {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env httputil.Envelope
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func (s *HandlerSuite) register() map[string]any {
	rec, env := s.do(http.MethodPost, "/provider/register", registrationBody())
	s.Require().Equal(http.StatusCreated, rec.Code)
	data, ok := env.Data.(map[string]any)
	s.Require().True(ok)
	return data
}

func (s *HandlerSuite) pendingToken(email string) string {
	p, err := s.store.FindByEmail(context.Background(), email)
	s.Require().NoError(err)
	tok, _, ok := p.EmailVerification.Pending()
	s.Require().True(ok)
	return tok
}

func (s *HandlerSuite) TestRegister() {
	rec, env := s.do(http.MethodPost, "/provider/register", registrationBody())
	s.Equal(http.StatusCreated, rec.Code)
	s.True(env.Success)
	s.Equal("Provider registered successfully. Verification email sent.", env.Message)

	data := env.Data.(map[string]any)
	s.NotEmpty(data["provider_id"])
	s.Equal("jane.doe@example.com", data["email"])
	s.Equal("pending", data["verification_status"])
}

func (s *HandlerSuite) TestRegisterValidationFailure() {
	body := registrationBody()
	body["email"] = "not-an-email"
	body["password"] = "weak"

	rec, env := s.do(http.MethodPost, "/provider/register", body)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.False(env.Success)
	s.Equal("Registration validation failed", env.Message)
	s.Contains(env.Errors, "email")
	s.Contains(env.Errors, "password")
	s.Contains(env.Errors, "confirm_password")
}

func (s *HandlerSuite) TestRegisterMalformedJSON() {
	req := httptest.NewRequest(http.MethodPost, "/provider/register", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	s.Equal(http.StatusBadRequest, rec.Code)
	var env httputil.Envelope
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &env))
	s.False(env.Success)
	s.Contains(env.Errors, "general")
}

func (s *HandlerSuite) TestVerifyEmail() {
	data := s.register()
	tok := s.pendingToken(data["email"].(string))

	s.Run("missing token", func() {
		rec, env := s.do(http.MethodPost, "/provider/verify-email", map[string]string{})
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("Invalid verification data", env.Message)
		s.Contains(env.Errors["token"], "This field is required.")
	})

	s.Run("unknown token", func() {
		rec, env := s.do(http.MethodPost, "/provider/verify-email", map[string]string{"token": "bogus"})
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("Invalid verification token", env.Message)
	})

	s.Run("valid token", func() {
		rec, env := s.do(http.MethodPost, "/provider/verify-email", map[string]string{"token": tok})
		s.Equal(http.StatusOK, rec.Code)
		s.True(env.Success)
		s.Equal("Email verified successfully", env.Message)
		payload := env.Data.(map[string]any)
		s.Equal(data["provider_id"], payload["provider_id"])
		s.Equal(true, payload["verified"])
	})

	s.Run("repeat verification", func() {
		rec, env := s.do(http.MethodPost, "/provider/verify-email", map[string]string{"token": tok})
		s.Equal(http.StatusOK, rec.Code)
		s.True(env.Success)
		s.Equal("Email already verified", env.Message)
	})
}

func (s *HandlerSuite) TestResendVerification() {
	data := s.register()
	email := data["email"].(string)

	s.Run("pending provider", func() {
		rec, env := s.do(http.MethodPost, "/provider/resend-verification", map[string]string{"email": email})
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("Verification email sent successfully", env.Message)
		payload := env.Data.(map[string]any)
		s.Equal(email, payload["email"])
		s.Equal(true, payload["sent"])
	})

	s.Run("unknown provider", func() {
		rec, env := s.do(http.MethodPost, "/provider/resend-verification", map[string]string{"email": "ghost@example.com"})
		s.Equal(http.StatusNotFound, rec.Code)
		s.Equal("Provider not found", env.Message)
		s.Contains(env.Errors["email"], "No provider found with this email address")
	})

	s.Run("already verified", func() {
		tok := s.pendingToken(email)
		rec, _ := s.do(http.MethodPost, "/provider/verify-email", map[string]string{"token": tok})
		s.Require().Equal(http.StatusOK, rec.Code)

		rec, env := s.do(http.MethodPost, "/provider/resend-verification", map[string]string{"email": email})
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("Email already verified", env.Message)
	})
}

func (s *HandlerSuite) TestProviderDetail() {
	data := s.register()
	id := data["provider_id"].(string)

	s.Run("found", func() {
		rec, env := s.do(http.MethodGet, "/provider/"+id, nil)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("Provider details retrieved successfully", env.Message)

		view := env.Data.(map[string]any)
		s.Equal("Jane", view["first_name"])
		s.Equal("cardiology", view["specialization"])
		s.Equal(false, view["email_verified"])
		s.NotContains(rec.Body.String(), "password")
	})

	s.Run("not a uuid", func() {
		rec, env := s.do(http.MethodGet, "/provider/abc", nil)
		s.Equal(http.StatusNotFound, rec.Code)
		s.Equal("Provider not found", env.Message)
	})

	s.Run("unknown id", func() {
		rec, env := s.do(http.MethodGet, "/provider/00000000-0000-0000-0000-000000000001", nil)
		s.Equal(http.StatusNotFound, rec.Code)
		s.Equal("Provider not found", env.Message)
	})
}

func (s *HandlerSuite) TestSpecializations() {
	rec, env := s.do(http.MethodGet, "/provider/specializations", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("Specializations retrieved successfully", env.Message)

	options, ok := env.Data.([]any)
	s.Require().True(ok)
	s.NotEmpty(options)

	var values []string
	for _, o := range options {
		values = append(values, o.(map[string]any)["value"].(string))
	}
	s.Contains(values, "cardiology")
}

// rate limiting is covered in depth in the ratelimit package; here we only
// assert where the middleware attaches.

func (s *HandlerSuite) TestRateLimitAppliesToRegisterOnly() {
	reject := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}

	h := New(s.svc, discardLogger(), WithRateLimit(reject))
	router := chi.NewRouter()
	h.Register(router)

	req := httptest.NewRequest(http.MethodPost, "/provider/register", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	s.Equal(http.StatusTooManyRequests, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/provider/specializations", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	s.Equal(http.StatusOK, rec.Code)
}
