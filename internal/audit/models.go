// Package audit records registration attempts for abuse investigation.
// Attempts are appended through a buffered recorder so a slow audit sink
// never stalls the registration path.
package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"
)

// Attempt is one registration attempt, successful or not. Keep it
// transport-agnostic so stores and sinks can fan out.
type Attempt struct {
	ID           uuid.UUID
	IPAddress    string
	Email        string
	Success      bool
	ErrorMessage string
	UserAgent    string
	ClientName   string
	CreatedAt    time.Time
}

// NewAttempt builds an attempt with a fresh ID and a client name derived
// from the raw User-Agent header.
func NewAttempt(ip, email string, success bool, errorMessage, rawUserAgent string) Attempt {
	return Attempt{
		ID:           uuid.New(),
		IPAddress:    ip,
		Email:        email,
		Success:      success,
		ErrorMessage: errorMessage,
		UserAgent:    rawUserAgent,
		ClientName:   clientName(rawUserAgent),
		CreatedAt:    time.Now().UTC(),
	}
}

// clientName condenses a User-Agent header into "Browser/Version" (or the
// bot name) for querying. Empty when the header is absent.
func clientName(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	if ua.Bot() {
		if name, _ := ua.Browser(); name != "" {
			return name
		}
		return "bot"
	}
	name, version := ua.Browser()
	if name == "" {
		return "unknown"
	}
	if version == "" {
		return name
	}
	return name + "/" + version
}
