// Package notify delivers registration emails. The dispatcher decouples
// delivery from the request path: sends are queued, retried with backoff,
// and a dead letter only ever costs a log line and a metric.
package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"healthfirst/internal/provider"
)

// Kind labels a notification for metrics and logs.
type Kind string

const (
	KindVerification Kind = "verification"
	KindWelcome      Kind = "welcome"
	KindAdminAlert   Kind = "admin_alert"
)

// Notification is one outbound email.
type Notification struct {
	Kind       Kind
	Recipients []string
	Subject    string
	Body       string
}

// Mailer delivers a single notification. Implemented by the SMTP mailer in
// production and a recording fake in tests.
type Mailer interface {
	Send(ctx context.Context, n Notification) error
}

// Builder renders notifications from provider state. FrontendURL is the
// base for verification and login links.
type Builder struct {
	FrontendURL string
	AdminEmails []string
}

// VerificationURL builds the link embedded in verification emails.
func (b Builder) VerificationURL(token string) string {
	return fmt.Sprintf("%s/verify-email?token=%s",
		strings.TrimRight(b.FrontendURL, "/"), url.QueryEscape(token))
}

// Verification builds the email-ownership verification message.
func (b Builder) Verification(p *provider.Provider, token string) Notification {
	body := fmt.Sprintf(
		"Hello %s,\n\n"+
			"Thank you for registering with HealthFirst. Please verify your email address by visiting:\n\n"+
			"%s\n\n"+
			"This link expires in 24 hours. If you did not create this account, you can ignore this email.\n\n"+
			"HealthFirst Medical Services",
		p.FullName(), b.VerificationURL(token))
	return Notification{
		Kind:       KindVerification,
		Recipients: []string{p.Email},
		Subject:    "Verify Your HealthFirst Provider Account",
		Body:       body,
	}
}

// Welcome builds the post-verification welcome message.
func (b Builder) Welcome(p *provider.Provider) Notification {
	body := fmt.Sprintf(
		"Hello %s,\n\n"+
			"Your email address has been verified. You can sign in at:\n\n"+
			"%s/login\n\n"+
			"Your account remains pending administrative review of your license details.\n\n"+
			"HealthFirst Medical Services",
		p.FullName(), strings.TrimRight(b.FrontendURL, "/"))
	return Notification{
		Kind:       KindWelcome,
		Recipients: []string{p.Email},
		Subject:    "Welcome to HealthFirst - Account Verified",
		Body:       body,
	}
}

// AdminAlert builds the new-registration notice for administrators. The
// second return is false when no admin recipients are configured.
func (b Builder) AdminAlert(p *provider.Provider) (Notification, bool) {
	if len(b.AdminEmails) == 0 {
		return Notification{}, false
	}
	body := fmt.Sprintf(
		"A new provider has registered.\n\n"+
			"Name: %s\nEmail: %s\nSpecialization: %s\nLicense: %s\n\n"+
			"Review at %s/admin/providers",
		p.FullName(), p.Email, p.Specialization.Label(), p.LicenseNumber,
		strings.TrimRight(b.FrontendURL, "/"))
	return Notification{
		Kind:       KindAdminAlert,
		Recipients: append([]string{}, b.AdminEmails...),
		Subject:    "New Provider Registration - HealthFirst",
		Body:       body,
	}, true
}
