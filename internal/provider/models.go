// Package provider holds the core registration domain: the Provider entity,
// its clinic address, the specialization reference set, and the email
// verification state machine.
package provider

import (
	"time"

	"github.com/google/uuid"
)

// VerificationStatus is the administrative review outcome. It is independent
// of email ownership verification.
type VerificationStatus string

const (
	StatusPending  VerificationStatus = "pending"
	StatusVerified VerificationStatus = "verified"
	StatusRejected VerificationStatus = "rejected"
)

// IsValid checks if the status is one of the supported enum values.
func (s VerificationStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusRejected:
		return true
	}
	return false
}

// Specialization is a member of the fixed medical specialization set.
type Specialization string

// specializationLabels maps each specialization to its display label.
// Order of Specializations() follows specializationOrder below.
var specializationLabels = map[Specialization]string{
	"cardiology":            "Cardiology",
	"dermatology":           "Dermatology",
	"endocrinology":         "Endocrinology",
	"gastroenterology":      "Gastroenterology",
	"neurology":             "Neurology",
	"oncology":              "Oncology",
	"orthopedics":           "Orthopedics",
	"pediatrics":            "Pediatrics",
	"psychiatry":            "Psychiatry",
	"radiology":             "Radiology",
	"surgery":               "Surgery",
	"urology":               "Urology",
	"family_medicine":       "Family Medicine",
	"internal_medicine":     "Internal Medicine",
	"emergency_medicine":    "Emergency Medicine",
	"anesthesiology":        "Anesthesiology",
	"pathology":             "Pathology",
	"obstetrics_gynecology": "Obstetrics & Gynecology",
	"ophthalmology":         "Ophthalmology",
	"otolaryngology":        "Otolaryngology",
	"other":                 "Other",
}

var specializationOrder = []Specialization{
	"cardiology", "dermatology", "endocrinology", "gastroenterology",
	"neurology", "oncology", "orthopedics", "pediatrics", "psychiatry",
	"radiology", "surgery", "urology", "family_medicine",
	"internal_medicine", "emergency_medicine", "anesthesiology",
	"pathology", "obstetrics_gynecology", "ophthalmology",
	"otolaryngology", "other",
}

// IsValid checks membership in the fixed specialization set.
func (s Specialization) IsValid() bool {
	_, ok := specializationLabels[s]
	return ok
}

// Label returns the display label for the specialization.
func (s Specialization) Label() string {
	return specializationLabels[s]
}

// Specializations returns the full reference list in stable order.
func Specializations() []Specialization {
	out := make([]Specialization, len(specializationOrder))
	copy(out, specializationOrder)
	return out
}

// EmailVerification models the email ownership state machine:
// none -> pending (token + expiry) -> verified. Token and expiry exist only
// together, and a verified state carries neither; the invariant holds by
// construction rather than by nullable-field bookkeeping.
type EmailVerification struct {
	verified bool
	token    string
	expires  time.Time
}

// NoEmailVerification is the initial state with no outstanding token.
func NoEmailVerification() EmailVerification {
	return EmailVerification{}
}

// PendingEmailVerification returns the state carrying an issued token.
func PendingEmailVerification(token string, expires time.Time) EmailVerification {
	return EmailVerification{token: token, expires: expires}
}

// VerifiedEmail is the terminal state; the single-use token is gone.
func VerifiedEmail() EmailVerification {
	return EmailVerification{verified: true}
}

// Verified reports whether email ownership has been proven.
func (v EmailVerification) Verified() bool { return v.verified }

// Pending returns the outstanding token and expiry, if any.
func (v EmailVerification) Pending() (token string, expires time.Time, ok bool) {
	if v.verified || v.token == "" {
		return "", time.Time{}, false
	}
	return v.token, v.expires, true
}

// ExpiredAt reports whether the pending token has expired as of now.
// False when there is no pending token.
func (v EmailVerification) ExpiredAt(now time.Time) bool {
	_, expires, ok := v.Pending()
	return ok && now.After(expires)
}

// ClinicAddress is the provider's single practice address.
type ClinicAddress struct {
	ID      uuid.UUID
	Street  string
	City    string
	State   string
	ZipCode string
}

// Provider is a registered (or registering) healthcare professional account.
type Provider struct {
	ID                uuid.UUID
	FirstName         string
	LastName          string
	Email             string
	PhoneNumber       string
	PasswordHash      string
	Specialization    Specialization
	LicenseNumber     string
	YearsOfExperience int
	ClinicAddress     ClinicAddress

	VerificationStatus VerificationStatus
	EmailVerification  EmailVerification
	LicenseDocumentURL string

	IsActive    bool
	IsStaff     bool
	IsSuperuser bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullName returns the provider's display name.
func (p *Provider) FullName() string {
	return p.FirstName + " " + p.LastName
}
