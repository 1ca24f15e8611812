package provider

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FlexInt accepts either a JSON number or a numeric string, since clients
// submit years_of_experience both ways.
type FlexInt struct {
	raw string
	set bool
}

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	f.raw = strings.TrimSpace(s)
	f.set = true
	return nil
}

func (f FlexInt) MarshalJSON() ([]byte, error) {
	if !f.set {
		return []byte("null"), nil
	}
	if n, err := strconv.Atoi(f.raw); err == nil {
		return json.Marshal(n)
	}
	return json.Marshal(f.raw)
}

// Int parses the captured value as an integer.
func (f FlexInt) Int() (int, error) {
	if !f.set {
		return 0, fmt.Errorf("value not set")
	}
	return strconv.Atoi(f.raw)
}

// IsSet reports whether the field was present in the request.
func (f FlexInt) IsSet() bool { return f.set }

// Raw returns the captured textual value.
func (f FlexInt) Raw() string { return f.raw }

// NewFlexInt builds a set FlexInt, mainly for tests.
func NewFlexInt(n int) FlexInt {
	return FlexInt{raw: strconv.Itoa(n), set: true}
}

// AddressPayload is the nested clinic address in a registration request.
type AddressPayload struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// RegistrationRequest is the raw, untrusted registration payload.
type RegistrationRequest struct {
	FirstName         string         `json:"first_name"`
	LastName          string         `json:"last_name"`
	Email             string         `json:"email"`
	PhoneNumber       string         `json:"phone_number"`
	Password          string         `json:"password"`
	ConfirmPassword   string         `json:"confirm_password"`
	Specialization    string         `json:"specialization"`
	LicenseNumber     string         `json:"license_number"`
	YearsOfExperience FlexInt        `json:"years_of_experience"`
	ClinicAddress     AddressPayload `json:"clinic_address"`
}

// RegistrationResult is the success projection returned by the pipeline.
type RegistrationResult struct {
	ProviderID         string             `json:"provider_id"`
	Email              string             `json:"email"`
	VerificationStatus VerificationStatus `json:"verification_status"`
}

// VerifyEmailRequest carries the verification token.
type VerifyEmailRequest struct {
	Token string `json:"token"`
}

// ResendVerificationRequest carries the email to re-notify.
type ResendVerificationRequest struct {
	Email string `json:"email"`
}

// AddressView is the nested address in a provider projection.
type AddressView struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// View is the read projection for GET /provider/{id}.
type View struct {
	ID                  string      `json:"id"`
	FirstName           string      `json:"first_name"`
	LastName            string      `json:"last_name"`
	Email               string      `json:"email"`
	PhoneNumber         string      `json:"phone_number"`
	Specialization      string      `json:"specialization"`
	SpecializationLabel string      `json:"specialization_label"`
	LicenseNumber       string      `json:"license_number"`
	YearsOfExperience   int         `json:"years_of_experience"`
	ClinicAddress       AddressView `json:"clinic_address"`
	VerificationStatus  string      `json:"verification_status"`
	EmailVerified       bool        `json:"email_verified"`
	IsActive            bool        `json:"is_active"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// NewView projects a Provider for read endpoints. The password hash and
// token state never appear in projections.
func NewView(p *Provider) View {
	return View{
		ID:                  p.ID.String(),
		FirstName:           p.FirstName,
		LastName:            p.LastName,
		Email:               p.Email,
		PhoneNumber:         p.PhoneNumber,
		Specialization:      string(p.Specialization),
		SpecializationLabel: p.Specialization.Label(),
		LicenseNumber:       p.LicenseNumber,
		YearsOfExperience:   p.YearsOfExperience,
		ClinicAddress: AddressView{
			Street: p.ClinicAddress.Street,
			City:   p.ClinicAddress.City,
			State:  p.ClinicAddress.State,
			Zip:    p.ClinicAddress.ZipCode,
		},
		VerificationStatus: string(p.VerificationStatus),
		EmailVerified:      p.EmailVerification.Verified(),
		IsActive:           p.IsActive,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

// SpecializationOption is one {value,label} entry for the reference list.
type SpecializationOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// SpecializationOptions returns the reference list for the API.
func SpecializationOptions() []SpecializationOption {
	specs := Specializations()
	out := make([]SpecializationOption, 0, len(specs))
	for _, s := range specs {
		out = append(out, SpecializationOption{Value: string(s), Label: s.Label()})
	}
	return out
}
