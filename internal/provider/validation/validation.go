// Package validation holds the pure field validators for provider
// registration. Each validator takes an already-sanitized value and returns
// the normalized form or a human-readable message; ValidateRegistration
// accumulates failures across fields instead of stopping at the first.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/nyaruka/phonenumbers"

	dErrors "healthfirst/pkg/domain-errors"
)

var (
	namePattern       = regexp.MustCompile(`^[a-zA-Z\s'-]+$`)
	licensePattern    = regexp.MustCompile(`^[A-Z0-9]+$`)
	usZipPattern      = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	genericZipPattern = regexp.MustCompile(`^[A-Z0-9\s-]{3,10}$`)
)

// FieldErrors accumulates per-field validation messages.
type FieldErrors map[string][]string

// Add appends a message for a field.
func (f FieldErrors) Add(field, message string) {
	f[field] = append(f[field], message)
}

// AddAll appends every message for a field.
func (f FieldErrors) AddAll(field string, messages []string) {
	f[field] = append(f[field], messages...)
}

// Empty reports whether no field failed.
func (f FieldErrors) Empty() bool { return len(f) == 0 }

// Err converts the accumulated messages into a coded domain error, or nil
// when empty.
func (f FieldErrors) Err(message string) error {
	if f.Empty() {
		return nil
	}
	return dErrors.New(dErrors.CodeInvalidInput, message).WithFields(f)
}

// Name validates and normalizes a name field (first or last name).
// fieldLabel is used in messages, e.g. "First name".
func Name(value, fieldLabel string) (string, error) {
	if value == "" {
		return "", fmt.Errorf("%s is required.", fieldLabel)
	}
	value = strings.TrimSpace(value)
	if len(value) < 2 || len(value) > 50 {
		return "", fmt.Errorf("%s must be between 2 and 50 characters.", fieldLabel)
	}
	if !namePattern.MatchString(value) {
		return "", fmt.Errorf("%s can only contain letters, spaces, hyphens, and apostrophes.", fieldLabel)
	}
	return capitalizeWords(value), nil
}

func capitalizeWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

func capitalize(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
}

// Email validates shape and normalizes to lowercase.
func Email(value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("Email is required.")
	}
	value = strings.ToLower(strings.TrimSpace(value))
	if !govalidator.IsEmail(value) || len(value) > 254 {
		return "", fmt.Errorf("Invalid email format.")
	}
	return value, nil
}

// Phone parses the number against international numbering rules and
// normalizes to E.164. A parse failure produces a format-hint message
// distinct from a structurally-parsed-but-invalid number.
func Phone(value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("Phone number is required.")
	}
	parsed, err := phonenumbers.Parse(strings.TrimSpace(value), "")
	if err != nil {
		return "", fmt.Errorf("Invalid phone number format. Please use international format (e.g., +1234567890).")
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", fmt.Errorf("Invalid phone number format.")
	}
	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

// License validates and normalizes the license number to uppercase
// alphanumeric, 5-20 characters.
func License(value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("License number is required.")
	}
	value = strings.ToUpper(strings.TrimSpace(value))
	if !licensePattern.MatchString(value) {
		return "", fmt.Errorf("License number must contain only letters and numbers.")
	}
	if len(value) < 5 || len(value) > 20 {
		return "", fmt.Errorf("License number must be between 5 and 20 characters.")
	}
	return value, nil
}

// Zip validates a postal code. US gets the strict ZIP/ZIP+4 shape; other
// locales get a generic uppercase alphanumeric check.
func Zip(value, country string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("ZIP/Postal code is required.")
	}
	value = strings.TrimSpace(value)
	if country == "US" {
		if !usZipPattern.MatchString(value) {
			return "", fmt.Errorf("Invalid US ZIP code format. Use 12345 or 12345-6789.")
		}
		return value, nil
	}
	if !genericZipPattern.MatchString(strings.ToUpper(value)) {
		return "", fmt.Errorf("Invalid postal code format.")
	}
	return value, nil
}

// Specialization lowercases and checks membership in the allowed set.
// isValid is injected so this package stays free of the domain enum.
func Specialization(value string, isValid func(string) bool) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("Specialization is required.")
	}
	value = strings.ToLower(strings.TrimSpace(value))
	if !isValid(value) {
		return "", fmt.Errorf("Invalid specialization selected.")
	}
	return value, nil
}

// YearsOfExperience parses the raw value and validates the 0-50 range.
func YearsOfExperience(raw string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, fmt.Errorf("Years of experience is required.")
	}
	years, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("Years of experience must be a number.")
	}
	if years < 0 || years > 50 {
		return 0, fmt.Errorf("Years of experience must be between 0 and 50.")
	}
	return years, nil
}

// Address is the normalized clinic address produced by ClinicAddress.
type Address struct {
	Street string
	City   string
	State  string
	Zip    string
}

// ClinicAddress validates every address field, collecting failures per field
// before reporting, and returns the normalized address.
func ClinicAddress(street, city, state, zip string) (Address, FieldErrors) {
	errs := make(FieldErrors)

	street = strings.TrimSpace(street)
	if street == "" {
		errs.Add("clinic_address.street", "Street address is required.")
	} else if len(street) > 200 {
		errs.Add("clinic_address.street", "Street address must be 200 characters or less.")
	}

	city = strings.TrimSpace(city)
	switch {
	case city == "":
		errs.Add("clinic_address.city", "City is required.")
	case len(city) > 100:
		errs.Add("clinic_address.city", "City must be 100 characters or less.")
	case !namePattern.MatchString(city):
		errs.Add("clinic_address.city", "City can only contain letters, spaces, hyphens, and apostrophes.")
	}

	state = strings.TrimSpace(state)
	switch {
	case state == "":
		errs.Add("clinic_address.state", "State is required.")
	case len(state) > 50:
		errs.Add("clinic_address.state", "State must be 50 characters or less.")
	case !namePattern.MatchString(state):
		errs.Add("clinic_address.state", "State can only contain letters, spaces, hyphens, and apostrophes.")
	}

	normalizedZip, zipErr := Zip(zip, "US")
	if zipErr != nil {
		errs.Add("clinic_address.zip", zipErr.Error())
	}

	if !errs.Empty() {
		return Address{}, errs
	}
	return Address{
		Street: street,
		City:   titleWords(city),
		State:  titleWords(state),
		Zip:    normalizedZip,
	}, nil
}

// titleWords title-cases each whitespace-separated word, preserving single
// spaces. Unlike capitalizeWords it leaves inner casing of hyphenated parts
// to the capitalization of the leading rune only.
func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
