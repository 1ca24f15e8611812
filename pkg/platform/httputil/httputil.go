// Package httputil centralizes JSON response writing so every endpoint
// speaks the same envelope: {success, message, data?, errors?}.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "healthfirst/pkg/domain-errors"
)

// Envelope is the uniform JSON response body for all endpoints.
type Envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    any                 `json:"data,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// WriteJSON writes v as JSON with the given status. Encoding failures are
// ignored; the status line has already been committed.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes a success envelope.
func WriteSuccess(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// WriteError translates a domain error into the failure envelope. Internal
// errors keep their coded message but never expose their cause; uncoded
// errors collapse to a generic message entirely.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)

	env := Envelope{Success: false, Message: dErrors.MessageOf(err)}
	if code == dErrors.CodeInternal {
		env.Errors = map[string][]string{"general": {"Please try again later"}}
	} else {
		env.Errors = dErrors.FieldsOf(err)
	}
	WriteJSON(w, status, env)
}
