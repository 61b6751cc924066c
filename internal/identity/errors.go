package identity

import (
	"encoding/json"
	"errors"
	"strings"
)

// Sentinel errors for the provider outcomes callers branch on.
var (
	// ErrDuplicateEmail means the email is already registered. Provisioning
	// treats this as a non-error "already exists" outcome.
	ErrDuplicateEmail = errors.New("identity: email already registered")
	// ErrInvalidCredentials means the credential exchange was rejected.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	// ErrTokenRejected means the provider refused a presented token.
	ErrTokenRejected = errors.New("identity: token rejected")
)

// providerError covers the two error body shapes the provider emits:
// {"code":422,"error_code":"email_exists","msg":"..."} for admin endpoints and
// {"error":"invalid_grant","error_description":"..."} for the token endpoint.
type providerError struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Error_           string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"message"`
}

// translateError is the single place that classifies provider failures.
// Structured error codes are matched first; the message-substring fallback
// exists only for older provider versions and is deliberately confined here.
func translateError(status int, body []byte) error {
	var pe providerError
	_ = json.Unmarshal(body, &pe)

	switch pe.ErrorCode {
	case "email_exists", "user_already_exists":
		return ErrDuplicateEmail
	case "invalid_credentials":
		return ErrInvalidCredentials
	}
	if pe.Error_ == "invalid_grant" {
		return ErrInvalidCredentials
	}

	msg := strings.ToLower(pe.Msg + " " + pe.ErrorDescription + " " + pe.Message)
	switch {
	case strings.Contains(msg, "already registered"),
		strings.Contains(msg, "already exists"),
		strings.Contains(msg, "email address is already"):
		return ErrDuplicateEmail
	case strings.Contains(msg, "invalid login credentials"),
		strings.Contains(msg, "invalid_credentials"):
		return ErrInvalidCredentials
	}

	if status == 401 {
		return ErrTokenRejected
	}
	return &RequestError{Status: status, Body: pe}
}

// RequestError is an unclassified provider failure; the caller maps it to the
// generic provisioning/internal error without exposing the body.
type RequestError struct {
	Status int
	Body   providerError
}

func (e *RequestError) Error() string {
	if e.Body.Msg != "" {
		return "identity: request failed: " + e.Body.Msg
	}
	return "identity: request failed"
}
