package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Error codes for the activation and authentication lifecycle. Codes are
// stable: clients key off error_code, never off message text.
const (
	CodeInvalidRequest         = "INVALID_REQUEST"
	CodeValidationFailed       = "VALIDATION_FAILED"
	CodeInvalidLicenseKey      = "INVALID_LICENSE_KEY"
	CodeLicenseUnlinked        = "LICENSE_UNLINKED"
	CodeLicenseAlreadyConsumed = "LICENSE_ALREADY_CONSUMED"
	CodeProvisioningError      = "PROVISIONING_ERROR"
	CodeInvalidCredentials     = "INVALID_CREDENTIALS"
	CodeUnlinkedIdentity       = "UNLINKED_IDENTITY"
	CodeTenantNotFound         = "TENANT_NOT_FOUND"
	CodeTenantInactive         = "TENANT_INACTIVE"
	CodePlanExpired            = "PLAN_EXPIRED"
	CodeSubAccountDeactivated  = "SUB_ACCOUNT_DEACTIVATED"
	CodeUnauthenticated        = "UNAUTHENTICATED"
	CodeInvalidSession         = "INVALID_SESSION"
	CodeForbidden              = "FORBIDDEN"
	CodeNotFound               = "NOT_FOUND"
	CodeRateLimitExceeded      = "RATE_LIMIT_EXCEEDED"
	CodeInternalServer         = "INTERNAL_SERVER_ERROR"
)

// Predefined errors covering the lifecycle taxonomy
var (
	// 400 Bad Request
	ErrInvalidRequest   = New(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format")
	ErrInvalidLicense   = New(http.StatusBadRequest, CodeInvalidLicenseKey, "Invalid license key")
	ErrLicenseUnlinked  = New(http.StatusBadRequest, CodeLicenseUnlinked, "No tenant linked to this license key")
	ErrValidationFailed = New(http.StatusBadRequest, CodeValidationFailed, "Request validation failed")

	// 401 Unauthorized
	ErrInvalidCredentials = New(http.StatusUnauthorized, CodeInvalidCredentials, "Invalid email or password")
	ErrUnauthenticated    = New(http.StatusUnauthorized, CodeUnauthenticated, "Authentication required")
	ErrInvalidSession     = New(http.StatusUnauthorized, CodeInvalidSession, "Invalid or expired token")

	// 403 Forbidden
	ErrUnlinkedIdentity      = New(http.StatusForbidden, CodeUnlinkedIdentity, "This account is not linked to any tenant. Please contact admin.")
	ErrTenantNotFound        = New(http.StatusForbidden, CodeTenantNotFound, "Tenant not found")
	ErrTenantInactive        = New(http.StatusForbidden, CodeTenantInactive, "Tenant is not active. Please contact admin.")
	ErrPlanExpired           = New(http.StatusForbidden, CodePlanExpired, "Your plan has expired. Please contact admin for renewal.")
	ErrSubAccountDeactivated = New(http.StatusForbidden, CodeSubAccountDeactivated, "This section account has been deactivated.")
	ErrForbidden             = New(http.StatusForbidden, CodeForbidden, "Access denied")

	// 404 Not Found
	ErrNotFound = New(http.StatusNotFound, CodeNotFound, "Resource not found")

	// 409 Conflict
	ErrLicenseAlreadyConsumed = New(http.StatusConflict, CodeLicenseAlreadyConsumed, "License key has already been activated by another account")

	// 429 Too Many Requests
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, CodeRateLimitExceeded, "Rate limit exceeded")

	// 500 Internal Server Error
	ErrProvisioning   = New(http.StatusInternalServerError, CodeProvisioningError, "Failed to provision account")
	ErrInternalServer = New(http.StatusInternalServerError, CodeInternalServer, "Internal server error")
)

// ValidationError represents a single field validation failure
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrValidation creates a validation error with field details
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeValidationFailed, "Request validation failed", ValidationError{
		Field:   field,
		Message: message,
	})
}

// InvalidRequestWithError creates an invalid request error with details
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format", err.Error())
}

// NotFoundError creates a not found error for a named resource
func NotFoundError(resource string) *APIError {
	return New(http.StatusNotFound, CodeNotFound, fmt.Sprintf("%s not found", resource))
}

// ErrorResponse is the uniform error envelope: {success:false, error:{...}}
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

// NewErrorResponse creates a new error response envelope
func NewErrorResponse(err *APIError) *ErrorResponse {
	return &ErrorResponse{
		Success: false,
		Error:   err,
	}
}

// Render implements the render.Renderer interface
func (e *ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return e.Error.Render(w, r)
}

// SuccessResponse is the uniform success envelope: {success:true, data:...}
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// NewSuccessResponse creates a success envelope around the given payload
func NewSuccessResponse(message string, data interface{}) *SuccessResponse {
	return &SuccessResponse{Success: true, Message: message, Data: data}
}

// Render implements the render.Renderer interface
func (s *SuccessResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

// AsAPIError unwraps err into an *APIError. Unexpected errors map to the
// generic internal error so provider/store failure text never leaks.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return ErrInternalServer
}

// WriteError writes an error envelope directly to the response writer.
// Used by middleware that runs before the render pipeline is set up.
func WriteError(w http.ResponseWriter, err *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	json.NewEncoder(w).Encode(NewErrorResponse(err))
}
