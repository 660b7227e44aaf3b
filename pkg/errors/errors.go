package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeAccessDenied ErrorType = "access_denied"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeDatabase     ErrorType = "database"
	ErrorTypeUnavailable  ErrorType = "unavailable"
)

// APIError represents a structured API error
type APIError struct {
	Type        ErrorType         `json:"type"`
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	Details     string            `json:"details,omitempty"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
	HTTPStatus  int               `json:"-"`
	InternalErr error             `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Message, e.Details, e.Code)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Unwrap returns the underlying error
func (e *APIError) Unwrap() error {
	return e.InternalErr
}

// NewAPIError creates a new API error
func NewAPIError(errorType ErrorType, code, message string, httpStatus int) *APIError {
	return &APIError{
		Type:       errorType,
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// NewAPIErrorWithCause creates a new API error with an underlying cause
func NewAPIErrorWithCause(errorType ErrorType, code, message string, httpStatus int, cause error) *APIError {
	return &APIError{
		Type:        errorType,
		Code:        code,
		Message:     message,
		HTTPStatus:  httpStatus,
		InternalErr: cause,
	}
}

// ValidationFailed creates a validation error. FieldErrors carry the
// per-field messages returned to the caller; the caller may retry with
// corrected input.
func ValidationFailed(message string) *APIError {
	return NewAPIError(ErrorTypeValidation, "VALIDATION_FAILED", message, http.StatusBadRequest)
}

// ValidationFailedWithFields creates a validation error carrying per-field
// messages
func ValidationFailedWithFields(fieldErrors map[string]string) *APIError {
	err := ValidationFailed("request validation failed")
	err.FieldErrors = fieldErrors
	return err
}

// Forbidden creates a capability-denial error. The message is intentionally
// generic; the precise policy clause is logged server-side only.
func Forbidden() *APIError {
	return NewAPIError(ErrorTypeForbidden, "FORBIDDEN", "operation not permitted", http.StatusForbidden)
}

// AccessDenied creates a zero-trust denial error with a non-leaking reason.
func AccessDenied() *APIError {
	return NewAPIError(ErrorTypeAccessDenied, "ACCESS_DENIED", "access denied", http.StatusForbidden)
}

// PolicyNotFound creates an error for a missing policy. Missing policies are
// always treated as default-deny, never default-allow.
func PolicyNotFound(kind string) *APIError {
	return NewAPIErrorWithCause(ErrorTypeAccessDenied, "ACCESS_DENIED", "access denied", http.StatusForbidden,
		fmt.Errorf("no %s policy configured", kind))
}

// Unauthorized creates an unauthorized error
func Unauthorized(message string) *APIError {
	return NewAPIError(ErrorTypeUnauthorized, "UNAUTHORIZED", message, http.StatusUnauthorized)
}

// NotFound creates a not found error
func NotFound(resource string) *APIError {
	return NewAPIError(ErrorTypeNotFound, "RESOURCE_NOT_FOUND", fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// ShardUnreachable creates an error for a biometric matcher shard that could
// not be reached. Surfaced to callers only when every shard fails.
func ShardUnreachable(cause error) *APIError {
	return NewAPIErrorWithCause(ErrorTypeUnavailable, "SHARD_UNREACHABLE", "identification service unavailable", http.StatusServiceUnavailable, cause)
}

// Internal creates an internal server error
func Internal(message string, cause error) *APIError {
	return NewAPIErrorWithCause(ErrorTypeInternal, "INTERNAL_ERROR", message, http.StatusInternalServerError, cause)
}

// Database creates a database error
func Database(operation string, cause error) *APIError {
	return NewAPIErrorWithCause(ErrorTypeDatabase, "DATABASE_ERROR", fmt.Sprintf("database operation failed: %s", operation), http.StatusInternalServerError, cause)
}

// IsType checks whether err is an APIError of the given type
func IsType(err error, errorType ErrorType) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Type == errorType
	}
	return false
}

// AsAPIError extracts an APIError from err, or wraps it as an internal error
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal("unexpected error", err)
}
