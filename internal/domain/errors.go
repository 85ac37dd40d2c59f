package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned to API clients
const (
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeInvalidProfile = "INVALID_PROFILE"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeRateLimited    = "RATE_LIMITED"

	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeStore              = "STORE_ERROR"
	ErrCodeBrowserUnavailable = "BROWSER_UNAVAILABLE"
	ErrCodeMappingLoad        = "MAPPING_LOAD_FAILED"
	ErrCodeDetectionFailed    = "DETECTION_FAILED"
)

// AppError carries a stable code and the HTTP status it maps to. Cause is
// kept for logs and never serialized.
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Cause      error          `json:"-"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError with the same code
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && e.Code == t.Code
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// WithMetadata attaches a detail reported to clients
func (e *AppError) WithMetadata(key string, value any) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
	return e
}

// NewError creates an AppError
func NewError(code, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func ErrValidation(message string) *AppError {
	return NewError(ErrCodeValidation, message, http.StatusBadRequest)
}

func ErrValidationField(field, message string) *AppError {
	return ErrValidation(message).WithMetadata("field", field)
}

func ErrInvalidProfile(reason string) *AppError {
	return NewError(ErrCodeInvalidProfile, "Invalid profile format: "+reason, http.StatusBadRequest)
}

func ErrNotFound(resource, id string) *AppError {
	return NewError(ErrCodeNotFound, fmt.Sprintf("%s not found: %s", resource, id), http.StatusNotFound).
		WithMetadata(resource, id)
}

func ErrUnauthorized(message string) *AppError {
	if message == "" {
		message = "Authentication required"
	}
	return NewError(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func ErrRateLimited() *AppError {
	return NewError(ErrCodeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
}

func ErrInternal(message string) *AppError {
	if message == "" {
		message = "Internal server error"
	}
	return NewError(ErrCodeInternal, message, http.StatusInternalServerError)
}

func ErrStore(op string, err error) *AppError {
	return NewError(ErrCodeStore, "Profile store error: "+op, http.StatusInternalServerError).
		WithCause(err).
		WithMetadata("operation", op)
}

func ErrBrowserUnavailable(err error) *AppError {
	return NewError(ErrCodeBrowserUnavailable, "Browser unavailable", http.StatusServiceUnavailable).
		WithCause(err)
}

func ErrMappingLoad(source string, err error) *AppError {
	return NewError(ErrCodeMappingLoad, "Field mappings could not be loaded from "+source, http.StatusInternalServerError).
		WithCause(err).
		WithMetadata("source", source)
}

func ErrDetectionFailed(err error) *AppError {
	return NewError(ErrCodeDetectionFailed, "Field detection failed", http.StatusUnprocessableEntity).
		WithCause(err)
}

// AsAppError finds the first AppError in err's chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns the status for err, 500 unless an AppError says otherwise
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// GetErrorCode returns the code for err, INTERNAL_ERROR for foreign errors
func GetErrorCode(err error) string {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}
