package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Authentication
	ErrCodeAuthRequired   ErrorCode = "AUTH_REQUIRED"
	ErrCodeSessionExpired ErrorCode = "SESSION_EXPIRED"
	ErrCodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrCodeNotSignedIn    ErrorCode = "NOT_SIGNED_IN"

	// Validation
	ErrCodeValidation           ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput         ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired      ErrorCode = "MISSING_REQUIRED"
	ErrCodeConfirmationRequired ErrorCode = "CONFIRMATION_REQUIRED"

	// Resource
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// Remote backend
	ErrCodeRemoteCall    ErrorCode = "REMOTE_CALL_FAILED"
	ErrCodeInvalidFormat ErrorCode = "INVALID_FILE_FORMAT"

	// Internal
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeStorage  ErrorCode = "STORAGE_ERROR"
)

const (
	MessageSessionExpired = "Session expired. Please sign in again."
	MessageAuthRequired   = "No authentication token"
)

// AppError is a structured error that can be returned to clients
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Status  int       `json:"-"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

func AuthRequired() *AppError {
	return New(ErrCodeAuthRequired, MessageAuthRequired)
}

func SessionExpired(cause error) *AppError {
	return Wrap(ErrCodeSessionExpired, MessageSessionExpired, cause)
}

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func NotSignedIn() *AppError {
	return New(ErrCodeNotSignedIn, "Please sign in first")
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func InvalidInput(field string, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, reason))
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeMissingRequired, fmt.Sprintf("%s is required", field))
}

func ConfirmationRequired(action string) *AppError {
	return New(ErrCodeConfirmationRequired, fmt.Sprintf("%s requires confirmation", action))
}

// Remote wraps a failed backend call. status is 0 for transport errors.
func Remote(status int, message string, cause error) *AppError {
	code := ErrCodeRemoteCall
	switch status {
	case 400, 422:
		code = ErrCodeValidation
	case 404:
		code = ErrCodeNotFound
	}
	if message == "" {
		message = "An error occurred"
	}
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		cause:   cause,
	}
}

func InvalidFormat() *AppError {
	return New(ErrCodeInvalidFormat, "Invalid file format received")
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func Storage(cause error) *AppError {
	return Wrap(ErrCodeStorage, "Local storage error", cause)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if the error is an AppError, otherwise returns ErrCodeInternal
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && GetCode(err) == code
}
