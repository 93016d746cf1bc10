package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases. Components classify failures at
// their boundary into one of these kinds; callers branch with errors.Is.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrConflict         = errors.New("conflict")
	ErrInvalidInput     = errors.New("invalid input")
	ErrValidation       = errors.New("validation failed")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrPermissionDenied = errors.New("permission denied")
	ErrRateLimited      = errors.New("rate limited")
	ErrTimeout          = errors.New("operation timed out")
	ErrCircuitOpen      = errors.New("circuit breaker open")
	ErrOverloaded       = errors.New("overloaded")
	ErrUnavailable      = errors.New("service unavailable")
	ErrDependency       = errors.New("dependency error")
	ErrInternal         = errors.New("internal error")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// Conflict creates a 409 error.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrConflict,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Validation creates a 400 error for a failed validation rule. Messages carry
// field names and rule descriptions, never user data.
func Validation(field, rule string) *AppError {
	return &AppError{
		Code:    "VALIDATION",
		Message: fmt.Sprintf("field %s failed rule %s", field, rule),
		Status:  http.StatusBadRequest,
		Err:     ErrValidation,
	}
}

// Unauthenticated creates a 401 error.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHENTICATED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthenticated,
	}
}

// PermissionDenied creates a 403 error.
func PermissionDenied(message string) *AppError {
	return &AppError{
		Code:    "PERMISSION_DENIED",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrPermissionDenied,
	}
}

// RateLimited creates a 429 error carrying the window and limit that tripped.
func RateLimited(windowSeconds, limit int) *AppError {
	return &AppError{
		Code:    "RATE_LIMITED",
		Message: fmt.Sprintf("limit of %d requests per %ds exceeded", limit, windowSeconds),
		Status:  http.StatusTooManyRequests,
		Err:     ErrRateLimited,
	}
}

// Timeout creates a 504 error.
func Timeout(operation string) *AppError {
	return &AppError{
		Code:    "TIMEOUT",
		Message: fmt.Sprintf("%s timed out", operation),
		Status:  http.StatusGatewayTimeout,
		Err:     ErrTimeout,
	}
}

// Unavailable creates a 503 error.
func Unavailable(dependency string) *AppError {
	return &AppError{
		Code:    "UNAVAILABLE",
		Message: fmt.Sprintf("%s is unavailable", dependency),
		Status:  http.StatusServiceUnavailable,
		Err:     ErrUnavailable,
	}
}

// Dependency creates a 502 error wrapping a classified downstream failure.
func Dependency(dependency string, err error) *AppError {
	return &AppError{
		Code:    "DEPENDENCY",
		Message: fmt.Sprintf("downstream %s failed", dependency),
		Status:  http.StatusBadGateway,
		Err:     fmt.Errorf("%w: %w", ErrDependency, err),
	}
}

// Internal creates a 500 error. The message is fixed so that unclassified
// errors never leak internals to clients.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// Retryable reports whether the error kind is safe to retry at the nearest
// retry boundary. Validation and other client-correctable errors never retry.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrTimeout),
		errors.Is(err, ErrUnavailable),
		errors.Is(err, ErrCircuitOpen),
		errors.Is(err, ErrOverloaded):
		return true
	default:
		return false
	}
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrCircuitOpen), errors.Is(err, ErrOverloaded), errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrDependency):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
