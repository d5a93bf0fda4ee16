package ports

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Common infrastructure errors that can occur during external service
// interactions.
var (
	// ErrRateLimited indicates that the service has rate limited the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that the external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidResponse indicates that the service returned an invalid
	// response.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrAuthenticationFailed indicates that authentication with the
	// service failed.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrNotFound indicates that the requested resource does not exist.
	ErrNotFound = errors.New("not found")
)

// ServiceError represents an error from an external HTTP collaborator
// (Bluesky, the search backend, the embeddings endpoint).
type ServiceError struct {
	// Service names the collaborator, for example "bluesky".
	Service string

	// Operation is the name of the operation that failed.
	Operation string

	// StatusCode is the HTTP status, or zero for transport failures.
	StatusCode int

	// Err is the underlying error that occurred.
	Err error

	// RetryAfter indicates how long to wait before retrying, if the service said so.
	RetryAfter *time.Duration
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Service, e.Operation, e.Err)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.RetryAfter != nil {
		msg += fmt.Sprintf(", retry_after=%v", *e.RetryAfter)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ServiceError) Unwrap() error { return e.Err }

// IsRetryable returns true if the error is temporary and the operation
// could be retried.
func (e *ServiceError) IsRetryable() bool {
	return errors.Is(e.Err, ErrRateLimited) ||
		errors.Is(e.Err, ErrServiceUnavailable) ||
		errors.Is(e.Err, ErrTimeout)
}

// NewServiceError creates a ServiceError, classifying the status code into
// one of the package sentinels when detail is nil.
func NewServiceError(service, operation string, statusCode int, detail error) *ServiceError {
	err := detail
	if err == nil {
		err = StatusError(statusCode)
	}
	return &ServiceError{
		Service:    service,
		Operation:  operation,
		StatusCode: statusCode,
		Err:        err,
	}
}

// StatusError maps an HTTP status code to a sentinel error.
func StatusError(statusCode int) error {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return ErrAuthenticationFailed
	case statusCode == http.StatusNotFound:
		return ErrNotFound
	case statusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		return ErrTimeout
	case statusCode >= 500:
		return ErrServiceUnavailable
	default:
		return fmt.Errorf("%w: unexpected status %d", ErrInvalidResponse, statusCode)
	}
}
