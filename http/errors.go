// Package http holds the error taxonomy and pagination helpers shared by
// remote API clients.
package http

import (
	"errors"
	"fmt"
)

// Sentinel errors an *APIError unwraps to, by status code.
var (
	ErrNotFound     = errors.New("resource not found")    // 404, 410
	ErrUnauthorized = errors.New("authentication failed") // 401
	ErrForbidden    = errors.New("permission denied")     // 403
	ErrRateLimited  = errors.New("rate limit exceeded")   // 429
	ErrBadRequest   = errors.New("bad request")           // 400
	ErrServerError  = errors.New("server error")          // 5xx
)

// APIError is a non-2xx answer from a remote API.
type APIError struct {
	Service    string // "gitlab", "slack", "webhook"
	StatusCode int
	Message    string // as reported by the service, may be empty
	Endpoint   string // the call that failed, e.g. "projects/42/jobs"
	RequestID  string // X-Request-Id, if the service sent one
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%s API error (%d) at %s [%s]: %s",
			e.Service, e.StatusCode, e.Endpoint, e.RequestID, e.Message)
	}
	return fmt.Sprintf("%s API error (%d) at %s: %s",
		e.Service, e.StatusCode, e.Endpoint, e.Message)
}

// Unwrap returns the sentinel error matching the status code.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case 400:
		return ErrBadRequest
	case 401:
		return ErrUnauthorized
	case 403:
		return ErrForbidden
	case 404, 410:
		return ErrNotFound
	case 429:
		return ErrRateLimited
	default:
		if e.StatusCode >= 500 {
			return ErrServerError
		}
		return nil
	}
}

// StatusCode returns the HTTP status carried by err, or 0 if err is not an APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsNotFound reports whether the error indicates a resource was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnauthorized reports whether the error indicates authentication failed.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsForbidden reports whether the error indicates permission was denied.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsRateLimited reports whether the error indicates rate limiting.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsRetryable reports whether the error is transient.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServerError)
}
