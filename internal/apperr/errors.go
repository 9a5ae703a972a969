// Package apperr defines the error taxonomy shared by services and handlers.
// Use errors.Is() against the sentinels; handlers map them to HTTP statuses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrValidation marks a missing or malformed request field.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized marks a request without a resolvable user identity.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden marks access to a resource owned by another user.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound marks a missing resource.
	ErrNotFound = errors.New("not found")

	// ErrQuotaExceeded marks a user that reached the daily request cap.
	ErrQuotaExceeded = errors.New("daily request limit reached")

	// ErrUpstreamRateLimited marks a provider that signalled throttling.
	ErrUpstreamRateLimited = errors.New("upstream provider rate limited")

	// ErrUpstream marks any other failure of an external provider.
	ErrUpstream = errors.New("upstream provider error")

	// ErrStorage marks a failed record store operation.
	ErrStorage = errors.New("storage error")

	// ErrNotConfigured marks a missing credential or base URL.
	ErrNotConfigured = errors.New("not configured")
)

// Validation wraps a message as a validation error
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Storage wraps a record store failure
func Storage(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}

// NotConfigured reports a missing configuration key
func NotConfigured(key string) error {
	return fmt.Errorf("%w: %s", ErrNotConfigured, key)
}

// QuotaError carries the counters of a rejected limiter call
type QuotaError struct {
	Limit int
	Used  int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: %d of %d requests used today", ErrQuotaExceeded, e.Used, e.Limit)
}

func (e *QuotaError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// RateLimitError carries the provider's retry hint
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", ErrUpstreamRateLimited, e.Provider, e.Err)
	}
	return fmt.Sprintf("%s (%s)", ErrUpstreamRateLimited, e.Provider)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrUpstreamRateLimited
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps an error onto the response status code
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUpstreamRateLimited):
		return http.StatusServiceUnavailable
	default:
		// ErrUpstream, ErrStorage, ErrNotConfigured and anything unknown
		return http.StatusInternalServerError
	}
}

// ParseRetryAfter reads a Retry-After header given in seconds, else returns fallback
func ParseRetryAfter(value string, fallback time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
