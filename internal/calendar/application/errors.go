package application

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors for provider failures, matched with errors.Is. Providers
// wrap their wire-level failures so the layers above never inspect raw
// status codes.
var (
	ErrBadRequest   = errors.New("calendar provider: bad request")
	ErrUnauthorized = errors.New("calendar provider: unauthorized")
	ErrForbidden    = errors.New("calendar provider: forbidden")
	ErrNotFound     = errors.New("calendar provider: not found")
	ErrConflict     = errors.New("calendar provider: conflict")
	ErrThrottled    = errors.New("calendar provider: rate limited")
	ErrServerError  = errors.New("calendar provider: server error")
)

// StatusError carries the provider's status code and response body for one
// failed call. It unwraps to the sentinel matching its status class.
type StatusError struct {
	StatusCode int
	Body       string
	// RetryAfter is the provider's requested backoff, zero when absent.
	RetryAfter time.Duration
}

// NewStatusError builds a StatusError from a provider response.
func NewStatusError(statusCode int, body string) *StatusError {
	return &StatusError{StatusCode: statusCode, Body: body}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("calendar call failed: status=%d body=%s", e.StatusCode, e.Body)
}

// Unwrap maps the status code onto its sentinel.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusBadRequest:
		return ErrBadRequest
	case e.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.StatusCode == http.StatusForbidden:
		return ErrForbidden
	case e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusGone:
		return ErrNotFound
	case e.StatusCode == http.StatusConflict:
		return ErrConflict
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrThrottled
	case e.StatusCode >= 500:
		return ErrServerError
	default:
		return nil
	}
}

// IsRetryable reports whether a provider failure is transient. Rate limits
// and server errors retry; authentication, validation, and not-found
// failures never do. Errors that are not StatusErrors are assumed to be
// transport-level and retryable.
func IsRetryable(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return true
	}
	return errors.Is(err, ErrThrottled) || errors.Is(err, ErrServerError)
}

// RetryAfterHint returns the provider-requested backoff, or zero.
func RetryAfterHint(err error) time.Duration {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.RetryAfter
	}
	return 0
}
