package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Sentinel errors for provider operations.
var (
	// ErrUnknownProvider indicates the requested provider is not registered.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrRateLimited indicates the vendor rejected the request with 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnavailable indicates the vendor service is unavailable (5xx).
	ErrUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates the request timed out.
	ErrTimeout = errors.New("request timed out")

	// ErrInvalidCredentials indicates the vendor rejected the API key
	// (401/403).
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidRequest indicates the request is malformed (4xx other
	// than auth and rate limiting).
	ErrInvalidRequest = errors.New("invalid request")

	// ErrContextTooLong indicates the input exceeds the context window.
	ErrContextTooLong = errors.New("context exceeds maximum length")

	// ErrStreamingNotSupported indicates the model only returns complete
	// responses.
	ErrStreamingNotSupported = errors.New("streaming not supported")
)

// Error wraps provider errors with context.
type Error struct {
	Provider   string // Vendor name ("openai", "anthropic", "google")
	Op         string // Operation that failed ("complete", "stream")
	StatusCode int    // HTTP status from the vendor, 0 if not applicable
	Err        error  // Underlying error
	Retryable  bool   // Whether a failover attempt may succeed
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new provider error.
func NewError(provider, op string, err error, retryable bool) *Error {
	return &Error{
		Provider:  provider,
		Op:        op,
		Err:       err,
		Retryable: retryable,
	}
}

// ErrorFromStatus maps a non-2xx vendor HTTP status to a provider error.
// Rate limiting, server outages, and credential rejections are retryable
// against an alternate model; a malformed request is not, since it would
// fail identically everywhere.
func ErrorFromStatus(provider, op string, status int, body string) *Error {
	var (
		err       error
		retryable bool
	)
	switch {
	case status == http.StatusTooManyRequests:
		err, retryable = ErrRateLimited, true
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		err, retryable = ErrInvalidCredentials, true
	case status >= 500:
		err, retryable = ErrUnavailable, true
	default:
		err, retryable = ErrInvalidRequest, false
	}
	if body != "" {
		err = fmt.Errorf("%w: %s", err, body)
	}
	return &Error{Provider: provider, Op: op, StatusCode: status, Err: err, Retryable: retryable}
}

// WrapTransportError classifies an HTTP transport failure. Timeouts and
// connection failures are retryable against an alternate model; context
// cancellation passes through untouched so callers can distinguish a
// client hangup from an upstream failure.
func WrapTransportError(provider, op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Provider: provider, Op: op, Err: fmt.Errorf("%w: %v", ErrTimeout, err), Retryable: true}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Provider: provider, Op: op, Err: fmt.Errorf("%w: %v", ErrTimeout, err), Retryable: true}
	}
	return &Error{Provider: provider, Op: op, Err: fmt.Errorf("%w: %v", ErrUnavailable, err), Retryable: true}
}

// IsRetryable checks if an error is worth retrying on an alternate model.
func IsRetryable(err error) bool {
	var provErr *Error
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}

	// Check for known retryable sentinel errors
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrInvalidCredentials)
}

// IsAuthError checks if an error is authentication-related.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}
