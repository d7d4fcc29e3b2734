package provider

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorFromStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		sentinel  error
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited, true},
		{"unauthorized", http.StatusUnauthorized, ErrInvalidCredentials, true},
		{"forbidden", http.StatusForbidden, ErrInvalidCredentials, true},
		{"service unavailable", http.StatusServiceUnavailable, ErrUnavailable, true},
		{"internal error", http.StatusInternalServerError, ErrUnavailable, true},
		{"bad request", http.StatusBadRequest, ErrInvalidRequest, false},
		{"not found", http.StatusNotFound, ErrInvalidRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ErrorFromStatus("openai", "stream", tt.status, "upstream said no")
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("error %v does not wrap %v", err, tt.sentinel)
			}
			if err.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", err.Retryable, tt.retryable)
			}
			if err.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", err.StatusCode, tt.status)
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", IsRetryable(err), tt.retryable)
			}
		})
	}
}

func TestIsRetryableSentinels(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrRateLimited, true},
		{ErrUnavailable, true},
		{ErrTimeout, true},
		{ErrInvalidCredentials, true},
		{ErrInvalidRequest, false},
		{ErrContextTooLong, false},
		{fmt.Errorf("wrapping: %w", ErrTimeout), true},
		{errors.New("something else"), false},
	}

	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestErrorFormatting(t *testing.T) {
	err := NewError("anthropic", "complete", ErrUnavailable, true)
	want := "anthropic complete: service unavailable"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Error("wrapped sentinel not reachable via errors.Is")
	}
}

func TestIsAuthError(t *testing.T) {
	err := ErrorFromStatus("google", "stream", http.StatusUnauthorized, "")
	if !IsAuthError(err) {
		t.Error("401 error should be an auth error")
	}
	if IsAuthError(ErrRateLimited) {
		t.Error("rate limit is not an auth error")
	}
}
