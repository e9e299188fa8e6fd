// Package common defines shared constants and sentinel errors used across
// the store, security and session layers. Callers should use errors.Is to
// match these values and errors.As for the typed variants.
package common

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")

	// ErrSecurityViolation is returned when a request fails CSRF validation.
	ErrSecurityViolation = errors.New("invalid security token")

	// ErrThrottled marks a request rejected by the rate limiter.
	ErrThrottled = errors.New("too many attempts")

	// ErrInvalidCredentials is the single error shown for unknown users,
	// disabled accounts and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrValidation marks input rejected by the validator.
	ErrValidation = errors.New("validation failed")

	// ErrStoreUnavailable hides store failures behind a generic message.
	ErrStoreUnavailable = errors.New("service temporarily unavailable")
)

// ThrottledError carries the remaining lockout for a throttled key.
type ThrottledError struct {
	RetryAfter int // seconds
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("Too many login attempts. Please try again in %s.", humanizeSeconds(e.RetryAfter))
}

func (e *ThrottledError) Unwrap() error { return ErrThrottled }

// ValidationError lists every failed rule message per field.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], "; "))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func humanizeSeconds(sec int) string {
	if sec < 60 {
		if sec == 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", sec)
	}
	mins := (sec + 59) / 60
	if mins == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", mins)
}
