// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates a temporary lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrConfiguration indicates a missing provider credential or similar setup problem.
	ErrConfiguration = errors.New("configuration error")

	// ErrValidation indicates rejected caller input.
	ErrValidation = errors.New("validation error")

	// ErrQuotaExceeded indicates the guest limit or the credit balance is used up.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrTimeout indicates the provider job did not finish within the poll budget.
	ErrTimeout = errors.New("maximum polling attempts reached")

	// ErrProvider indicates a failed or malformed response from the rewriting provider.
	ErrProvider = errors.New("provider error")

	// ErrInsufficientProviderCredits is returned when the provider account is out of credits.
	ErrInsufficientProviderCredits = fmt.Errorf("%w: insufficient provider credits", ErrProvider)
)

// Validation wraps ErrValidation with a human readable reason.
func Validation(reason string) error {
	return fmt.Errorf("%w: %s", ErrValidation, reason)
}

// CTA values attached to quota errors.
const (
	CTASignUp  = "sign_up"
	CTAUpgrade = "upgrade"
)

// QuotaError describes which allowance was exhausted.
type QuotaError struct {
	Track string // "guest" or "registered"
	Limit int64
	Used  int64
	CTA   string
}

func (e *QuotaError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("quota exceeded: %s used %d of %d", e.Track, e.Used, e.Limit)
	}
	return fmt.Sprintf("quota exceeded: %s has no credits left", e.Track)
}

// Unwrap lets errors.Is match ErrQuotaExceeded.
func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }
