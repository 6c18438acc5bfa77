package credential

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the credential core. NotFound, Invalid, and Expired must
// collapse to one generic message at the user-facing boundary; the distinction
// exists only for audit and telemetry.
var (
	ErrNotFound       = errors.New("credential not found")
	ErrInvalid        = errors.New("invalid credential")
	ErrExpired        = errors.New("credential expired")
	ErrConflict       = errors.New("credential write conflict")
	ErrDeliveryFailed = errors.New("credential delivery failed")
)

// GenericAuthMessage is the single message shown to end users for any of
// NotFound, Invalid, or Expired, so the three cannot be told apart.
const GenericAuthMessage = "invalid or expired credential"

// RateLimitedError rejects an issuance inside the cooldown window. RetryAfter
// is safe to surface; the UI renders it as a countdown.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
}

// IsAuthFailure reports whether err is one of the verification failures that
// must be indistinguishable to the end user.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalid) || errors.Is(err, ErrExpired)
}
