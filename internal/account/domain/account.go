package domain

import (
	"errors"
	"time"
)

// Account is a customer account whose email ownership is confirmed by a
// one-time verification code. The code itself is stored only as
// (hash, expiresAt, lastSentAt) — never in plaintext.
type Account struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Verified     bool

	// Current verification credential; cleared atomically when the code is
	// consumed. All three fields are replaced together on every issuance.
	VerificationCodeHash  string
	VerificationExpiresAt *time.Time
	LastCodeSentAt        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate validates the account for persistence.
func (a *Account) Validate() error {
	if a.Email == "" {
		return errors.New("email is required")
	}
	if a.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	return nil
}
