package security

import (
	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies secrets (passwords, access keys, verification
// codes) using bcrypt. The per-record salt is embedded in the hash, so no two
// secrets are ever comparable by plaintext equality. Callers must not log or
// persist plaintext secrets.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost (4–31). Cost 12 is a
// reasonable default: it keeps offline brute force of a 6-digit code costly
// per guess while staying interactive.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash produces a bcrypt hash of secret with a fresh salt. Returns the hash as
// a string suitable for storage.
func (h *Hasher) Hash(secret []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(secret, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare verifies secret against the stored hash. The comparison is
// constant-time with respect to the secret. Returns nil on match; an error
// (including bcrypt.ErrMismatchedHashAndPassword) otherwise.
func (h *Hasher) Compare(hash string, secret []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), secret)
}
