// Package credential implements the credential-gated access core: issuing
// short secrets (order access keys and email verification codes), storing them
// only as salted hashes, expiring and rate-limiting them, and verifying
// submissions without leaking which entities or codes exist.
package credential

import (
	"fmt"
	"time"
)

// Kind distinguishes the two secret lifecycles.
type Kind string

const (
	// KindAccessKey is the reusable 8-character key gating one order's
	// tracking view. It never expires by time; regeneration supersedes it.
	KindAccessKey Kind = "access_key"
	// KindVerificationCode is the one-time 6-digit code confirming account
	// email ownership. It expires and is consumed on first successful use.
	KindVerificationCode Kind = "verification_code"
)

// EntityKind names the kind of protected entity a credential belongs to.
type EntityKind string

const (
	EntityOrder   EntityKind = "order"
	EntityAccount EntityKind = "account"
)

// Ref is an opaque reference to one protected entity.
type Ref struct {
	Entity EntityKind
	ID     string
}

// String renders the ref for audit rows and log lines.
func (r Ref) String() string { return fmt.Sprintf("%s/%s", r.Entity, r.ID) }

// Record is the stored credential value: the hash of the current secret, its
// optional expiry, and when it was last (re)issued. It is an immutable value
// replaced wholesale on every write; the plaintext secret is never part of it.
type Record struct {
	Hash       string
	ExpiresAt  *time.Time
	LastSentAt *time.Time
}

// Grant is proof that the gate accepted a secret for one entity in one
// browser session. It never unlocks a different entity.
type Grant struct {
	SessionID string
	Ref       Ref
	GrantedAt time.Time
}
