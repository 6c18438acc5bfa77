package credential

import (
	"context"
	"time"
)

// Store persists one credential record per protected entity. A read/write pair
// is the unit of atomicity: Write replaces the whole record and must fail with
// ErrConflict when the entity's last_sent_at no longer matches prevLastSentAt
// (a concurrent issuance won the race). Implementations live next to the
// entity repositories.
type Store interface {
	// Read returns the entity's current record, or nil if the entity has no
	// credential (or does not exist — callers must not be able to tell).
	Read(ctx context.Context, ref Ref) (*Record, error)

	// Write replaces the record atomically, compare-and-swapping on the
	// previous LastSentAt. Returns ErrConflict on a lost race.
	Write(ctx context.Context, ref Ref, rec Record, prevLastSentAt *time.Time) error

	// Consume atomically clears a one-time credential and marks the entity
	// verified, conditioned on the stored hash still being expectedHash.
	// Returns ErrConflict if the credential was already consumed or replaced.
	Consume(ctx context.Context, ref Ref, expectedHash string) error
}
