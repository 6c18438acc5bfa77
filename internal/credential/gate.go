package credential

import (
	"context"
	"errors"

	"zetsuserv/internal/clock"
)

// Gate verifies a submitted plaintext secret against the stored hash and
// expiry. Absence of a record, a wrong secret, and an expired secret return
// distinct internal errors but must all render as GenericAuthMessage to the
// end user; the gate keeps their timing indistinguishable by running the
// hasher on every path.
type Gate struct {
	store  Store
	hasher Hasher
	clk    clock.Clock

	// padHash absorbs the compare cost when no record exists, so "entity not
	// found" takes as long as "wrong secret".
	padHash string
}

// NewGate returns a Gate over the given store.
func NewGate(store Store, hasher Hasher, clk clock.Clock) (*Gate, error) {
	pad, err := hasher.Hash([]byte("gate-timing-pad"))
	if err != nil {
		return nil, err
	}
	return &Gate{store: store, hasher: hasher, clk: clk, padHash: pad}, nil
}

// Verify checks submitted against the entity's current secret.
//
// On success for a one-time kind the stored hash is cleared and the entity
// marked verified in one atomic write, so the same code cannot authenticate
// twice — a concurrent submission that loses that write returns ErrInvalid.
// For a reusable kind the record is left intact and a Grant scoped to
// (sessionID, ref) is returned.
func (g *Gate) Verify(ctx context.Context, ref Ref, kind Kind, submitted, sessionID string) (*Grant, error) {
	rec, err := g.store.Read(ctx, ref)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.Hash == "" {
		_ = g.hasher.Compare(g.padHash, []byte(submitted))
		return nil, ErrNotFound
	}
	now := g.clk.Now()
	if rec.ExpiresAt != nil && !now.Before(*rec.ExpiresAt) {
		_ = g.hasher.Compare(g.padHash, []byte(submitted))
		return nil, ErrExpired
	}
	if err := g.hasher.Compare(rec.Hash, []byte(submitted)); err != nil {
		return nil, ErrInvalid
	}
	if kind == KindVerificationCode {
		if err := g.store.Consume(ctx, ref, rec.Hash); err != nil {
			if errors.Is(err, ErrConflict) {
				return nil, ErrInvalid
			}
			return nil, err
		}
	}
	return &Grant{SessionID: sessionID, Ref: ref, GrantedAt: now}, nil
}
