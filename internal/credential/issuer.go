package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zetsuserv/internal/clock"
)

// Generator produces a cryptographically random plaintext secret of the given
// kind. Implemented by security.SecretGenerator.
type Generator interface {
	Generate(kind Kind) (string, error)
}

// Hasher is the one-way, salted credential hasher. Implemented by
// security.Hasher (bcrypt).
type Hasher interface {
	Hash(secret []byte) (string, error)
	Compare(hash string, secret []byte) error
}

// Dispatcher delivers the plaintext secret to the user out-of-band. The core
// never logs or re-displays the plaintext; a dispatch failure must not roll
// back the already-committed credential.
type Dispatcher interface {
	Send(ctx context.Context, destination, plaintext string, kind Kind) error
}

// Issuer orchestrates generator, hasher, rate limiter, and store to (re)issue
// a secret, handing the plaintext to the dispatcher exactly once. Concurrent
// issuance for the same entity serializes on the store's compare-and-swap so
// exactly one plaintext is live per entity at any instant.
type Issuer struct {
	store      Store
	gen        Generator
	hasher     Hasher
	dispatcher Dispatcher
	clk        clock.Clock

	verificationTTL time.Duration
	resendCooldown  time.Duration
}

// NewIssuer returns an Issuer. verificationTTL bounds verification codes
// (access keys never expire by time); resendCooldown throttles verification
// resends (access-key regeneration is not throttled).
func NewIssuer(store Store, gen Generator, hasher Hasher, dispatcher Dispatcher, clk clock.Clock, verificationTTL, resendCooldown time.Duration) *Issuer {
	return &Issuer{
		store:           store,
		gen:             gen,
		hasher:          hasher,
		dispatcher:      dispatcher,
		clk:             clk,
		verificationTTL: verificationTTL,
		resendCooldown:  resendCooldown,
	}
}

func (i *Issuer) limiter(kind Kind) RateLimiter {
	if kind == KindVerificationCode {
		return RateLimiter{Cooldown: i.resendCooldown}
	}
	return RateLimiter{}
}

// Issue generates a new secret for the entity, overwrites the stored record in
// a single compare-and-swap write (invalidating any previous secret), and
// dispatches the plaintext to destination. The plaintext is returned for the
// caller's error handling only and is not retained.
//
// Returns *RateLimitedError inside the cooldown window. A lost write race is
// retried once; the retry observes the winner's last_sent_at and is rejected
// by the limiter. If dispatch fails the credential stays committed and the
// error wraps ErrDeliveryFailed.
func (i *Issuer) Issue(ctx context.Context, ref Ref, kind Kind, destination string) (string, error) {
	plaintext, err := i.writeNew(ctx, ref, kind)
	if err != nil {
		return "", err
	}
	if i.dispatcher != nil {
		if err := i.dispatcher.Send(ctx, destination, plaintext, kind); err != nil {
			return plaintext, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
		}
	}
	return plaintext, nil
}

// Ensure issues a secret only if the entity has none, with the same atomicity
// as Issue. Replaces the old generate-on-first-view behavior: repeated calls
// are idempotent and never supersede an existing secret. The returned bool
// reports whether a new secret was issued.
func (i *Issuer) Ensure(ctx context.Context, ref Ref, kind Kind, destination string) (string, bool, error) {
	rec, err := i.store.Read(ctx, ref)
	if err != nil {
		return "", false, err
	}
	if rec != nil && rec.Hash != "" {
		return "", false, nil
	}
	plaintext, err := i.Issue(ctx, ref, kind, destination)
	if err != nil && !errors.Is(err, ErrDeliveryFailed) {
		// A concurrent Ensure may have won the race; that satisfies the
		// idempotency contract.
		if errors.Is(err, ErrConflict) {
			return "", false, nil
		}
		return "", false, err
	}
	return plaintext, true, err
}

func (i *Issuer) writeNew(ctx context.Context, ref Ref, kind Kind) (string, error) {
	limiter := i.limiter(kind)
	for attempt := 0; attempt < 2; attempt++ {
		rec, err := i.store.Read(ctx, ref)
		if err != nil {
			return "", err
		}
		var last *time.Time
		if rec != nil {
			last = rec.LastSentAt
		}
		now := i.clk.Now()
		if !limiter.Allow(last, now) {
			return "", &RateLimitedError{RetryAfter: limiter.RetryAfter(last, now)}
		}
		plaintext, err := i.gen.Generate(kind)
		if err != nil {
			return "", err
		}
		hash, err := i.hasher.Hash([]byte(plaintext))
		if err != nil {
			return "", err
		}
		newRec := Record{Hash: hash, LastSentAt: &now}
		if kind == KindVerificationCode {
			exp := now.Add(i.verificationTTL)
			newRec.ExpiresAt = &exp
		}
		err = i.store.Write(ctx, ref, newRec, last)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return "", err
		}
		return plaintext, nil
	}
	return "", ErrConflict
}
