package repository

import (
	"context"
	"time"

	"zetsuserv/internal/account/domain"
	"zetsuserv/internal/credential"
)

// Repository is the account persistence interface. Credential reads and
// writes follow the core's atomicity contract: WriteCredential is a
// compare-and-swap on last_code_sent_at, ConsumeCredential clears the code
// and flips verified in one statement. ReadCredential returns (nil, nil) for
// an unknown or empty id; only database failures are errors.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error

	ReadCredential(ctx context.Context, id string) (*credential.Record, error)
	WriteCredential(ctx context.Context, id string, rec credential.Record, prevLastSentAt *time.Time) error
	ConsumeCredential(ctx context.Context, id, expectedHash string) error
}
