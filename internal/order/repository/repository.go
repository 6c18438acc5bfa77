package repository

import (
	"context"
	"time"

	"zetsuserv/internal/credential"
	"zetsuserv/internal/order/domain"
)

// Repository is the order persistence interface. Credential operations follow
// the core's atomicity contract: WriteCredential is a compare-and-swap on
// key_last_sent_at so concurrent regenerations serialize and exactly one
// access key is live per order. ReadCredential returns (nil, nil) for an
// unknown or empty id; only database failures are errors.
type Repository interface {
	Create(ctx context.Context, o *domain.Order, steps []domain.Step) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetBySeq(ctx context.Context, seq int64) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status) error

	ListSteps(ctx context.Context, orderID string) ([]domain.Step, error)
	SaveSteps(ctx context.Context, orderID string, steps []domain.Step) error

	ReadCredential(ctx context.Context, id string) (*credential.Record, error)
	WriteCredential(ctx context.Context, id string, rec credential.Record, prevLastSentAt *time.Time) error
}
