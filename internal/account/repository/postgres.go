package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"zetsuserv/internal/account/domain"
	"zetsuserv/internal/credential"
)

// PostgresRepository persists accounts using the given db.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an account repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, email, name, password_hash, verified,
	verification_code_hash, verification_expires_at, last_code_sent_at,
	created_at, updated_at`

func scanAccount(row *sql.Row) (*domain.Account, error) {
	var a domain.Account
	var codeHash sql.NullString
	var expiresAt, lastSentAt sql.NullTime
	err := row.Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.Verified,
		&codeHash, &expiresAt, &lastSentAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.VerificationCodeHash = codeHash.String
	a.VerificationExpiresAt = nullTimeToPtr(expiresAt)
	a.LastCodeSentAt = nullTimeToPtr(lastSentAt)
	return &a, nil
}

// GetByID returns the account for id, or nil if not found.
// It returns an error only for database failures, not for missing rows. A
// string that is not a uuid cannot name an account; querying with it would
// fail at encode time.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// GetByEmail returns the account for email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	return scanAccount(row)
}

// Create persists the account. The account must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, name, password_hash, verified,
			verification_code_hash, verification_expires_at, last_code_sent_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.Email, a.Name, a.PasswordHash, a.Verified,
		emptyToNullString(a.VerificationCodeHash), timeToNullTime(a.VerificationExpiresAt),
		timeToNullTime(a.LastCodeSentAt), a.CreatedAt, a.UpdatedAt)
	return err
}

// ReadCredential returns the account's verification credential record, or nil
// if the account does not exist. An account without a code yields a record
// with an empty hash. An empty id means "no entity" and must not reach the
// database: it is not a valid uuid, and the gate reads with a blank id on the
// unknown-email path so the timing pad still runs.
func (r *PostgresRepository) ReadCredential(ctx context.Context, id string) (*credential.Record, error) {
	if id == "" {
		return nil, nil
	}
	var codeHash sql.NullString
	var expiresAt, lastSentAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT verification_code_hash, verification_expires_at, last_code_sent_at
		FROM accounts WHERE id = $1`, id).
		Scan(&codeHash, &expiresAt, &lastSentAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &credential.Record{
		Hash:       codeHash.String,
		ExpiresAt:  nullTimeToPtr(expiresAt),
		LastSentAt: nullTimeToPtr(lastSentAt),
	}, nil
}

// WriteCredential replaces the verification credential in one statement,
// compare-and-swapping on the previous last_code_sent_at. Returns
// credential.ErrConflict when a concurrent issuance won the race.
func (r *PostgresRepository) WriteCredential(ctx context.Context, id string, rec credential.Record, prevLastSentAt *time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts
		SET verification_code_hash = $2, verification_expires_at = $3,
			last_code_sent_at = $4, updated_at = now()
		WHERE id = $1 AND last_code_sent_at IS NOT DISTINCT FROM $5`,
		id, emptyToNullString(rec.Hash), timeToNullTime(rec.ExpiresAt),
		timeToNullTime(rec.LastSentAt), timeToNullTime(prevLastSentAt))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return credential.ErrConflict
	}
	return nil
}

// ConsumeCredential clears the verification code and marks the account
// verified, conditioned on the stored hash still being expectedHash. Returns
// credential.ErrConflict if the code was already consumed or replaced.
func (r *PostgresRepository) ConsumeCredential(ctx context.Context, id, expectedHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts
		SET verified = TRUE, verification_code_hash = NULL,
			verification_expires_at = NULL, updated_at = now()
		WHERE id = $1 AND verification_code_hash = $2`,
		id, expectedHash)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return credential.ErrConflict
	}
	return nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}

func emptyToNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
