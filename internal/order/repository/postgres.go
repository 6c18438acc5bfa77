package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"zetsuserv/internal/credential"
	"zetsuserv/internal/order/domain"
)

// PostgresRepository persists orders and their progress steps using the
// given db.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an order repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const orderColumns = `id, seq, client_name, client_email, phone, project_title,
	project_type, pages_required, budget, details, status,
	access_key_hash, access_key_issued_at, key_last_sent_at,
	created_at, updated_at`

func scanOrder(row *sql.Row) (*domain.Order, error) {
	var o domain.Order
	var keyHash sql.NullString
	var issuedAt, lastSentAt sql.NullTime
	err := row.Scan(&o.ID, &o.Seq, &o.ClientName, &o.ClientEmail, &o.Phone,
		&o.ProjectTitle, &o.ProjectType, &o.PagesRequired, &o.Budget, &o.Details,
		&o.Status, &keyHash, &issuedAt, &lastSentAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	o.AccessKeyHash = keyHash.String
	o.AccessKeyIssuedAt = nullTimeToPtr(issuedAt)
	o.KeyLastSentAt = nullTimeToPtr(lastSentAt)
	return &o, nil
}

// Create persists the order and its initial progress steps in one
// transaction. The order must have ID set; Seq is assigned by the database
// and written back.
func (r *PostgresRepository) Create(ctx context.Context, o *domain.Order, steps []domain.Step) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO orders (id, client_name, client_email, phone, project_title,
			project_type, pages_required, budget, details, status,
			access_key_hash, access_key_issued_at, key_last_sent_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING seq`,
		o.ID, o.ClientName, o.ClientEmail, o.Phone, o.ProjectTitle,
		o.ProjectType, o.PagesRequired, o.Budget, o.Details, o.Status,
		emptyToNullString(o.AccessKeyHash), timeToNullTime(o.AccessKeyIssuedAt),
		timeToNullTime(o.KeyLastSentAt), o.CreatedAt, o.UpdatedAt).
		Scan(&o.Seq)
	if err != nil {
		return err
	}
	for _, s := range steps {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_progress_steps (order_id, step_number, name,
				description, status, started_at, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			o.ID, s.Number, s.Name, s.Description, s.Status,
			timeToNullTime(s.StartedAt), timeToNullTime(s.CompletedAt))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetByID returns the order for id, or nil if not found. A string that is not
// a uuid cannot name an order; querying with it would fail at encode time.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// GetBySeq returns the order for the public sequence number, or nil if not
// found.
func (r *PostgresRepository) GetBySeq(ctx context.Context, seq int64) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE seq = $1`, seq)
	return scanOrder(row)
}

// UpdateStatus sets the order's lifecycle status.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	return err
}

// ListSteps returns the order's progress steps in step order.
func (r *PostgresRepository) ListSteps(ctx context.Context, orderID string) ([]domain.Step, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT step_number, name, description, status, started_at, completed_at
		FROM order_progress_steps WHERE order_id = $1 ORDER BY step_number`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var steps []domain.Step
	for rows.Next() {
		var s domain.Step
		var startedAt, completedAt sql.NullTime
		if err := rows.Scan(&s.Number, &s.Name, &s.Description, &s.Status, &startedAt, &completedAt); err != nil {
			return nil, err
		}
		s.StartedAt = nullTimeToPtr(startedAt)
		s.CompletedAt = nullTimeToPtr(completedAt)
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

// SaveSteps writes the given steps back in one transaction.
func (r *PostgresRepository) SaveSteps(ctx context.Context, orderID string, steps []domain.Step) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, s := range steps {
		_, err = tx.ExecContext(ctx,
			`UPDATE order_progress_steps
			SET status = $3, started_at = $4, completed_at = $5
			WHERE order_id = $1 AND step_number = $2`,
			orderID, s.Number, s.Status, timeToNullTime(s.StartedAt), timeToNullTime(s.CompletedAt))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ReadCredential returns the order's access-key credential record, or nil if
// the order does not exist. An order without a key yields a record with an
// empty hash. An empty id means "no entity" and must not reach the database:
// it is not a valid uuid, and the gate reads with a blank id on the
// unknown-code path so the timing pad still runs.
func (r *PostgresRepository) ReadCredential(ctx context.Context, id string) (*credential.Record, error) {
	if id == "" {
		return nil, nil
	}
	var keyHash sql.NullString
	var lastSentAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT access_key_hash, key_last_sent_at FROM orders WHERE id = $1`, id).
		Scan(&keyHash, &lastSentAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &credential.Record{
		Hash:       keyHash.String,
		LastSentAt: nullTimeToPtr(lastSentAt),
	}, nil
}

// WriteCredential replaces the access-key credential in one statement,
// compare-and-swapping on the previous key_last_sent_at. Returns
// credential.ErrConflict when a concurrent regeneration won the race.
func (r *PostgresRepository) WriteCredential(ctx context.Context, id string, rec credential.Record, prevLastSentAt *time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders
		SET access_key_hash = $2, access_key_issued_at = $3,
			key_last_sent_at = $3, updated_at = now()
		WHERE id = $1 AND key_last_sent_at IS NOT DISTINCT FROM $4`,
		id, emptyToNullString(rec.Hash), timeToNullTime(rec.LastSentAt),
		timeToNullTime(prevLastSentAt))
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
