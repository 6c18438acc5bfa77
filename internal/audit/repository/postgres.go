package repository

import (
	"context"
	"database/sql"
	"errors"

	"zetsuserv/internal/audit/domain"
)

// PostgresRepository persists audit logs using the given db.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const auditColumns = `id, actor, action, resource, ip, metadata, created_at`

// GetByID returns the audit log for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.AuditLog, error) {
	var a domain.AuditLog
	err := r.db.QueryRowContext(ctx,
		`SELECT `+auditColumns+` FROM audit_logs WHERE id = $1`, id).
		Scan(&a.ID, &a.Actor, &a.Action, &a.Resource, &a.IP, &a.Metadata, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// ListByResource returns audit logs for a resource, newest first.
func (r *PostgresRepository) ListByResource(ctx context.Context, resource string, limit, offset int32) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+auditColumns+` FROM audit_logs
		WHERE resource = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		resource, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []*domain.AuditLog
	for rows.Next() {
		var a domain.AuditLog
		if err := rows.Scan(&a.ID, &a.Actor, &a.Action, &a.Resource, &a.IP, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, &a)
	}
	return logs, rows.Err()
}

// Create persists the audit log entry.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, actor, action, resource, ip, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Actor, a.Action, a.Resource, a.IP, a.Metadata, a.CreatedAt)
	return err
}
