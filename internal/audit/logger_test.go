package audit

import (
	"context"
	"errors"
	"testing"

	"zetsuserv/internal/audit/domain"
)

// mockAuditRepo implements the audit repository interface for tests.
type mockAuditRepo struct {
	entries   []*domain.AuditLog
	createErr error
}

func (m *mockAuditRepo) GetByID(ctx context.Context, id string) (*domain.AuditLog, error) {
	return nil, nil
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListByResource(ctx context.Context, resource string, limit, offset int32) ([]*domain.AuditLog, error) {
	return nil, nil
}

func TestLogger_LogEvent_Success(t *testing.T) {
	repo := &mockAuditRepo{}
	ipExtractor := func(ctx context.Context) string {
		return "192.168.1.1"
	}
	logger := NewLogger(repo, ipExtractor)
	ctx := context.Background()

	logger.LogEvent(ctx, "admin", "access_key_regenerated", "order/o-1", "seq=1")

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.Actor != "admin" {
		t.Errorf("actor = %q, want %q", entry.Actor, "admin")
	}
	if entry.Action != "access_key_regenerated" {
		t.Errorf("action = %q, want %q", entry.Action, "access_key_regenerated")
	}
	if entry.Resource != "order/o-1" {
		t.Errorf("resource = %q, want %q", entry.Resource, "order/o-1")
	}
	if entry.IP != "192.168.1.1" {
		t.Errorf("ip = %q, want %q", entry.IP, "192.168.1.1")
	}
	if entry.ID == "" {
		t.Error("expected non-empty id")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestLogger_LogEvent_EmptyActorUsesSentinel(t *testing.T) {
	repo := &mockAuditRepo{}
	logger := NewLogger(repo, nil)

	logger.LogEvent(context.Background(), "", "track_auth_failed", "order/o-2", "")

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	if got := repo.entries[0].Actor; got != SentinelActor {
		t.Errorf("actor = %q, want %q", got, SentinelActor)
	}
	if got := repo.entries[0].IP; got != "unknown" {
		t.Errorf("ip = %q, want %q", got, "unknown")
	}
}

func TestLogger_LogEvent_RepoErrorDoesNotPanic(t *testing.T) {
	repo := &mockAuditRepo{createErr: errors.New("db down")}
	logger := NewLogger(repo, nil)

	// Best-effort: must not panic or surface the error.
	logger.LogEvent(context.Background(), "admin", "order_created", "order/o-3", "")

	if len(repo.entries) != 0 {
		t.Fatalf("expected 0 entries, got %d", len(repo.entries))
	}
}

func TestLogger_LogEvent_NilRepoIsNoop(t *testing.T) {
	logger := NewLogger(nil, nil)
	logger.LogEvent(context.Background(), "admin", "order_created", "order/o-4", "")
}
