// Package telemetry emits best-effort application events to OpenTelemetry.
package telemetry

import (
	"context"
	"time"
)

// Event is one telemetry event. Fields that would identify a secret are never
// present: events carry outcomes (issued, verified, rejected), not plaintext.
type Event struct {
	EventType string
	Source    string
	OrderCode string
	AccountID string
	SessionID string
	Metadata  []byte
	CreatedAt time.Time
}

// EventEmitter emits telemetry events (e.g. to OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}
