package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"zetsuserv/internal/telemetry"
)

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil)
	if em == nil {
		t.Fatal("NewEventEmitter(nil) returned nil")
	}
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("noop Emit(ctx, nil): %v", err)
	}
	if err := em.Emit(context.Background(), &telemetry.Event{EventType: "test"}); err != nil {
		t.Errorf("noop Emit(ctx, event): %v", err)
	}
}

func TestEmit_NilEvent_ReturnsNil(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	em := NewEventEmitter(provider)
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(ctx, nil): %v", err)
	}
}

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec otellog.Record
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.rec = rec
}

func TestEmit_AttributeAndBodyMapping(t *testing.T) {
	capture := &recordCapture{}
	em := NewEventEmitterWithLogger(capture)
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	event := &telemetry.Event{
		EventType: "track_auth_failed",
		Source:    "http",
		OrderCode: "000001-8664FD",
		AccountID: "acct-1",
		SessionID: "sess-1",
		Metadata:  []byte(`{"key":"value"}`),
		CreatedAt: created,
	}
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := capture.rec

	if got := rec.Body().AsBytes(); string(got) != `{"key":"value"}` {
		t.Errorf("body = %q, want %q", got, event.Metadata)
	}
	if !rec.Timestamp().Equal(created) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), created)
	}

	attrs := make(map[string]string)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	want := map[string]string{
		"event_type": "track_auth_failed",
		"source":     "http",
		"order_code": "000001-8664FD",
		"account_id": "acct-1",
		"session_id": "sess-1",
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attr %q = %q, want %q", k, attrs[k], v)
		}
	}
}

func TestEmit_ZeroTimestampDefaultsToNow(t *testing.T) {
	capture := &recordCapture{}
	em := NewEventEmitterWithLogger(capture)
	if err := em.Emit(context.Background(), &telemetry.Event{EventType: "test"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if capture.rec.Timestamp().IsZero() {
		t.Error("timestamp should default to now")
	}
}
