package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*Event
	emitErr error
	delay   time.Duration
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *Event) error {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.delay):
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.emitErr
}

func (m *mockEventEmitter) getEvents() []*Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events
}

func TestEmitAsync_NilEmitter(t *testing.T) {
	// Should not panic
	EmitAsync(nil, context.Background(), &Event{EventType: "test"})
}

func TestEmitAsync_NilEvent(t *testing.T) {
	emitter := &mockEventEmitter{}

	EmitAsync(emitter, context.Background(), nil)

	time.Sleep(10 * time.Millisecond)
	if got := len(emitter.getEvents()); got != 0 {
		t.Errorf("expected 0 events, got %d", got)
	}
}

func TestEmitAsync_SuccessfulEmit(t *testing.T) {
	emitter := &mockEventEmitter{}
	event := &Event{
		EventType: "track_auth_succeeded",
		Source:    "http",
		OrderCode: "000001-8664FD",
		SessionID: "sess-1",
	}

	EmitAsync(emitter, context.Background(), event)

	time.Sleep(100 * time.Millisecond)
	events := emitter.getEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].EventType != "track_auth_succeeded" {
		t.Errorf("event type = %q", events[0].EventType)
	}
	if events[0].OrderCode != "000001-8664FD" {
		t.Errorf("order_code = %q", events[0].OrderCode)
	}
}

func TestEmitAsync_UsesBackgroundContext(t *testing.T) {
	emitter := &mockEventEmitter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // request context is already gone

	EmitAsync(emitter, ctx, &Event{EventType: "test"})

	time.Sleep(100 * time.Millisecond)
	if got := len(emitter.getEvents()); got != 1 {
		t.Errorf("expected 1 event (context.Background used), got %d", got)
	}
}

func TestEmitAsync_ErrorHandling(t *testing.T) {
	emitter := &mockEventEmitter{emitErr: context.DeadlineExceeded}

	// Should not panic on error; it is logged and swallowed.
	EmitAsync(emitter, context.Background(), &Event{EventType: "test"})
	time.Sleep(100 * time.Millisecond)
}

func TestEmitAsync_ConcurrentAccess(t *testing.T) {
	emitter := &mockEventEmitter{}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			EmitAsync(emitter, context.Background(), &Event{EventType: "test"})
		}()
	}
	wg.Wait()

	time.Sleep(200 * time.Millisecond)
	if got := len(emitter.getEvents()); got != 10 {
		t.Errorf("expected 10 events, got %d", got)
	}
}
