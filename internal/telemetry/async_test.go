package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// mockEmitter implements EventEmitter for tests.
type mockEmitter struct {
	mu     sync.Mutex
	events []*SyncEvent
	err    error
	done   chan struct{}
}

func newMockEmitter(err error) *mockEmitter {
	return &mockEmitter{err: err, done: make(chan struct{}, 1)}
}

func (m *mockEmitter) Emit(_ context.Context, event *SyncEvent) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	m.done <- struct{}{}
	return m.err
}

func TestEmitAsync(t *testing.T) {
	em := newMockEmitter(nil)
	EmitAsync(em, zap.NewNop(), &SyncEvent{ID: "rec_01", EventType: "user.updated", Outcome: "applied"})

	select {
	case <-em.done:
	case <-time.After(2 * time.Second):
		t.Fatal("emit did not run")
	}
	em.mu.Lock()
	defer em.mu.Unlock()
	if len(em.events) != 1 || em.events[0].ID != "rec_01" {
		t.Errorf("events = %+v", em.events)
	}
}

func TestEmitAsync_NilEmitterOrEvent(t *testing.T) {
	// Must not panic and must not start anything.
	EmitAsync(nil, zap.NewNop(), &SyncEvent{ID: "rec_01"})
	EmitAsync(newMockEmitter(nil), zap.NewNop(), nil)
}

func TestEmitAsync_EmitErrorIsSwallowed(t *testing.T) {
	em := newMockEmitter(errors.New("broker down"))
	EmitAsync(em, zap.NewNop(), &SyncEvent{ID: "rec_01"})
	select {
	case <-em.done:
	case <-time.After(2 * time.Second):
		t.Fatal("emit did not run")
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordEvent(context.Background(), "user.updated", "applied")
	m.RecordReconcileRun(context.Background(), 3, 1)
}
