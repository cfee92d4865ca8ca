package service

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Events emitted by the services.
const (
	EventDocumentCreated   = "document:created"
	EventDocumentRenamed   = "document:renamed"
	EventDocumentDeleted   = "document:deleted"
	EventDocumentImported  = "document:imported"
	EventDocumentPublished = "document:published"
	EventBlockCreated      = "block:created"
	EventBlockContentSaved = "block:content-saved"
	EventBlockRestored     = "block:restored"
	EventBlockDeleted      = "block:deleted"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter: decouples services from their transport
// ─────────────────────────────────────────────────────────────

// EventEmitter notifies listeners about changes made by a service.
// Services receive this interface instead of a concrete transport,
// which makes them independently testable with a mock emitter.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// LogEmitter writes every event to a logger at debug level.
type LogEmitter struct {
	Logger *zap.Logger
}

func (e LogEmitter) Emit(_ context.Context, event string, data any) {
	if e.Logger == nil {
		return
	}
	e.Logger.Debug("event", zap.String("event", event), zap.Any("data", data))
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
// It is safe for concurrent use.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Names returns the recorded event names in order.
func (m *MockEmitter) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.Events))
	for i, e := range m.Events {
		names[i] = e.Event
	}
	return names
}
