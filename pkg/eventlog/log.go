package eventlog

import (
	"context"

	"github.com/google/uuid"

	"github.com/converge/converge/pkg/models"
	"github.com/converge/converge/pkg/store"
)

// Log wraps a store.Store with typed, trace-id-bearing event emission.
// Every code path that records something that happened goes through Log
// rather than calling store.AppendEvent directly, so every event in the
// log carries a trace id usable to correlate a request across modules.
type Log struct {
	store store.Store
}

// New returns a Log over the given store.
func New(s store.Store) *Log {
	return &Log{store: s}
}

// NewTraceID mints a fresh correlation id for a request/operation that
// will emit one or more events.
func NewTraceID() string {
	return uuid.NewString()
}

// Emit appends an event of the given type with payload, stamping the
// trace id and identity fields callers pass through ctx-free parameters
// rather than threading a context key, matching tarsy's explicit-args
// style for its event emission helpers.
func (l *Log) Emit(ctx context.Context, eventType, traceID string, intentID, agentID, tenantID *string, payload map[string]any) (models.Event, error) {
	if traceID == "" {
		traceID = NewTraceID()
	}
	return l.store.AppendEvent(ctx, models.Event{
		EventType: eventType,
		TraceID:   traceID,
		IntentID:  intentID,
		AgentID:   agentID,
		TenantID:  tenantID,
		Payload:   payload,
	})
}

// EmitSimple emits an event scoped only to an intent, for the common case
// of a single-intent lifecycle transition.
func (l *Log) EmitSimple(ctx context.Context, eventType, traceID, intentID string, payload map[string]any) (models.Event, error) {
	return l.Emit(ctx, eventType, traceID, &intentID, nil, nil, payload)
}
