package eventlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/converge/converge/pkg/models"
	storepkg "github.com/converge/converge/pkg/store"
	"github.com/converge/converge/pkg/store/sqlite"
)

func newTestStore(t *testing.T) storepkg.Store {
	t.Helper()
	s, err := storepkg.Open(context.Background(), sqlite.New(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEmitMintsTraceIDWhenBlank(t *testing.T) {
	s := newTestStore(t)
	log := New(s)

	event, err := log.Emit(context.Background(), TypeIntentCreated, "", nil, nil, nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, event.TraceID)
}

func TestEmitPreservesCallerTraceID(t *testing.T) {
	s := newTestStore(t)
	log := New(s)

	event, err := log.Emit(context.Background(), TypeIntentCreated, "trace-123", nil, nil, nil, map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, "trace-123", event.TraceID)
	assert.Equal(t, 1, event.Payload["x"])
}

func TestEmitSimpleScopesToIntent(t *testing.T) {
	s := newTestStore(t)
	log := New(s)

	event, err := log.EmitSimple(context.Background(), TypeIntentCreated, "trace-1", "intent-1", nil)
	require.NoError(t, err)
	require.NotNil(t, event.IntentID)
	assert.Equal(t, "intent-1", *event.IntentID)
	assert.Nil(t, event.AgentID)
	assert.Nil(t, event.TenantID)
}

func TestNewTraceIDProducesDistinctValues(t *testing.T) {
	a := NewTraceID()
	b := NewTraceID()
	assert.NotEqual(t, a, b)
}

func TestQueryEventsReturnsAppendedEvent(t *testing.T) {
	s := newTestStore(t)
	log := New(s)
	ctx := context.Background()

	_, err := log.EmitSimple(ctx, TypeIntentCreated, "trace-1", "intent-1", map[string]any{"source": "feature"})
	require.NoError(t, err)

	events, err := s.QueryEvents(ctx, models.EventFilters{IntentID: strPtr("intent-1")}, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, TypeIntentCreated, events[0].EventType)
}

func strPtr(s string) *string { return &s }
