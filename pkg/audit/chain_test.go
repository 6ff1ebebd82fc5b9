package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/converge/converge/pkg/eventlog"
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

func TestVerifyBeforeInitializeReportsUninitialized(t *testing.T) {
	s := newTestStore(t)
	log := eventlog.New(s)
	c := New(s, log)

	result, err := c.Verify(context.Background(), "trace-1")
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.Equal(t, "chain not initialized", result.Reason)
}

func TestInitializeThenVerifyPasses(t *testing.T) {
	s := newTestStore(t)
	log := eventlog.New(s)
	ctx := context.Background()

	_, err := log.EmitSimple(ctx, eventlog.TypeIntentCreated, "trace-1", "intent-1", map[string]any{"source": "feature"})
	require.NoError(t, err)

	c := New(s, log)
	state, err := c.Initialize(ctx, "trace-2")
	require.NoError(t, err)
	assert.NotEmpty(t, state.LastHash)
	assert.Equal(t, 1, state.EventCount)

	result, err := c.Verify(ctx, "trace-3")
	require.NoError(t, err)
	assert.True(t, result.Verified)
}

func TestVerifyDetectsAppendedEventAfterInitialize(t *testing.T) {
	s := newTestStore(t)
	log := eventlog.New(s)
	ctx := context.Background()

	_, err := log.EmitSimple(ctx, eventlog.TypeIntentCreated, "trace-1", "intent-1", nil)
	require.NoError(t, err)

	c := New(s, log)
	_, err = c.Initialize(ctx, "trace-2")
	require.NoError(t, err)

	// Directly appending another event without re-initializing the chain
	// simulates an out-of-band log mutation the chain did not anchor.
	_, err = s.AppendEvent(ctx, models.Event{EventType: eventlog.TypeIntentMerged, TraceID: "trace-4"})
	require.NoError(t, err)

	result, err := c.Verify(ctx, "trace-3")
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.Equal(t, "hash or count mismatch", result.Reason)
}
