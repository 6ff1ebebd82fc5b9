package intake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/converge/converge/pkg/eventlog"
	"github.com/converge/converge/pkg/models"
	"github.com/converge/converge/pkg/projections"
	"github.com/converge/converge/pkg/store"
	"github.com/converge/converge/pkg/store/sqlite"
)

func newHarness(t *testing.T) (*Controller, store.Store) {
	t.Helper()
	s, err := store.Open(context.Background(), sqlite.New(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	log := eventlog.New(s)
	reader := projections.New(s)
	c := New(reader, s, log, nil, nil, DefaultConfig())
	return c, s
}

func TestAcceptGreenByDefaultAdmits(t *testing.T) {
	ctx := context.Background()
	c, _ := newHarness(t)

	decision, err := c.Accept(ctx, "trace-1")
	require.NoError(t, err)
	assert.Equal(t, DecisionAccept, decision)
}

func TestAcceptPausesOnRedHealth(t *testing.T) {
	ctx := context.Background()
	c, _ := newHarness(t)

	c.mu.Lock()
	c.health.Status = "red"
	c.mu.Unlock()

	decision, err := c.Accept(ctx, "trace-2")
	require.NoError(t, err)
	assert.Equal(t, DecisionPaused, decision)
}

func TestAcceptThrottlesWhenBucketExhausted(t *testing.T) {
	ctx := context.Background()
	c, _ := newHarness(t)
	c.limiter.SetBurst(1)

	first, err := c.Accept(ctx, "trace-3")
	require.NoError(t, err)
	assert.Equal(t, DecisionAccept, first)

	second, err := c.Accept(ctx, "trace-4")
	require.NoError(t, err)
	assert.Equal(t, DecisionThrottled, second)
}

func TestIngestUpsertsIntentAndEmitsCreated(t *testing.T) {
	ctx := context.Background()
	c, s := newHarness(t)

	intent, err := c.Ingest(ctx, "trace-5", models.CreateIntentRequest{
		Source: "feature/x",
		Target: "main",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, intent.ID)
	assert.Equal(t, models.StatusReady, intent.Status)

	stored, err := s.GetIntent(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, "feature/x", stored.Source)

	createdType := eventlog.TypeIntentCreated
	events, err := s.QueryEvents(ctx, models.EventFilters{EventType: &createdType, IntentID: &intent.ID}, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "trace-5", events[0].TraceID)
}
