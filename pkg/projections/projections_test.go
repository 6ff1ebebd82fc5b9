package projections

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/converge/converge/pkg/models"
	"github.com/converge/converge/pkg/store"
	"github.com/converge/converge/pkg/store/sqlite"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), sqlite.New(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestQueueStateOrdersByPriorityThenID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	r := New(s)

	_, err := s.UpsertIntent(ctx, models.Intent{ID: "b", Source: "x", Target: "main", Status: models.StatusReady, Priority: 1})
	require.NoError(t, err)
	_, err = s.UpsertIntent(ctx, models.Intent{ID: "a", Source: "x", Target: "main", Status: models.StatusReady, Priority: 1})
	require.NoError(t, err)
	_, err = s.UpsertIntent(ctx, models.Intent{ID: "c", Source: "x", Target: "main", Status: models.StatusQueued, Priority: 0})
	require.NoError(t, err)

	state, err := r.QueueState(ctx, nil)
	require.NoError(t, err)
	require.Len(t, state.Pending, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{state.Pending[0].ID, state.Pending[1].ID, state.Pending[2].ID})
	assert.Equal(t, 2, state.CountsByStatus[models.StatusReady])
	assert.Equal(t, 1, state.CountsByStatus[models.StatusQueued])
}

func TestRepoHealthNoEventsDefaultsToHighMergeableRate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	r := New(s)

	health, err := r.RepoHealth(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, health.MergeableRate)
	assert.Equal(t, models.HealthGreen, health.Status)
}

func TestComplianceReportPassesWithNoActivity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	r := New(s)

	report, err := r.ComplianceReport(ctx, nil)
	require.NoError(t, err)
	assert.True(t, report.Passing)
	for _, c := range report.Checks {
		assert.True(t, c.Passed, c.Name)
	}
}

func TestVerificationDebtZeroWhenIdle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	r := New(s)

	debt, err := r.VerificationDebt(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, debt.Score)
	assert.Equal(t, models.HealthGreen, debt.Status)
}

func TestPredictionsNoSignalsWhenQuiet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	r := New(s)

	predictions, err := r.Predictions(ctx, nil)
	require.NoError(t, err)
	assert.False(t, predictions.RisingConflictRate)
	assert.False(t, predictions.QueueStalling)
	assert.False(t, predictions.HighRejectionRate)
}

func TestChangeHealthDefaultsMergeableWithoutSimulation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	r := New(s)

	_, err := s.UpsertIntent(ctx, models.Intent{ID: "i1", Source: "x", Target: "main", Status: models.StatusReady})
	require.NoError(t, err)

	health, err := r.ChangeHealth(ctx, "i1")
	require.NoError(t, err)
	assert.True(t, health.Mergeable)
	assert.Equal(t, "i1", health.IntentID)
}
