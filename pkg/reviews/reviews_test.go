package reviews

import (
	"context"
	"testing"
	"time"

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

func TestRequestReviewDerivesSLAFromRiskLevel(t *testing.T) {
	s := newTestStore(t)
	m := New(s, eventlog.New(s))
	ctx := context.Background()

	intent := models.Intent{ID: "intent-1", RiskLevel: models.RiskCritical}
	before := time.Now().UTC()
	task, err := m.RequestReview(ctx, "trace-1", intent, "high_risk", nil, 1)
	require.NoError(t, err)

	assert.Equal(t, models.ReviewPending, task.Status)
	assert.WithinDuration(t, before.Add(8*time.Hour), task.SLADeadline, time.Minute)
}

func TestRequestReviewWithReviewerStartsAssigned(t *testing.T) {
	s := newTestStore(t)
	m := New(s, eventlog.New(s))
	ctx := context.Background()

	reviewer := "alice"
	intent := models.Intent{ID: "intent-1", RiskLevel: models.RiskLow}
	task, err := m.RequestReview(ctx, "trace-1", intent, "manual", &reviewer, 1)
	require.NoError(t, err)

	assert.Equal(t, models.ReviewAssigned, task.Status)
	require.NotNil(t, task.Reviewer)
	assert.Equal(t, "alice", *task.Reviewer)
}

func TestAssignThenCompleteTransitions(t *testing.T) {
	s := newTestStore(t)
	m := New(s, eventlog.New(s))
	ctx := context.Background()

	intent := models.Intent{ID: "intent-1", RiskLevel: models.RiskMedium}
	task, err := m.RequestReview(ctx, "trace-1", intent, "manual", nil, 1)
	require.NoError(t, err)

	require.NoError(t, m.Assign(ctx, "trace-2", task.ID, "bob"))
	got, err := s.GetReviewTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewAssigned, got.Status)
	assert.Equal(t, "bob", *got.Reviewer)

	require.NoError(t, m.Complete(ctx, "trace-3", task.ID, "approved", "looks good"))
	got, err = s.GetReviewTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewCompleted, got.Status)
	assert.Equal(t, "approved", *got.Resolution)
}

func TestCheckSLABreachesFindsOverdueTask(t *testing.T) {
	s := newTestStore(t)
	m := New(s, eventlog.New(s))
	ctx := context.Background()

	overdue := models.ReviewTask{
		ID:          "review-overdue",
		IntentID:    "intent-1",
		Status:      models.ReviewPending,
		Priority:    1,
		CreatedAt:   time.Now().UTC().Add(-48 * time.Hour),
		SLADeadline: time.Now().UTC().Add(-1 * time.Hour),
		Trigger:     "manual",
	}
	require.NoError(t, s.CreateReviewTask(ctx, overdue))

	breached, err := m.CheckSLABreaches(ctx, "trace-1")
	require.NoError(t, err)
	require.Len(t, breached, 1)
	assert.Equal(t, "review-overdue", breached[0].ID)
}

func TestCheckSLABreachesIgnoresTaskWithinDeadline(t *testing.T) {
	s := newTestStore(t)
	m := New(s, eventlog.New(s))
	ctx := context.Background()

	onTime := models.ReviewTask{
		ID:          "review-ontime",
		IntentID:    "intent-1",
		Status:      models.ReviewAssigned,
		Priority:    1,
		CreatedAt:   time.Now().UTC(),
		SLADeadline: time.Now().UTC().Add(24 * time.Hour),
		Trigger:     "manual",
	}
	require.NoError(t, s.CreateReviewTask(ctx, onTime))

	breached, err := m.CheckSLABreaches(ctx, "trace-1")
	require.NoError(t, err)
	assert.Empty(t, breached)
}
