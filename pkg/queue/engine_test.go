package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/converge/converge/pkg/authz"
	"github.com/converge/converge/pkg/eventlog"
	"github.com/converge/converge/pkg/models"
	"github.com/converge/converge/pkg/policy"
	"github.com/converge/converge/pkg/store"
	"github.com/converge/converge/pkg/store/sqlite"
)

// fakeSCM simulates a deterministic, always-mergeable SCM backend for S1.
type fakeSCM struct{ mergeCount int }

func (f *fakeSCM) SimulateMerge(ctx context.Context, source, target string) (models.Simulation, error) {
	return models.Simulation{Mergeable: true, FilesChanged: []string{"a.py"}, Source: source, Target: target}, nil
}

func (f *fakeSCM) ExecuteMergeSafe(ctx context.Context, source, target string) (string, error) {
	f.mergeCount++
	return "deadbeef", nil
}

func (f *fakeSCM) LogEntries(ctx context.Context, max int) ([]models.LogEntry, error) {
	return nil, nil
}

func newHarness(t *testing.T) (*Engine, store.Store) {
	t.Helper()
	s, err := store.Open(context.Background(), sqlite.New(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	log := eventlog.New(s)
	eng := New(s, log, &fakeSCM{}, policy.New(), authz.New(s, log, nil), nil)
	return eng, s
}

// TestProcessQueueS1MergesCleanIntent matches spec.md scenario S1.
func TestProcessQueueS1MergesCleanIntent(t *testing.T) {
	ctx := context.Background()
	eng, s := newHarness(t)

	_, err := s.UpsertIntent(ctx, models.Intent{
		ID:     "I",
		Source: "feature",
		Target: "main",
		Status: models.StatusReady,
	})
	require.NoError(t, err)

	results, err := eng.ProcessQueue(ctx, "trace-s1", ProcessOptions{AutoConfirm: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "merged", results[0].Decision)

	intent, err := s.GetIntent(ctx, "I")
	require.NoError(t, err)
	assert.Equal(t, models.StatusMerged, intent.Status)
}

// TestProcessQueueS2BlocksOnUnmetDependency matches spec.md scenario S2.
func TestProcessQueueS2BlocksOnUnmetDependency(t *testing.T) {
	ctx := context.Background()
	eng, s := newHarness(t)

	_, err := s.UpsertIntent(ctx, models.Intent{ID: "A", Source: "a", Target: "main", Status: models.StatusReady})
	require.NoError(t, err)
	_, err = s.UpsertIntent(ctx, models.Intent{
		ID: "B", Source: "b", Target: "main", Status: models.StatusReady, Dependencies: []string{"A"},
	})
	require.NoError(t, err)

	results, err := eng.ProcessQueue(ctx, "trace-s2", ProcessOptions{AutoConfirm: true})
	require.NoError(t, err)

	var bResult *ProcessResult
	for i := range results {
		if results[i].IntentID == "B" {
			bResult = &results[i]
		}
	}
	require.NotNil(t, bResult)
	assert.Equal(t, "dependency_blocked", bResult.Decision)

	b, err := s.GetIntent(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, b.Status)
}

func TestProcessQueueEmptyWhenLockHeld(t *testing.T) {
	ctx := context.Background()
	eng, s := newHarness(t)

	_, err := s.UpsertIntent(ctx, models.Intent{ID: "I", Source: "a", Target: "main", Status: models.StatusReady})
	require.NoError(t, err)

	acquired, err := s.Acquire(ctx, DefaultLockName, "other-holder", DefaultLockTTL)
	require.NoError(t, err)
	require.True(t, acquired)

	results, err := eng.ProcessQueue(ctx, "trace", ProcessOptions{AutoConfirm: true})
	require.NoError(t, err)
	assert.Nil(t, results)
}
