package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/converge/converge/pkg/eventlog"
	"github.com/converge/converge/pkg/models"
	"github.com/converge/converge/pkg/store/sqlite"
	storepkg "github.com/converge/converge/pkg/store"
)

func newTestStore(t *testing.T) storepkg.Store {
	t.Helper()
	s, err := storepkg.Open(context.Background(), sqlite.New(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestAuthorizeS6DeniesMergeWithoutApproval matches spec.md scenario S6:
// an agent whose allow_actions is only ["analyze"] calling authorize for
// "merge" with zero human approvals is denied for both reasons.
func TestAuthorizeS6DeniesMergeWithoutApproval(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	log := eventlog.New(s)

	err := s.UpsertAgentPolicy(ctx, models.AgentPolicy{
		AgentID:              "agent-1",
		AllowActions:         []string{"analyze"},
		RequireHumanApproval: true,
	})
	require.NoError(t, err)

	_, err = s.UpsertIntent(ctx, models.Intent{ID: "intent-1", Source: "feature", Target: "main"})
	require.NoError(t, err)

	a := New(s, log, nil)
	decision, err := a.Authorize(ctx, "trace-1", "agent-1", "merge", "intent-1", nil, 0)
	require.NoError(t, err)

	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reasons, "Action 'merge' not in allowed actions: [analyze]")
	assert.Contains(t, decision.Reasons, "Human approval required but none provided")
}

func TestAuthorizeAllowsWithinLimits(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	log := eventlog.New(s)

	err := s.UpsertAgentPolicy(ctx, models.AgentPolicy{
		AgentID:          "agent-2",
		AllowActions:     []string{"merge"},
		MaxRiskScore:     80,
		MaxBlastSeverity: "high",
	})
	require.NoError(t, err)

	_, err = s.UpsertIntent(ctx, models.Intent{ID: "intent-2", Source: "feature", Target: "main"})
	require.NoError(t, err)

	_, err = s.AppendEvent(ctx, models.Event{
		EventType: eventlog.TypeRiskEvaluated,
		IntentID:  strPtr("intent-2"),
		Payload:   map[string]any{"risk_score": 40.0, "damage_score": 10.0},
	})
	require.NoError(t, err)

	a := New(s, log, nil)
	decision, err := a.Authorize(ctx, "trace-2", "agent-2", "merge", "intent-2", nil, 0)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestCheckSoDDeniesOwnedFile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	log := eventlog.New(s)

	err := s.UpsertOwnership(ctx, models.OwnershipConfig{
		Rules: []models.OwnershipRule{{Glob: "pkg/core/*.go", Owners: []string{"agent-3"}}},
	})
	require.NoError(t, err)

	a := New(s, log, nil)
	ok, err := a.CheckSoD(ctx, "trace-3", "agent-3", "approve", []string{"pkg/core/a.go"}, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckSoDIgnoresNonApprovalActions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	log := eventlog.New(s)
	a := New(s, log, nil)
	ok, err := a.CheckSoD(ctx, "trace-4", "agent-4", "analyze", []string{"pkg/core/a.go"}, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}
