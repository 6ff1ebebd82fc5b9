package semantic

import (
	"context"
	"math"
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

func TestEmbedIsUnitNorm(t *testing.T) {
	vec := Embed("hello world", DefaultDimension)
	var sumSquares float64
	for _, v := range vec {
		sumSquares += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-6)
}

func TestEmbedDeterministic(t *testing.T) {
	a := Embed("same text", 32)
	b := Embed("same text", 32)
	assert.Equal(t, a, b)
}

func TestEmbedDiffersByText(t *testing.T) {
	a := Embed("text one", 32)
	b := Embed("text two", 32)
	assert.NotEqual(t, a, b)
}

// TestCanonicalChecksumIdempotent matches spec.md universal invariant 7.
func TestCanonicalChecksumIdempotent(t *testing.T) {
	intent := models.Intent{
		ID:     "intent-a",
		Source: "feature",
		Target: "main",
		Semantic: models.Semantic{
			Problem: "fix bug", Objective: "stability",
		},
		Technical:    models.Technical{ScopeHints: []string{"b", "a"}},
		Dependencies: []string{"dep2", "dep1"},
	}
	first := CanonicalChecksum(BuildCanonicalText(intent))
	second := CanonicalChecksum(BuildCanonicalText(intent))
	assert.Equal(t, first, second)
}

// TestCosineSimilarityIdenticalVectorsIsOne: identical embeddings have
// similarity 1.0.
func TestCosineSimilarityIdenticalVectorsIsOne(t *testing.T) {
	v := Embed("identical semantic content", DefaultDimension)
	assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-9)
}

func TestCosineSimilarityOrthogonalIsZero(t *testing.T) {
	a := []float64{1, 0}
	b := []float64{0, 1}
	assert.InDelta(t, 0.0, CosineSimilarity(a, b), 1e-9)
}

func TestScanConflictsPersistsAndEmits(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	log := eventlog.New(s)
	idx := New(s, log)

	a := models.Intent{
		ID: "intent-a", Source: "feature-a", Target: "main",
		Semantic:  models.Semantic{Problem: "fix auth bug", Objective: "stability"},
		Technical: models.Technical{ScopeHints: []string{"auth", "session"}},
	}
	b := models.Intent{
		ID: "intent-b", Source: "feature-b", Target: "main",
		Semantic:  models.Semantic{Problem: "fix auth bug", Objective: "stability"},
		Technical: models.Technical{ScopeHints: []string{"auth", "session"}},
	}
	_, err := idx.IndexIntent(ctx, a)
	require.NoError(t, err)
	_, err = idx.IndexIntent(ctx, b)
	require.NoError(t, err)

	candidates, err := idx.ScanConflicts(ctx, "trace-1", 0, []models.Intent{a, b})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.InDelta(t, 1.0, candidates[0].Similarity, 1e-9)

	rows, err := s.ListConflictCandidates(ctx, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1.0, rows[0].ScopeOverlap)
	assert.True(t, rows[0].TargetOverlap)
	assert.Greater(t, rows[0].CombinedScore, 0.9)

	conflictType := eventlog.TypeSemanticConflictDetected
	events, err := s.QueryEvents(ctx, models.EventFilters{EventType: &conflictType}, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "trace-1", events[0].TraceID)
}

func TestBuildCanonicalTextIncludesCoupling(t *testing.T) {
	intent := models.Intent{
		ID:        "intent-a",
		Source:    "feature",
		Target:    "main",
		Technical: models.Technical{ScopeHints: []string{"b", "a", "c"}},
	}
	text := BuildCanonicalText(intent)
	assert.Contains(t, text, "coupling:a~b")
	assert.Contains(t, text, "coupling:a~c")
	assert.Contains(t, text, "coupling:b~c")
}
