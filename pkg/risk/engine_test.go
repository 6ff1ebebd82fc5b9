package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/converge/converge/pkg/models"
)

func TestClassifyRiskLevelBoundaries(t *testing.T) {
	assert.Equal(t, models.RiskLow, models.ClassifyRiskLevel(0))
	assert.Equal(t, models.RiskLow, models.ClassifyRiskLevel(24.9))
	assert.Equal(t, models.RiskMedium, models.ClassifyRiskLevel(25.0))
	assert.Equal(t, models.RiskHigh, models.ClassifyRiskLevel(50.0))
	assert.Equal(t, models.RiskCritical, models.ClassifyRiskLevel(75.0))
	assert.Equal(t, models.RiskCritical, models.ClassifyRiskLevel(100))
}

func TestClassifyRiskLevelMonotonic(t *testing.T) {
	prevRank := map[models.RiskLevel]int{models.RiskLow: 0, models.RiskMedium: 1, models.RiskHigh: 2, models.RiskCritical: 3}
	last := models.ClassifyRiskLevel(0)
	for s := 1.0; s <= 100; s++ {
		cur := models.ClassifyRiskLevel(s)
		assert.GreaterOrEqual(t, prevRank[cur], prevRank[last])
		last = cur
	}
}

func simpleIntent() models.Intent {
	return models.Intent{
		ID:     "intent-1",
		Target: "main",
		Technical: models.Technical{
			ScopeHints: []string{"pkg/core"},
		},
	}
}

func TestEvaluateSignalsInBounds(t *testing.T) {
	intent := simpleIntent()
	sim := models.Simulation{
		Mergeable:    true,
		FilesChanged: []string{"pkg/core/a.go", "pkg/core/b.go", "pkg/other/c.go"},
	}
	eval := Evaluate(intent, sim)

	for _, v := range []float64{eval.EntropicLoad, eval.ContextualValue, eval.ComplexityDelta, eval.PathDependence} {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
	assert.GreaterOrEqual(t, eval.RiskScore, 0.0)
	assert.LessOrEqual(t, eval.RiskScore, 100.0)
	assert.Equal(t, models.ClassifyRiskLevel(eval.RiskScore), eval.RiskLevel)
}

func TestEvaluateDeterministic(t *testing.T) {
	intent := simpleIntent()
	sim := models.Simulation{
		Mergeable:    false,
		Conflicts:    []string{"pkg/core/a.go"},
		FilesChanged: []string{"pkg/core/a.go", "pkg/core/b.go"},
	}
	first := Evaluate(intent, sim)
	second := Evaluate(intent, sim)
	require.Equal(t, first, second)
}

func TestThermalDeathBombRequiresThreeSignals(t *testing.T) {
	intent := simpleIntent()
	intent.Dependencies = []string{"d1", "d2", "d3", "d4"}
	files := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		files = append(files, "pkg/core/f"+string(rune('a'+i))+".go")
	}
	sim := models.Simulation{
		Mergeable:    false,
		Conflicts:    []string{"pkg/core/fa.go"},
		FilesChanged: files,
	}
	eval := Evaluate(intent, sim)

	var foundThermal bool
	for _, b := range eval.Bombs {
		if b.Kind == "thermal_death" {
			foundThermal = true
			assert.Equal(t, "critical", b.Severity)
		}
	}
	assert.True(t, foundThermal, "expected thermal_death bomb with >10 files, conflicts, and >3 deps")
}

func TestGraphDensityEmptyGraph(t *testing.T) {
	g := NewGraph()
	assert.Equal(t, 0.0, g.Density())
	assert.Equal(t, 0, g.NodeCount())
}

func TestTarjanSCCDetectsCycle(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", KindFile)
	g.AddNode("b", KindFile)
	g.AddNode("c", KindFile)
	g.AddEdge("a", "b", 1)
	g.AddEdge("b", "c", 1)
	g.AddEdge("c", "a", 1)

	cycles := CycleComponents(g, 20)
	require.Len(t, cycles, 1)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, cycles[0])
}

func TestLongestDAGPathLinearChain(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", KindFile)
	g.AddNode("b", KindFile)
	g.AddNode("c", KindFile)
	g.AddEdge("a", "b", 1)
	g.AddEdge("b", "c", 1)

	assert.Equal(t, 2, LongestDAGPath(g))
}

func TestPageRankSumsToApproximatelyOne(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", KindFile)
	g.AddNode("b", KindFile)
	g.AddNode("c", KindFile)
	g.AddEdge("a", "b", 1)
	g.AddEdge("b", "c", 1)
	g.AddEdge("c", "a", 1)

	ranks := PageRank(g, 0.85, 60)
	var sum float64
	for _, r := range ranks {
		sum += r
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}
