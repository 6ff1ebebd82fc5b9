package risk

import (
	"fmt"
	"math"

	"github.com/converge/converge/pkg/models"
)

var coreTargets = map[string]bool{
	"main": true, "master": true, "release": true, "production": true, "prod": true,
}

var riskBonus = map[models.RiskLevel]float64{
	models.RiskLow:      0,
	models.RiskMedium:   5,
	models.RiskHigh:     15,
	models.RiskCritical: 30,
}

// clamp bounds v to [0, 100] and rounds to one decimal, per spec.md §4.5.
func clamp(v float64) float64 {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return math.Round(v*10) / 10
}

// Build constructs the dependency graph for one (intent, simulation) pair
// (spec.md §4.5 "Graph"):
//   - file nodes for every changed file, with file→file co-change edges
//     between every pair of changed files (the historical-coupling signal
//     this reference has available without a separate commit-history
//     ingestion pass — see DESIGN.md);
//   - file→scope edges from scope hints;
//   - file→dependency edges, one dependency node per declared dependency id;
//   - file→branch edges into the target branch.
func Build(intent models.Intent, sim models.Simulation) *Graph {
	g := NewGraph()

	files := sortedCopy(sim.FilesChanged)
	for _, f := range files {
		g.AddNode(f, KindFile)
	}
	for i := 0; i < len(files); i++ {
		for j := i + 1; j < len(files); j++ {
			g.AddEdge(files[i], files[j], 1)
			g.AddEdge(files[j], files[i], 1)
		}
	}

	hints := sortedCopy(intent.Technical.ScopeHints)
	for _, h := range hints {
		g.AddNode(h, KindScope)
		for _, f := range files {
			g.AddEdge(f, h, 1)
		}
	}

	deps := sortedCopy(intent.Dependencies)
	for _, d := range deps {
		g.AddNode(d, KindDependency)
		for _, f := range files {
			g.AddEdge(f, d, 1)
		}
	}

	if intent.Target != "" {
		g.AddNode(intent.Target, KindBranch)
		for _, f := range files {
			g.AddEdge(f, intent.Target, 1)
		}
	}

	return g
}

func coreDirs(hints []string) map[string]bool {
	dirs := map[string]bool{}
	for _, h := range hints {
		dirs[h] = true
	}
	return dirs
}

// Signals computes the four orthogonal [0,100] signals (spec.md §4.5).
func Signals(intent models.Intent, sim models.Simulation, g *Graph) (entropic, contextual, complexity, pathDep float64) {
	filesChanged := len(sim.FilesChanged)
	conflicts := len(sim.Conflicts)
	deps := len(intent.Dependencies)

	dirSet := map[string]bool{}
	for _, f := range sim.FilesChanged {
		dirSet[dirOf(f)] = true
	}
	uniqueDirs := len(dirSet)
	components := g.WeaklyConnectedComponents()

	entropic = clamp(float64(filesChanged)*2 +
		float64(conflicts)*15 +
		float64(deps)*6 +
		float64(uniqueDirs)*3 +
		float64(max0(components-1))*5)

	ranks := PageRank(g, 0.85, 40)
	n := g.NodeCount()
	baseline := 0.0
	if n > 0 {
		baseline = 1.0 / float64(n)
	}
	var pagerankRatioSum float64
	var fileCount int
	for _, f := range sim.FilesChanged {
		if baseline > 0 {
			pagerankRatioSum += ranks[f] / baseline
		}
		fileCount++
	}
	avgPagerankRatio := 0.0
	if fileCount > 0 {
		avgPagerankRatio = pagerankRatioSum / float64(fileCount)
	}

	core := coreDirs(intent.Technical.ScopeHints)
	coreTouches := 0
	for _, f := range sim.FilesChanged {
		if core[dirOf(f)] {
			coreTouches++
		}
	}
	corePathRatio := 0.0
	if filesChanged > 0 {
		corePathRatio = float64(coreTouches) / float64(filesChanged)
	}

	targetBonus := 0.0
	if coreTargets[intent.Target] {
		targetBonus = 10
	}

	contextual = clamp(minF(avgPagerankRatio*30, 60) +
		corePathRatio*20 +
		targetBonus +
		riskBonus[intent.RiskLevel])

	crossDirEdges := 0
	for _, f1 := range sim.FilesChanged {
		for _, f2 := range g.Out(f1) {
			if g.nodes[f2].Kind == KindFile && dirOf(f1) != dirOf(f2) {
				crossDirEdges++
			}
		}
	}
	edgesPerNode := 0.0
	if g.NodeCount() > 0 {
		edgesPerNode = float64(g.EdgeCount()) / float64(g.NodeCount())
	}
	complexity = clamp(g.Density()*40 +
		minF(edgesPerNode*10, 30) +
		float64(crossDirEdges)*3 +
		float64(len(intent.Technical.ScopeHints))*5)

	cycles := CycleComponents(g, 20)
	longest := LongestDAGPath(g)
	pathDep = clamp(float64(conflicts)*20 +
		float64(coreTouches)*4 +
		float64(deps)*8 +
		float64(len(cycles))*5 +
		float64(longest)*2)

	return entropic, contextual, complexity, pathDep
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// riskWeights blends the four signals into risk_score. Entropic load and
// path dependence dominate since they most directly reflect blast
// surface; contextual value and complexity delta contribute but don't
// swamp them. Weights are implementation-defined per spec.md §9's open
// question.
const (
	weightEntropic   = 0.30
	weightContextual = 0.20
	weightComplexity = 0.20
	weightPathDep    = 0.30
)

// Composite computes risk_score, damage_score, propagation_score, and
// containment_score (spec.md §4.5 "Composite scores").
func Composite(entropic, contextual, complexity, pathDep float64, g *Graph, sim models.Simulation) (risk, damage, propagation, containment float64) {
	risk = clamp(entropic*weightEntropic + contextual*weightContextual + complexity*weightComplexity + pathDep*weightPathDep)

	// damage_score: how far reclassification could reach, via the
	// largest descendant set among changed files, relative to graph size.
	maxDescendants := 0
	for _, f := range sim.FilesChanged {
		if d := len(g.Descendants(f)); d > maxDescendants {
			maxDescendants = d
		}
	}
	n := g.NodeCount()
	descRatio := 0.0
	if n > 1 {
		descRatio = float64(maxDescendants) / float64(n-1)
	}
	damage = clamp(descRatio*70 + float64(len(sim.Conflicts))*10)

	// propagation_score: concentration of PageRank mass on changed files
	// — a high concentration means a small changeset carries outsized
	// downstream influence.
	ranks := PageRank(g, 0.85, 40)
	var changedMass float64
	for _, f := range sim.FilesChanged {
		changedMass += ranks[f]
	}
	propagation = clamp(changedMass*100 + float64(len(sim.Conflicts))*5)

	// containment_score: inverse of how entangled the change is —
	// isolated single-component changes contain well; many components
	// or high density erode containment.
	components := g.WeaklyConnectedComponents()
	isolation := 100.0
	if components > 0 {
		isolation = 100.0 / float64(components)
	}
	containment = clamp(isolation - g.Density()*30 - float64(len(sim.Conflicts))*10)

	return risk, damage, propagation, containment
}

// Bombs produces zero or more structural-degradation warnings (spec.md
// §4.5 "Bomb detection").
func Bombs(intent models.Intent, sim models.Simulation, g *Graph) []models.Bomb {
	var bombs []models.Bomb
	n := g.NodeCount()

	// cascade
	if n > 0 {
		threshold := 1.5 / float64(n)
		ranks := PageRank(g, 0.85, 40)
		for _, f := range sortedCopy(sim.FilesChanged) {
			if ranks[f] > threshold && g.OutDegree(f) >= 3 {
				descendants := len(g.Descendants(f))
				if float64(descendants) > float64(len(sim.FilesChanged))*1.5 {
					bombs = append(bombs, models.Bomb{
						Kind: "cascade", Severity: "high",
						Detail: fmt.Sprintf("%s: pagerank=%.4f out_degree=%d descendants=%d", f, ranks[f], g.OutDegree(f), descendants),
					})
					break
				}
			}
		}
	}

	// spiral
	cycles := CycleComponents(g, 10)
	var qualifying int
	for _, c := range cycles {
		if len(c) >= 2 {
			qualifying++
		}
	}
	if qualifying >= 2 {
		bombs = append(bombs, models.Bomb{
			Kind: "spiral", Severity: "medium",
			Detail: fmt.Sprintf("%d cycles of length >= 2", qualifying),
		})
	}

	// thermal_death
	filesChanged := len(sim.FilesChanged)
	conflicts := len(sim.Conflicts)
	deps := len(intent.Dependencies)
	components := g.WeaklyConnectedComponents()
	edges, nodes := g.EdgeCount(), g.NodeCount()

	hits := 0
	if filesChanged > 10 {
		hits++
	}
	if conflicts > 0 {
		hits++
	}
	if deps > 3 {
		hits++
	}
	if components > 3 {
		hits++
	}
	if nodes > 0 && edges > nodes*2 {
		hits++
	}
	if hits >= 3 {
		bombs = append(bombs, models.Bomb{
			Kind: "thermal_death", Severity: "critical",
			Detail: fmt.Sprintf("%d/5 degradation signals present", hits),
		})
	}

	return bombs
}

// Evaluate runs the full risk pipeline for one (intent, simulation) pair
// and returns the diagnostic RiskEval (spec.md §4.5 "Diagnostics").
func Evaluate(intent models.Intent, sim models.Simulation) models.RiskEval {
	g := Build(intent, sim)
	entropic, contextual, complexity, pathDep := Signals(intent, sim, g)
	riskScore, damage, propagation, containment := Composite(entropic, contextual, complexity, pathDep, g, sim)
	level := models.ClassifyRiskLevel(riskScore)
	bombs := Bombs(intent, sim, g)

	findings := []string{
		fmt.Sprintf("entropic_load=%.1f contextual_value=%.1f complexity_delta=%.1f path_dependence=%.1f", entropic, contextual, complexity, pathDep),
		fmt.Sprintf("risk_score=%.1f classified=%s", riskScore, level),
	}
	for _, b := range bombs {
		findings = append(findings, fmt.Sprintf("bomb:%s(%s) %s", b.Kind, b.Severity, b.Detail))
	}

	return models.RiskEval{
		IntentID:         intent.ID,
		EntropicLoad:     entropic,
		ContextualValue:  contextual,
		ComplexityDelta:  complexity,
		PathDependence:   pathDep,
		RiskScore:        riskScore,
		DamageScore:      damage,
		PropagationScore: propagation,
		ContainmentScore: containment,
		RiskLevel:        level,
		Bombs:            bombs,
		GraphMetrics: models.GraphMetrics{
			Nodes:   g.NodeCount(),
			Edges:   g.EdgeCount(),
			Density: g.Density(),
		},
		Findings: findings,
	}
}
