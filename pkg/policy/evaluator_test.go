package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/converge/converge/pkg/models"
)

func TestEvaluateAllowsCleanIntent(t *testing.T) {
	e := New()
	intent := models.Intent{ID: "i1", RiskLevel: models.RiskLow}
	sim := models.Simulation{Mergeable: true}
	eval := models.RiskEval{
		RiskLevel:        models.RiskLow,
		EntropicLoad:     5,
		ContainmentScore: 90,
		DamageScore:      5,
	}
	result := e.Evaluate(intent, sim, eval, map[string]bool{"lint": true})
	assert.Equal(t, models.VerdictAllow, result.Verdict)
	for _, g := range result.Gates {
		assert.True(t, g.Passed, g.Gate)
	}
}

func TestEvaluateBlocksOnUnmergeable(t *testing.T) {
	e := New()
	intent := models.Intent{ID: "i1", RiskLevel: models.RiskLow}
	sim := models.Simulation{Mergeable: false}
	eval := models.RiskEval{RiskLevel: models.RiskLow, ContainmentScore: 90}
	result := e.Evaluate(intent, sim, eval, map[string]bool{"lint": true})
	assert.Equal(t, models.VerdictBlock, result.Verdict)
}

func TestEvaluateRiskGateS3Scenario(t *testing.T) {
	// spec.md S3: risk_score=80, enforce mode, default thresholds {max_risk_score:65}.
	rp := models.DefaultRiskPolicy()
	rp.Mode = "enforce"
	rp.EnforceRatio = 1.0
	eval := models.RiskEval{RiskScore: 80, DamageScore: 10, PropagationScore: 10}

	result := EvaluateRiskGate("intent-x", eval, rp)
	assert.Equal(t, models.VerdictBlock, result.Verdict)

	var riskGate models.Gate
	for _, g := range result.Gates {
		if g.Gate == "risk_score" {
			riskGate = g
		}
	}
	assert.False(t, riskGate.Passed)
	assert.Equal(t, 80.0, riskGate.Value)
	assert.Equal(t, 65.0, riskGate.Threshold)
}

func TestEvaluateRiskGateShadowNeverBlocks(t *testing.T) {
	rp := models.DefaultRiskPolicy() // Mode defaults to "shadow"
	eval := models.RiskEval{RiskScore: 99, DamageScore: 99, PropagationScore: 99}
	result := EvaluateRiskGate("intent-x", eval, rp)
	assert.Equal(t, models.VerdictAllow, result.Verdict)
	assert.True(t, result.Shadow)
}

func TestEnforceBucketStableAcrossCalls(t *testing.T) {
	first := EnforceBucket("intent-abc", 0.5)
	second := EnforceBucket("intent-abc", 0.5)
	assert.Equal(t, first, second)
}

func TestEnforceBucketBoundaries(t *testing.T) {
	assert.False(t, EnforceBucket("any", 0))
	assert.True(t, EnforceBucket("any", 1))
}
