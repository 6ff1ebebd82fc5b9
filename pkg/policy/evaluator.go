// Package policy evaluates an intent's simulation and risk results
// against its risk-level profile (spec.md §4.6), and separately runs the
// risk gate's shadow/enforce rollout.
package policy

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/converge/converge/pkg/models"
)

// Evaluator holds the per-level profiles consulted by Evaluate. Tenants
// may override the embedded defaults by constructing an Evaluator with a
// different profile map (spec.md §4.6 "tenants may override").
type Evaluator struct {
	profiles map[models.RiskLevel]models.Profile
}

// New returns an Evaluator over the embedded default profiles.
func New() *Evaluator {
	return &Evaluator{profiles: models.DefaultProfiles()}
}

// NewWithProfiles returns an Evaluator over a tenant-supplied profile map.
func NewWithProfiles(profiles map[models.RiskLevel]models.Profile) *Evaluator {
	return &Evaluator{profiles: profiles}
}

// Evaluate runs the gate sequence named in spec.md §4.6: simulation
// mergeability, entropy budget, containment floor, blast limit, and each
// required check. ALLOW iff every gate passes.
func (e *Evaluator) Evaluate(intent models.Intent, sim models.Simulation, eval models.RiskEval, checksPassed map[string]bool) models.PolicyEvaluation {
	profile, ok := e.profiles[eval.RiskLevel]
	if !ok {
		profile = models.DefaultProfiles()[models.RiskLow]
	}

	var gates []models.Gate

	mergeableGate := models.Gate{Gate: "simulation.mergeable", Passed: sim.Mergeable}
	if !sim.Mergeable {
		mergeableGate.Reason = "simulation reports conflicts"
	}
	gates = append(gates, mergeableGate)

	gates = append(gates, boundGate("entropy", eval.EntropicLoad, profile.EntropyBudget, lessEq))
	gates = append(gates, boundGate("containment", eval.ContainmentScore, profile.ContainmentMin, greaterEq))
	gates = append(gates, boundGate("blast", blastValue(eval), profile.BlastLimit, lessEq))

	for _, check := range profile.Checks {
		passed := checksPassed[check]
		gate := models.Gate{Gate: "check." + check, Passed: passed}
		if !passed {
			gate.Reason = fmt.Sprintf("required check %q did not pass", check)
		}
		gates = append(gates, gate)
	}

	verdict := models.VerdictAllow
	for _, g := range gates {
		if !g.Passed {
			verdict = models.VerdictBlock
			break
		}
	}

	return models.PolicyEvaluation{
		IntentID: intent.ID,
		Verdict:  verdict,
		Gates:    gates,
	}
}

// blastValue derives an entropy-comparable numeric for the "blast" gate
// from the risk evaluation's damage score — the profile's BlastLimit is
// expressed on the same [0,100] scale as damage_score.
func blastValue(eval models.RiskEval) float64 {
	return eval.DamageScore
}

type comparison int

const (
	lessEq comparison = iota
	greaterEq
)

func boundGate(name string, value, threshold float64, cmp comparison) models.Gate {
	var passed bool
	var reason string
	switch cmp {
	case lessEq:
		passed = value <= threshold
		if !passed {
			reason = fmt.Sprintf("%s %.1f exceeds budget %.1f", name, value, threshold)
		}
	case greaterEq:
		passed = value >= threshold
		if !passed {
			reason = fmt.Sprintf("%s %.1f below floor %.1f", name, value, threshold)
		}
	}
	return models.Gate{Gate: name, Passed: passed, Reason: reason, Value: value, Threshold: threshold}
}

// RiskGateCheck is one of the three risk-gate metric checks (spec.md
// §4.6 "Risk gate").
type RiskGateCheck struct {
	Metric       string
	Value        float64
	ThresholdKey string
	Default      float64
}

// RiskGateResult is the outcome of evaluating the risk gate for one
// intent, independent of the profile-based Evaluate above.
type RiskGateResult struct {
	Verdict  models.Verdict
	Gates    []models.Gate
	Shadow   bool
	Enforced bool
}

// EvaluateRiskGate runs the three risk-gate checks (risk_score,
// damage_score, propagation_score) against policy's thresholds, honoring
// shadow/enforce mode and the deterministic per-intent enforce_ratio
// bucketing (spec.md §4.6).
func EvaluateRiskGate(intentID string, eval models.RiskEval, rp models.RiskPolicy) RiskGateResult {
	checks := []RiskGateCheck{
		{Metric: "risk_score", Value: eval.RiskScore, ThresholdKey: "max_risk_score", Default: rp.MaxRiskScore},
		{Metric: "damage_score", Value: eval.DamageScore, ThresholdKey: "max_damage_score", Default: rp.MaxDamageScore},
		{Metric: "propagation_score", Value: eval.PropagationScore, ThresholdKey: "max_propagation_score", Default: rp.MaxPropagationScore},
	}

	var gates []models.Gate
	anyFailed := false
	for _, c := range checks {
		g := boundGate(c.Metric, c.Value, c.Default, lessEq)
		gates = append(gates, g)
		if !g.Passed {
			anyFailed = true
		}
	}

	shadow := rp.Mode != "enforce"
	enforced := !shadow && EnforceBucket(intentID, rp.EnforceRatio)

	verdict := models.VerdictAllow
	if enforced && anyFailed {
		verdict = models.VerdictBlock
	}

	return RiskGateResult{Verdict: verdict, Gates: gates, Shadow: shadow || !enforced, Enforced: enforced}
}

// EnforceBucket deterministically decides whether intentID falls inside
// the enforced fraction of a gradual rollout, stable across restarts
// (spec.md §4.6's "deterministic hashing of intent_id mod a fixed
// divisor"). ratio is clamped to [0,1]; 0 means never enforced, 1 means
// always enforced.
func EnforceBucket(intentID string, ratio float64) bool {
	if ratio <= 0 {
		return false
	}
	if ratio >= 1 {
		return true
	}
	const divisor = 10000
	sum := sha256.Sum256([]byte(intentID))
	bucket := binary.BigEndian.Uint64(sum[:8]) % divisor
	return float64(bucket) < ratio*float64(divisor)
}
