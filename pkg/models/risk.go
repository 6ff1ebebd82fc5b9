package models

// Bomb is a structural-degradation warning produced by the risk engine.
type Bomb struct {
	Kind     string `json:"kind"` // cascade|spiral|thermal_death
	Severity string `json:"severity"`
	Detail   string `json:"detail,omitempty"`
}

// GraphMetrics summarizes the dependency graph built for one evaluation.
type GraphMetrics struct {
	Nodes   int     `json:"nodes"`
	Edges   int     `json:"edges"`
	Density float64 `json:"density"`
}

// RiskEval is the full diagnostic output of the risk engine (spec.md §4.5).
type RiskEval struct {
	IntentID string `json:"intent_id"`

	EntropicLoad    float64 `json:"entropic_load"`
	ContextualValue float64 `json:"contextual_value"`
	ComplexityDelta float64 `json:"complexity_delta"`
	PathDependence  float64 `json:"path_dependence"`

	RiskScore         float64 `json:"risk_score"`
	DamageScore       float64 `json:"damage_score"`
	PropagationScore  float64 `json:"propagation_score"`
	ContainmentScore  float64 `json:"containment_score"`

	RiskLevel RiskLevel `json:"risk_level"`

	Bombs        []Bomb       `json:"bombs"`
	GraphMetrics GraphMetrics `json:"graph_metrics"`
	Findings     []string     `json:"findings"`
}

// Gate is a single pass/fail check inside a policy evaluation.
type Gate struct {
	Gate      string  `json:"gate"`
	Passed    bool    `json:"passed"`
	Reason    string  `json:"reason"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}

// Verdict is the outcome of a PolicyEvaluation.
type Verdict string

const (
	VerdictAllow Verdict = "ALLOW"
	VerdictBlock Verdict = "BLOCK"
)

// PolicyEvaluation is the result of evaluating an intent against its
// risk-level profile (spec.md §4.6).
type PolicyEvaluation struct {
	IntentID string  `json:"intent_id"`
	Verdict  Verdict `json:"verdict"`
	Gates    []Gate  `json:"gates"`
}

// Profile is a bundle of gate thresholds selected by risk level (spec.md §4.6).
type Profile struct {
	EntropyBudget  float64  `json:"entropy_budget"`
	ContainmentMin float64  `json:"containment_min"`
	BlastLimit     float64  `json:"blast_limit"`
	Checks         []string `json:"checks"`
	CoherencePass  float64  `json:"coherence_pass"`
	CoherenceWarn  float64  `json:"coherence_warn"`
}

// DefaultProfiles ships the embedded per-level gate thresholds (spec.md §4.6).
func DefaultProfiles() map[RiskLevel]Profile {
	return map[RiskLevel]Profile{
		RiskLow: {
			EntropyBudget:  40,
			ContainmentMin: 40,
			BlastLimit:     50,
			Checks:         []string{"lint"},
			CoherencePass:  0.6,
			CoherenceWarn:  0.4,
		},
		RiskMedium: {
			EntropyBudget:  30,
			ContainmentMin: 50,
			BlastLimit:     40,
			Checks:         []string{"lint", "unit"},
			CoherencePass:  0.65,
			CoherenceWarn:  0.45,
		},
		RiskHigh: {
			EntropyBudget:  20,
			ContainmentMin: 60,
			BlastLimit:     30,
			Checks:         []string{"lint", "unit", "integration"},
			CoherencePass:  0.7,
			CoherenceWarn:  0.5,
		},
		RiskCritical: {
			EntropyBudget:  10,
			ContainmentMin: 75,
			BlastLimit:     20,
			Checks:         []string{"lint", "unit", "integration", "security"},
			CoherencePass:  0.8,
			CoherenceWarn:  0.6,
		},
	}
}

// RiskThresholds is the band boundary table for classify_risk_level
// (spec.md §4.5): the highest band whose threshold is <= the score wins.
var RiskThresholds = []struct {
	Level     RiskLevel
	Threshold float64
}{
	{RiskCritical, 75},
	{RiskHigh, 50},
	{RiskMedium, 25},
	{RiskLow, 0},
}

// ClassifyRiskLevel picks the highest band whose threshold is <= score.
func ClassifyRiskLevel(score float64) RiskLevel {
	for _, band := range RiskThresholds {
		if score >= band.Threshold {
			return band.Level
		}
	}
	return RiskLow
}

// BlastSeverity buckets a damage_score into the severity bands used by
// authorization's blast-radius check (spec.md §4.8).
func BlastSeverity(damageScore float64) string {
	switch {
	case damageScore < 30:
		return "low"
	case damageScore < 50:
		return "medium"
	case damageScore < 75:
		return "high"
	default:
		return "critical"
	}
}
