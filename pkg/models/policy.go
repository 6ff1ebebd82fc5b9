package models

import "time"

// AgentPolicy governs what an agent may do for a given tenant (spec.md §3, §4.8).
type AgentPolicy struct {
	AgentID  string  `json:"agent_id"`
	TenantID *string `json:"tenant_id,omitempty"`

	ATL int `json:"atl"` // Autonomy Trust Level, 0..3

	MaxRiskScore     float64 `json:"max_risk_score"`
	MaxBlastSeverity string  `json:"max_blast_severity"` // low|medium|high|critical
	MinTestCoverage  float64 `json:"min_test_coverage"`

	RequireCompliancePass        bool `json:"require_compliance_pass"`
	RequireHumanApproval         bool `json:"require_human_approval"`
	RequireDualApprovalOnCritical bool `json:"require_dual_approval_on_critical"`

	AllowActions []string `json:"allow_actions"`

	// ActionOverrides holds partial limit overlays keyed by action name.
	ActionOverrides map[string]ActionOverride `json:"action_overrides,omitempty"`

	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ActionOverride is a partial overlay of AgentPolicy's numeric/boolean limits,
// applied on top of the base policy for one specific action.
type ActionOverride struct {
	MaxRiskScore     *float64 `json:"max_risk_score,omitempty"`
	MaxBlastSeverity *string  `json:"max_blast_severity,omitempty"`
	MinTestCoverage  *float64 `json:"min_test_coverage,omitempty"`
}

// DefaultAgentPolicy is the fallback used when no policy row exists for
// (agent_id, tenant_id): analyze-only, no autonomy, human approval required.
func DefaultAgentPolicy(agentID string, tenantID *string) AgentPolicy {
	return AgentPolicy{
		AgentID:               agentID,
		TenantID:              tenantID,
		ATL:                   0,
		MaxRiskScore:          0,
		MaxBlastSeverity:      "low",
		AllowActions:          []string{"analyze"},
		RequireHumanApproval:  true,
	}
}

// RiskPolicy holds per-tenant thresholds for the risk gate (spec.md §4.6).
type RiskPolicy struct {
	TenantID *string `json:"tenant_id,omitempty"`

	MaxRiskScore       float64 `json:"max_risk_score"`
	MaxDamageScore     float64 `json:"max_damage_score"`
	MaxPropagationScore float64 `json:"max_propagation_score"`

	Mode         string  `json:"mode"` // shadow|enforce
	EnforceRatio float64 `json:"enforce_ratio"`
}

// DefaultRiskPolicy matches the defaults named in spec.md §4.6.
func DefaultRiskPolicy() RiskPolicy {
	return RiskPolicy{
		MaxRiskScore:        65,
		MaxDamageScore:      60,
		MaxPropagationScore: 55,
		Mode:                "shadow",
		EnforceRatio:        1.0,
	}
}

// ComplianceThresholds holds per-tenant SLO targets (spec.md §4.10).
type ComplianceThresholds struct {
	TenantID *string `json:"tenant_id,omitempty"`

	MergeableRateMin float64 `json:"mergeable_rate_min"`
	ConflictRateMax  float64 `json:"conflict_rate_max"`
	RetriesTotalMax  int     `json:"retries_total_max"`
	QueueTrackedMax  int     `json:"queue_tracked_max"`
	DebtScoreMax     float64 `json:"debt_score_max"`
}

// DefaultComplianceThresholds matches the values named in spec.md §4.10.
func DefaultComplianceThresholds() ComplianceThresholds {
	return ComplianceThresholds{
		MergeableRateMin: 0.80,
		ConflictRateMax:  0.20,
		RetriesTotalMax:  200,
		QueueTrackedMax:  1000,
		DebtScoreMax:     70,
	}
}

// OwnershipRule maps a glob pattern of file paths to a set of owning agents,
// used by the separation-of-duties check in spec.md §4.8.
type OwnershipRule struct {
	Glob   string   `json:"glob"`
	Owners []string `json:"owners"`
}

// OwnershipConfig is the full glob→owners rule set for one tenant.
type OwnershipConfig struct {
	TenantID *string         `json:"tenant_id,omitempty"`
	Rules    []OwnershipRule `json:"rules"`
}
