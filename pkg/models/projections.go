package models

import "time"

// HealthStatus buckets a composite [0,100] score into a traffic-light band.
type HealthStatus string

const (
	HealthGreen  HealthStatus = "green"
	HealthYellow HealthStatus = "yellow"
	HealthRed    HealthStatus = "red"
)

// QueueState is the read model over pending intents (spec.md §4.10).
type QueueState struct {
	Pending      []Intent                 `json:"pending"`
	CountsByStatus map[IntentStatus]int    `json:"counts_by_status"`
}

// RepoHealth is the composite repository health score (spec.md §4.10).
type RepoHealth struct {
	Score             float64      `json:"score"`
	Status            HealthStatus `json:"status"`
	MergeableRate     float64      `json:"mergeable_rate"`
	EntropyAverage    float64      `json:"entropy_average"`
	ActiveIntentCount int          `json:"active_intent_count"`
	Merged24h         int          `json:"merged_24h"`
	Rejected24h       int          `json:"rejected_24h"`
}

// ChangeHealth is the per-intent health read model (spec.md §4.10).
type ChangeHealth struct {
	IntentID     string    `json:"intent_id"`
	RiskLevel    RiskLevel `json:"risk_level"`
	RiskScore    float64   `json:"risk_score"`
	Verdict      Verdict   `json:"verdict"`
	Mergeable    bool      `json:"mergeable"`
	ConflictPath []string  `json:"conflict_paths,omitempty"`
}

// ComplianceCheck is one named threshold check inside a ComplianceReport.
type ComplianceCheck struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Op        string  `json:"op"` // "gte" or "lte"
	Passed    bool    `json:"passed"`
}

// ComplianceReport bundles the five standing compliance checks (spec.md §4.10).
type ComplianceReport struct {
	TenantID *string           `json:"tenant_id,omitempty"`
	Checks   []ComplianceCheck `json:"checks"`
	Passing  bool              `json:"passing"`
}

// VerificationDebt is the weighted backlog-pressure score (spec.md §4.10).
type VerificationDebt struct {
	Score           float64      `json:"score"`
	Status          HealthStatus `json:"status"`
	Staleness       float64      `json:"staleness"`
	QueuePressure   float64      `json:"queue_pressure"`
	ReviewBacklog   float64      `json:"review_backlog"`
	ConflictPressure float64     `json:"conflict_pressure"`
	RetryPressure   float64      `json:"retry_pressure"`
}

// TrendPoint is one sample of a time series read model.
type TrendPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Trends bundles the time series derived from risk/health events (spec.md §4.10).
type Trends struct {
	RiskScores     []TrendPoint `json:"risk_scores"`
	HealthScores   []TrendPoint `json:"health_scores"`
	ChangeHealth   []TrendPoint `json:"change_health_scores"`
}

// Predictions bundles heuristic early-warning signals (spec.md §4.10).
type Predictions struct {
	RisingConflictRate bool `json:"rising_conflict_rate"`
	EntropySpike       bool `json:"entropy_spike"`
	QueueStalling      bool `json:"queue_stalling"`
	HighRejectionRate  bool `json:"high_rejection_rate"`
	CascadeRisk        bool `json:"cascade_risk"`
	SpiralRisk         bool `json:"spiral_risk"`
	ThermalDeathRisk   bool `json:"thermal_death_risk"`
}
