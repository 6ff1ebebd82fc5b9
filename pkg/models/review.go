package models

import "time"

// ReviewStatus is the lifecycle state of a ReviewTask.
type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "pending"
	ReviewAssigned  ReviewStatus = "assigned"
	ReviewCompleted ReviewStatus = "completed"
	ReviewCancelled ReviewStatus = "cancelled"
	ReviewEscalated ReviewStatus = "escalated"
)

// ReviewTask tracks a human-review obligation for an intent (spec.md §4.9).
type ReviewTask struct {
	ID           string       `json:"id"`
	IntentID     string       `json:"intent_id"`
	Status       ReviewStatus `json:"status"`
	Reviewer     *string      `json:"reviewer,omitempty"`
	Priority     int          `json:"priority"`
	CreatedAt    time.Time    `json:"created_at"`
	SLADeadline  time.Time    `json:"sla_deadline"`
	Trigger      string       `json:"trigger"`
	Resolution   *string      `json:"resolution,omitempty"`
	Notes        *string      `json:"notes,omitempty"`
}

// ReviewSLAHours maps risk level to its review SLA, in hours (spec.md §4.9).
var ReviewSLAHours = map[RiskLevel]int{
	RiskLow:      72,
	RiskMedium:   48,
	RiskHigh:     24,
	RiskCritical: 8,
}
