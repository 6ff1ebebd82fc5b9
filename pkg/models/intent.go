// Package models holds the wire/storage shapes shared across the store,
// the lifecycle engine, the risk engine, and the projections layer.
package models

import "time"

// IntentStatus is the lifecycle state of an Intent.
type IntentStatus string

const (
	StatusReady     IntentStatus = "READY"
	StatusValidated IntentStatus = "VALIDATED"
	StatusQueued    IntentStatus = "QUEUED"
	StatusMerged    IntentStatus = "MERGED"
	StatusRejected  IntentStatus = "REJECTED"
	StatusBlocked   IntentStatus = "BLOCKED"
)

// Terminal reports whether a status ends the lifecycle.
func (s IntentStatus) Terminal() bool {
	return s == StatusMerged || s == StatusRejected
}

// RiskLevel is the classification band assigned by the risk engine.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Semantic carries the problem/objective/description facts used both by
// the policy evaluator's "coherence" checks and by the semantic layer's
// canonical-text builder.
type Semantic struct {
	Problem     string            `json:"problem,omitempty"`
	Objective   string            `json:"objective,omitempty"`
	Description string            `json:"description,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Technical carries scope hints and routing metadata that feed the risk
// graph builder.
type Technical struct {
	Refs       []string `json:"refs,omitempty"`
	ScopeHints []string `json:"scope_hints,omitempty"`
	BaseCommit string   `json:"base_commit,omitempty"`
	Repo       string   `json:"repo,omitempty"`
}

// Intent is a proposed change under lifecycle control (spec.md §3).
type Intent struct {
	ID       string  `json:"id"`
	TenantID *string `json:"tenant_id,omitempty"`
	PlanID   *string `json:"plan_id,omitempty"`

	Source string `json:"source"`
	Target string `json:"target"`

	Status    IntentStatus `json:"status"`
	Retries   int          `json:"retries"`
	CreatedAt time.Time    `json:"created_at"`
	CreatedBy string       `json:"created_by,omitempty"`

	RiskLevel  RiskLevel `json:"risk_level"`
	Priority   int       `json:"priority"`
	OriginType string    `json:"origin_type,omitempty"`

	Semantic       Semantic  `json:"semantic"`
	Technical      Technical `json:"technical"`
	ChecksRequired []string  `json:"checks_required,omitempty"`
	Dependencies   []string  `json:"dependencies,omitempty"`
}

// CreateIntentRequest is the input shape for intent ingestion.
type CreateIntentRequest struct {
	ID             string    `json:"id,omitempty"`
	TenantID       *string   `json:"tenant_id,omitempty"`
	PlanID         *string   `json:"plan_id,omitempty"`
	Source         string    `json:"source"`
	Target         string    `json:"target"`
	CreatedBy      string    `json:"created_by,omitempty"`
	Priority       int       `json:"priority,omitempty"`
	OriginType     string    `json:"origin_type,omitempty"`
	Semantic       Semantic  `json:"semantic,omitempty"`
	Technical      Technical `json:"technical,omitempty"`
	ChecksRequired []string  `json:"checks_required,omitempty"`
	Dependencies   []string  `json:"dependencies,omitempty"`
}

// IntentFilters narrows a ListIntents query.
type IntentFilters struct {
	Status   *IntentStatus
	TenantID *string
	Limit    int
}

// CommitRole distinguishes the purpose of a CommitLink row.
type CommitRole string

const (
	RoleHead  CommitRole = "head"
	RoleBase  CommitRole = "base"
	RoleMerge CommitRole = "merge"
)

// CommitLink ties an intent to a concrete SCM commit.
type CommitLink struct {
	IntentID string     `json:"intent_id"`
	Repo     string     `json:"repo"`
	SHA      string     `json:"sha"`
	Role     CommitRole `json:"role"`
}
