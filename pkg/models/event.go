package models

import "time"

// Event is an immutable fact in the append-only log (spec.md §3).
type Event struct {
	ID        string         `json:"id"`
	EventType string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	TraceID   string         `json:"trace_id"`
	IntentID  *string        `json:"intent_id,omitempty"`
	AgentID   *string        `json:"agent_id,omitempty"`
	TenantID  *string        `json:"tenant_id,omitempty"`
	Payload   map[string]any `json:"payload"`
	Evidence  map[string]any `json:"evidence,omitempty"`
}

// EventFilters narrows a QueryEvents / CountEvents call.
type EventFilters struct {
	EventType *string
	IntentID  *string
	AgentID   *string
	TenantID  *string
	Since     *time.Time
	Until     *time.Time
}
