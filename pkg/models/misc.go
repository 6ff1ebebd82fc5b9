package models

import "time"

// Embedding is a stored semantic vector for an intent under a given model.
type Embedding struct {
	IntentID    string    `json:"intent_id"`
	Model       string    `json:"model"`
	Dimension   int       `json:"dimension"`
	Checksum    string    `json:"checksum"`
	Vector      []float64 `json:"vector"`
	GeneratedAt time.Time `json:"generated_at"`
}

// QueueLock is one row of the advisory lock table (spec.md §5).
type QueueLock struct {
	LockName  string    `json:"lock_name"`
	Holder    string    `json:"holder_pid"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// WebhookDelivery records a seen delivery id for idempotent ingestion.
type WebhookDelivery struct {
	DeliveryID string    `json:"delivery_id"`
	SeenAt     time.Time `json:"seen_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// ChainState is the persisted head of the audit hash chain (spec.md §4.3).
type ChainState struct {
	ChainID    string    `json:"chain_id"`
	LastHash   string    `json:"last_hash"`
	EventCount int       `json:"event_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FindingSeverity is the normalized severity of a SecurityFinding.
type FindingSeverity string

const (
	SeverityCritical FindingSeverity = "critical"
	SeverityHigh     FindingSeverity = "high"
	SeverityMedium   FindingSeverity = "medium"
	SeverityLow      FindingSeverity = "low"
	SeverityInfo     FindingSeverity = "info"
)

// FindingCategory classifies the scanner family that produced a finding.
type FindingCategory string

const (
	CategorySAST    FindingCategory = "sast"
	CategorySCA     FindingCategory = "sca"
	CategorySecrets FindingCategory = "secrets"
)

// SecurityFinding is normalized scanner output (spec.md §3).
type SecurityFinding struct {
	ID         string          `json:"id"`
	Scanner    string          `json:"scanner"`
	Category   FindingCategory `json:"category"`
	Severity   FindingSeverity `json:"severity"`
	File       string          `json:"file"`
	Line       int             `json:"line"`
	Rule       string          `json:"rule"`
	Evidence   string          `json:"evidence,omitempty"`
	Confidence float64         `json:"confidence"`
	IntentID   *string         `json:"intent_id,omitempty"`
	TenantID   *string         `json:"tenant_id,omitempty"`
}

// Simulation is the outcome of a dry-run merge (spec.md §4.4).
type Simulation struct {
	Mergeable    bool      `json:"mergeable"`
	Conflicts    []string  `json:"conflicts"`
	FilesChanged []string  `json:"files_changed"`
	Source       string    `json:"source"`
	Target       string    `json:"target"`
	Timestamp    time.Time `json:"timestamp"`
}

// ConflictCandidate is a pair of intents whose semantic similarity
// exceeded the configured threshold (spec.md §4.11): cosine similarity
// combined with scope-hint and target-branch overlap.
type ConflictCandidate struct {
	ID            string    `json:"id"`
	IntentA       string    `json:"intent_a"`
	IntentB       string    `json:"intent_b"`
	Similarity    float64   `json:"similarity"`
	ScopeOverlap  float64   `json:"scope_overlap"`
	TargetOverlap bool      `json:"target_overlap"`
	CombinedScore float64   `json:"combined_score"`
	DetectedAt    time.Time `json:"detected_at"`
}

// LogEntry is one entry returned by the SCM adapter's log_entries.
type LogEntry struct {
	SHA     string    `json:"sha"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
	Subject string    `json:"subject"`
	Files   []string  `json:"files"`
}
