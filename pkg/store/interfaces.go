package store

import (
	"context"
	"time"

	"github.com/converge/converge/pkg/models"
)

// EventStorePort is the append-only event log surface (spec.md §4.1).
type EventStorePort interface {
	AppendEvent(ctx context.Context, e models.Event) (models.Event, error)
	QueryEvents(ctx context.Context, f models.EventFilters, limit int) ([]models.Event, error)
	CountEvents(ctx context.Context, f models.EventFilters) (int, error)
	PruneEvents(ctx context.Context, before time.Time, tenant *string, dryRun bool) (int, error)
}

// IntentStorePort is the mutable-intent surface (spec.md §4.1).
type IntentStorePort interface {
	UpsertIntent(ctx context.Context, i models.Intent) (models.Intent, error)
	GetIntent(ctx context.Context, id string) (models.Intent, error)
	ListIntents(ctx context.Context, f models.IntentFilters) ([]models.Intent, error)
	UpdateIntentStatus(ctx context.Context, id string, status models.IntentStatus, retries *int) error

	UpsertCommitLink(ctx context.Context, l models.CommitLink) error
	ListCommitLinks(ctx context.Context, intentID string) ([]models.CommitLink, error)
}

// PolicyStorePort covers the three JSON-blob policy tables (spec.md §4.1, §6).
type PolicyStorePort interface {
	UpsertAgentPolicy(ctx context.Context, p models.AgentPolicy) error
	GetAgentPolicy(ctx context.Context, agentID string, tenantID *string) (models.AgentPolicy, error)

	UpsertRiskPolicy(ctx context.Context, p models.RiskPolicy) error
	GetRiskPolicy(ctx context.Context, tenantID *string) (models.RiskPolicy, error)

	UpsertComplianceThresholds(ctx context.Context, t models.ComplianceThresholds) error
	GetComplianceThresholds(ctx context.Context, tenantID *string) (models.ComplianceThresholds, error)

	UpsertOwnership(ctx context.Context, o models.OwnershipConfig) error
	GetOwnership(ctx context.Context, tenantID *string) (models.OwnershipConfig, error)
}

// EmbeddingStorePort is the semantic-layer vector surface (spec.md §4.1, §4.11).
type EmbeddingStorePort interface {
	UpsertEmbedding(ctx context.Context, e models.Embedding) error
	GetEmbedding(ctx context.Context, intentID, model string) (models.Embedding, error)
	ListEmbeddings(ctx context.Context, model string) ([]models.Embedding, error)
	DeleteEmbedding(ctx context.Context, intentID, model string) error
	EmbeddingCoverage(ctx context.Context, model string) (covered int, total int, err error)
}

// LockPort is the named advisory lock surface (spec.md §5).
type LockPort interface {
	Acquire(ctx context.Context, lockName, holder string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, lockName, holder string) (bool, error)
	ForceRelease(ctx context.Context, lockName string) error
	LockInfo(ctx context.Context, lockName string) (models.QueueLock, error)
}

// DeliveryPort is the webhook-delivery idempotency surface (spec.md §4.1, §6).
type DeliveryPort interface {
	IsDuplicateDelivery(ctx context.Context, deliveryID string) (bool, error)
	RecordDelivery(ctx context.Context, deliveryID string, ttl time.Duration) error
}

// ChainStorePort is the audit hash-chain head surface (spec.md §4.3).
type ChainStorePort interface {
	GetChainState(ctx context.Context, chainID string) (models.ChainState, error)
	SaveChainState(ctx context.Context, s models.ChainState) error
}

// ReviewStorePort is the review-task CRUD surface (spec.md §4.9).
type ReviewStorePort interface {
	CreateReviewTask(ctx context.Context, t models.ReviewTask) error
	GetReviewTask(ctx context.Context, id string) (models.ReviewTask, error)
	UpdateReviewTask(ctx context.Context, t models.ReviewTask) error
	ListReviewTasks(ctx context.Context, status *models.ReviewStatus) ([]models.ReviewTask, error)
}

// SecurityStorePort is the normalized-scanner-finding surface (spec.md §3).
type SecurityStorePort interface {
	UpsertFinding(ctx context.Context, f models.SecurityFinding) error
	CountFindingsBySeverity(ctx context.Context, intentID string) (map[models.FindingSeverity]int, error)
}

// ConflictStorePort is the persisted-conflict-candidate surface (spec.md
// §4.11: "pairs exceeding similarity_threshold become ConflictCandidate
// rows").
type ConflictStorePort interface {
	RecordConflictCandidate(ctx context.Context, c models.ConflictCandidate) error
	ListConflictCandidates(ctx context.Context, intentID *string) ([]models.ConflictCandidate, error)
}

// Store composes every port into the one capability set a caller links
// against (spec.md §9's "Protocol-based ports" design note). All methods
// are blocking and transactional at statement level; the store is
// process-safe and may be shared across goroutines.
type Store interface {
	EventStorePort
	IntentStorePort
	PolicyStorePort
	EmbeddingStorePort
	LockPort
	DeliveryPort
	ChainStorePort
	ReviewStorePort
	SecurityStorePort
	ConflictStorePort

	// Close releases the underlying connection/pool.
	Close() error
}
