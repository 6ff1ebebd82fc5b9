// Package eventlog wraps the Store with typed payload constructors and
// trace-id generation, matching spec.md §4.2. It is the only place in
// the module that should literal-ize event-type strings for emission.
package eventlog

// Event type registry (spec.md §6). Dotted-string event types are a
// stable wire contract; values here are never renamed once shipped.
const (
	TypeIntentCreated           = "intent.created"
	TypeIntentMerged            = "intent.merged"
	TypeIntentRejected          = "intent.rejected"
	TypeIntentRequeued          = "intent.requeued"
	TypeIntentDependencyBlocked = "intent.dependency_blocked"

	TypeSimulationCompleted = "simulation.completed"

	TypeRiskEvaluated         = "risk.evaluated"
	TypeRiskLevelReclassified = "risk.level_reclassified"
	TypeRiskShadowEvaluated   = "risk.shadow_evaluated"

	TypePolicyEvaluated = "policy.evaluated"
	TypeCheckCompleted  = "check.completed"

	TypeQueueDrained = "queue.drained"

	TypeHealthSnapshot       = "health.snapshot"
	TypeHealthChangeSnapshot = "health.change_snapshot"

	TypeComplianceEvaluated = "compliance.evaluated"

	TypeAgentAuthorized = "agent.authorized"
	TypeSoDViolation    = "agent.sod_violation"

	TypeReviewRequested   = "review.requested"
	TypeReviewAssigned    = "review.assigned"
	TypeReviewCompleted   = "review.completed"
	TypeReviewCancelled   = "review.cancelled"
	TypeReviewEscalated   = "review.escalated"
	TypeReviewSLABreached = "review.sla_breached"

	TypeWebhookReceived  = "webhook.received"
	TypeWebhookDuplicate = "webhook.duplicate"

	TypeChainInitialized    = "audit.chain.initialized"
	TypeChainVerified       = "audit.chain.verified"
	TypeChainTamperDetected = "audit.chain.tamper_detected"

	TypeSecurityFindingRecorded = "security.finding_recorded"

	TypeIntakeAccepted  = "intake.accepted"
	TypeIntakeThrottled = "intake.throttled"
	TypeIntakePaused    = "intake.paused"

	TypeFeatureFlagChanged = "feature_flag.changed"

	TypeSemanticConflictDetected = "semantic.conflict_detected"
	TypeSemanticConflictResolved = "semantic.conflict_resolved"

	TypeNotificationSent   = "notification.sent"
	TypeNotificationFailed = "notification.failed"
)
