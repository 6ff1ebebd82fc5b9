// Package authz implements the authorization layer (spec.md §4.8):
// agent-policy evaluation and separation-of-duties ownership checks.
package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/converge/converge/pkg/eventlog"
	"github.com/converge/converge/pkg/models"
	"github.com/converge/converge/pkg/store"
)

// decodePayload round-trips an event's map[string]any payload into dst
// via JSON, the same trick store/sqlstore.go uses for its own generic
// payload (un)marshaling.
func decodePayload(payload map[string]any, dst any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

// ComplianceChecker reports whether a tenant's current compliance report
// is passing, so Authorize can honor require_compliance_pass without
// importing the projections package directly.
type ComplianceChecker interface {
	IsPassing(ctx context.Context, tenantID *string) (bool, error)
}

// Authorizer evaluates agent policies against intents (spec.md §4.8).
type Authorizer struct {
	store      store.Store
	log        *eventlog.Log
	compliance ComplianceChecker
}

// New returns an Authorizer. compliance may be nil if no tenant requires
// require_compliance_pass, in which case that gate is treated as passing.
func New(s store.Store, log *eventlog.Log, compliance ComplianceChecker) *Authorizer {
	return &Authorizer{store: s, log: log, compliance: compliance}
}

func effectiveLimits(p models.AgentPolicy, action string) models.EffectiveLimits {
	eff := models.EffectiveLimits{
		MaxRiskScore:     p.MaxRiskScore,
		MaxBlastSeverity: p.MaxBlastSeverity,
		MinTestCoverage:  p.MinTestCoverage,
	}
	if override, ok := p.ActionOverrides[action]; ok {
		if override.MaxRiskScore != nil {
			eff.MaxRiskScore = *override.MaxRiskScore
		}
		if override.MaxBlastSeverity != nil {
			eff.MaxBlastSeverity = *override.MaxBlastSeverity
		}
		if override.MinTestCoverage != nil {
			eff.MinTestCoverage = *override.MinTestCoverage
		}
	}
	return eff
}

var blastRank = map[string]int{"low": 0, "medium": 1, "high": 2, "critical": 3}

func contains(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}

// Authorize runs the eight-step decision in spec.md §4.8. It never
// returns a non-nil error for a policy denial — denial is structured
// data in the returned AuthDecision, not a failure.
func (a *Authorizer) Authorize(ctx context.Context, traceID, agentID, action, intentID string, tenantID *string, humanApprovals int) (models.AuthDecision, error) {
	policy, err := a.store.GetAgentPolicy(ctx, agentID, tenantID)
	if err != nil {
		if !store.IsNotFound(err) {
			return models.AuthDecision{}, fmt.Errorf("authz: load policy: %w", err)
		}
		policy = models.DefaultAgentPolicy(agentID, tenantID)
	}

	var reasons []string
	allowed := true

	if policy.ExpiresAt != nil && policy.ExpiresAt.Before(time.Now().UTC()) {
		allowed = false
		reasons = append(reasons, "agent policy expired")
	}

	eff := effectiveLimits(policy, action)

	if !contains(policy.AllowActions, action) {
		allowed = false
		reasons = append(reasons, fmt.Sprintf("Action '%s' not in allowed actions: %v", action, policy.AllowActions))
	}

	intent, err := a.store.GetIntent(ctx, intentID)
	if err != nil && !store.IsNotFound(err) {
		return models.AuthDecision{}, fmt.Errorf("authz: load intent: %w", err)
	}

	riskEval, hasRisk, err := a.latestRiskEval(ctx, intentID)
	if err != nil {
		return models.AuthDecision{}, err
	}
	if hasRisk {
		if riskEval.RiskScore > eff.MaxRiskScore {
			allowed = false
			reasons = append(reasons, fmt.Sprintf("risk_score %.1f exceeds max_risk_score %.1f", riskEval.RiskScore, eff.MaxRiskScore))
		}
		blast := models.BlastSeverity(riskEval.DamageScore)
		if blastRank[blast] > blastRank[eff.MaxBlastSeverity] {
			allowed = false
			reasons = append(reasons, fmt.Sprintf("blast severity %s exceeds max %s", blast, eff.MaxBlastSeverity))
		}
	}

	if policy.RequireCompliancePass && a.compliance != nil {
		passing, err := a.compliance.IsPassing(ctx, tenantID)
		if err != nil {
			return models.AuthDecision{}, fmt.Errorf("authz: compliance check: %w", err)
		}
		if !passing {
			allowed = false
			reasons = append(reasons, "compliance report not passing")
		}
	}

	if policy.RequireHumanApproval && humanApprovals < 1 {
		allowed = false
		reasons = append(reasons, "Human approval required but none provided")
	}

	if intent.RiskLevel == models.RiskCritical && policy.RequireDualApprovalOnCritical && humanApprovals < 2 {
		allowed = false
		reasons = append(reasons, "dual human approval required for critical-risk intent")
	}

	decision := models.AuthDecision{
		Allowed:         allowed,
		Reasons:         reasons,
		EffectiveLimits: eff,
		ATL:             policy.ATL,
		HumanApprovals:  humanApprovals,
	}

	if a.log != nil {
		_, _ = a.log.EmitSimple(ctx, eventlog.TypeAgentAuthorized, traceID, intentID, map[string]any{
			"agent_id":         agentID,
			"action":           action,
			"allowed":          decision.Allowed,
			"reasons":          decision.Reasons,
			"effective_limits": decision.EffectiveLimits,
			"atl":              decision.ATL,
			"human_approvals":  decision.HumanApprovals,
		})
	}

	return decision, nil
}

func (a *Authorizer) latestRiskEval(ctx context.Context, intentID string) (models.RiskEval, bool, error) {
	events, err := a.store.QueryEvents(ctx, models.EventFilters{
		EventType: strPtr(eventlog.TypeRiskEvaluated),
		IntentID:  strPtr(intentID),
	}, 1)
	if err != nil {
		return models.RiskEval{}, false, fmt.Errorf("authz: load latest risk eval: %w", err)
	}
	if len(events) == 0 {
		return models.RiskEval{}, false, nil
	}
	var eval models.RiskEval
	if err := decodePayload(events[0].Payload, &eval); err != nil {
		return models.RiskEval{}, false, fmt.Errorf("authz: decode risk eval payload: %w", err)
	}
	return eval, true, nil
}

func strPtr(s string) *string { return &s }

// CheckSoD denies when action requires approve/merge rights and agentID
// owns any of the touched files under the tenant's ownership config
// (spec.md §4.8 "Ownership / separation of duties").
func (a *Authorizer) CheckSoD(ctx context.Context, traceID, agentID, action string, files []string, tenantID *string) (bool, error) {
	if action != "approve" && action != "merge" {
		return true, nil
	}

	owners, err := a.store.GetOwnership(ctx, tenantID)
	if err != nil && !store.IsNotFound(err) {
		return false, fmt.Errorf("authz: load ownership: %w", err)
	}

	for _, file := range files {
		for _, rule := range owners.Rules {
			matched, _ := filepath.Match(rule.Glob, file)
			if matched && contains(rule.Owners, agentID) {
				if a.log != nil {
					_, _ = a.log.Emit(ctx, eventlog.TypeSoDViolation, traceID, nil, strPtr(agentID), tenantID, map[string]any{
						"agent_id": agentID,
						"action":   action,
						"file":     file,
						"glob":     rule.Glob,
					})
				}
				return false, nil
			}
		}
	}
	return true, nil
}
