// Package projections computes read models by scanning events and
// intents at query time (spec.md §4.10); nothing here is persisted.
package projections

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/converge/converge/pkg/eventlog"
	"github.com/converge/converge/pkg/models"
	"github.com/converge/converge/pkg/store"
)

// Reader computes projections over a Store.
type Reader struct {
	store store.Store
}

// New returns a Reader.
func New(s store.Store) *Reader {
	return &Reader{store: s}
}

var pendingStatuses = []models.IntentStatus{models.StatusReady, models.StatusValidated, models.StatusQueued}

// QueueState returns the pending-intent read model (spec.md §4.10).
func (r *Reader) QueueState(ctx context.Context, tenantID *string) (models.QueueState, error) {
	var pending []models.Intent
	counts := map[models.IntentStatus]int{}
	for _, status := range pendingStatuses {
		s := status
		items, err := r.store.ListIntents(ctx, models.IntentFilters{Status: &s, TenantID: tenantID})
		if err != nil {
			return models.QueueState{}, fmt.Errorf("projections: queue state: %w", err)
		}
		counts[status] = len(items)
		pending = append(pending, items...)
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].Priority != pending[j].Priority {
			return pending[i].Priority < pending[j].Priority
		}
		return pending[i].ID < pending[j].ID
	})
	return models.QueueState{Pending: pending, CountsByStatus: counts}, nil
}

// RepoHealth computes the composite repository health score (spec.md §4.10):
// mergeable rate and entropy average from recent SIMULATION_COMPLETED /
// RISK_EVALUATED events, active count from intent status, and 24h
// merge/rejection counts from INTENT_MERGED / INTENT_REJECTED events.
func (r *Reader) RepoHealth(ctx context.Context, tenantID *string) (models.RepoHealth, error) {
	since := time.Now().UTC().Add(-24 * time.Hour)

	simType := eventlog.TypeSimulationCompleted
	simEvents, err := r.store.QueryEvents(ctx, models.EventFilters{EventType: &simType, TenantID: tenantID, Since: &since}, 0)
	if err != nil {
		return models.RepoHealth{}, fmt.Errorf("projections: repo health: %w", err)
	}
	var mergeableCount int
	for _, e := range simEvents {
		if v, ok := e.Payload["mergeable"].(bool); ok && v {
			mergeableCount++
		}
	}
	mergeableRate := 1.0
	if len(simEvents) > 0 {
		mergeableRate = float64(mergeableCount) / float64(len(simEvents))
	}

	riskType := eventlog.TypeRiskEvaluated
	riskEvents, err := r.store.QueryEvents(ctx, models.EventFilters{EventType: &riskType, TenantID: tenantID, Since: &since}, 0)
	if err != nil {
		return models.RepoHealth{}, fmt.Errorf("projections: repo health: %w", err)
	}
	var entropySum float64
	for _, e := range riskEvents {
		if v, ok := e.Payload["entropic_load"].(float64); ok {
			entropySum += v
		}
	}
	entropyAvg := 0.0
	if len(riskEvents) > 0 {
		entropyAvg = entropySum / float64(len(riskEvents))
	}

	activeCount := 0
	for _, status := range pendingStatuses {
		s := status
		items, err := r.store.ListIntents(ctx, models.IntentFilters{Status: &s, TenantID: tenantID})
		if err != nil {
			return models.RepoHealth{}, fmt.Errorf("projections: repo health: %w", err)
		}
		activeCount += len(items)
	}

	mergedType := eventlog.TypeIntentMerged
	merged, err := r.store.CountEvents(ctx, models.EventFilters{EventType: &mergedType, TenantID: tenantID, Since: &since})
	if err != nil {
		return models.RepoHealth{}, fmt.Errorf("projections: repo health: %w", err)
	}
	rejectedType := eventlog.TypeIntentRejected
	rejected, err := r.store.CountEvents(ctx, models.EventFilters{EventType: &rejectedType, TenantID: tenantID, Since: &since})
	if err != nil {
		return models.RepoHealth{}, fmt.Errorf("projections: repo health: %w", err)
	}

	score := mergeableRate*60 + clamp100(100-entropyAvg)*0.4
	if activeCount > 50 {
		score -= 10
	}
	if rejected > merged && rejected > 0 {
		score -= 10
	}
	score = clamp100(score)

	return models.RepoHealth{
		Score:             round1(score),
		Status:            statusFor(score),
		MergeableRate:     round1(mergeableRate),
		EntropyAverage:    round1(entropyAvg),
		ActiveIntentCount: activeCount,
		Merged24h:         merged,
		Rejected24h:       rejected,
	}, nil
}

// ChangeHealth derives an intent's latest risk+policy+simulation state
// (spec.md §4.10).
func (r *Reader) ChangeHealth(ctx context.Context, intentID string) (models.ChangeHealth, error) {
	intent, err := r.store.GetIntent(ctx, intentID)
	if err != nil {
		return models.ChangeHealth{}, fmt.Errorf("projections: change health: %w", err)
	}

	riskType := eventlog.TypeRiskEvaluated
	riskEvents, err := r.store.QueryEvents(ctx, models.EventFilters{EventType: &riskType, IntentID: &intentID}, 1)
	if err != nil {
		return models.ChangeHealth{}, fmt.Errorf("projections: change health: %w", err)
	}
	var riskScore float64
	if len(riskEvents) > 0 {
		if v, ok := riskEvents[0].Payload["risk_score"].(float64); ok {
			riskScore = v
		}
	}

	policyType := eventlog.TypePolicyEvaluated
	policyEvents, err := r.store.QueryEvents(ctx, models.EventFilters{EventType: &policyType, IntentID: &intentID}, 1)
	if err != nil {
		return models.ChangeHealth{}, fmt.Errorf("projections: change health: %w", err)
	}
	verdict := models.VerdictAllow
	if len(policyEvents) > 0 {
		if v, ok := policyEvents[0].Payload["verdict"].(string); ok {
			verdict = models.Verdict(v)
		}
	}

	simType := eventlog.TypeSimulationCompleted
	simEvents, err := r.store.QueryEvents(ctx, models.EventFilters{EventType: &simType, IntentID: &intentID}, 1)
	if err != nil {
		return models.ChangeHealth{}, fmt.Errorf("projections: change health: %w", err)
	}
	mergeable := true
	if len(simEvents) > 0 {
		if v, ok := simEvents[0].Payload["mergeable"].(bool); ok {
			mergeable = v
		}
	}

	return models.ChangeHealth{
		IntentID:  intentID,
		RiskLevel: intent.RiskLevel,
		RiskScore: riskScore,
		Verdict:   verdict,
		Mergeable: mergeable,
	}, nil
}

// ComplianceReport evaluates the five standing compliance checks (spec.md §4.10).
func (r *Reader) ComplianceReport(ctx context.Context, tenantID *string) (models.ComplianceReport, error) {
	thresholds, err := r.store.GetComplianceThresholds(ctx, tenantID)
	if err != nil && !store.IsNotFound(err) {
		return models.ComplianceReport{}, fmt.Errorf("projections: compliance report: %w", err)
	}
	if thresholds.MergeableRateMin == 0 {
		thresholds = models.DefaultComplianceThresholds()
	}

	health, err := r.RepoHealth(ctx, tenantID)
	if err != nil {
		return models.ComplianceReport{}, err
	}

	since := time.Now().UTC().Add(-24 * time.Hour)
	simType := eventlog.TypeSimulationCompleted
	simEvents, err := r.store.QueryEvents(ctx, models.EventFilters{EventType: &simType, TenantID: tenantID, Since: &since}, 0)
	if err != nil {
		return models.ComplianceReport{}, fmt.Errorf("projections: compliance report: %w", err)
	}
	var conflictCount int
	for _, e := range simEvents {
		if conflicts, ok := e.Payload["conflicts"].([]any); ok && len(conflicts) > 0 {
			conflictCount++
		}
	}
	conflictRate := 0.0
	if len(simEvents) > 0 {
		conflictRate = float64(conflictCount) / float64(len(simEvents))
	}

	retriesTotal, queueTracked, err := r.retriesAndQueueDepth(ctx, tenantID)
	if err != nil {
		return models.ComplianceReport{}, err
	}

	debt, err := r.VerificationDebt(ctx, tenantID)
	if err != nil {
		return models.ComplianceReport{}, err
	}

	checks := []models.ComplianceCheck{
		gteCheck("mergeable_rate", health.MergeableRate, thresholds.MergeableRateMin),
		lteCheck("conflict_rate", conflictRate, thresholds.ConflictRateMax),
		lteCheck("retries_total", float64(retriesTotal), float64(thresholds.RetriesTotalMax)),
		lteCheck("queue_tracked", float64(queueTracked), float64(thresholds.QueueTrackedMax)),
		lteCheck("debt_score", debt.Score, thresholds.DebtScoreMax),
	}
	passing := true
	for _, c := range checks {
		if !c.Passed {
			passing = false
		}
	}
	return models.ComplianceReport{TenantID: tenantID, Checks: checks, Passing: passing}, nil
}

func (r *Reader) retriesAndQueueDepth(ctx context.Context, tenantID *string) (retriesTotal, queueTracked int, err error) {
	for _, status := range pendingStatuses {
		s := status
		items, listErr := r.store.ListIntents(ctx, models.IntentFilters{Status: &s, TenantID: tenantID})
		if listErr != nil {
			return 0, 0, fmt.Errorf("projections: retries/queue depth: %w", listErr)
		}
		queueTracked += len(items)
		for _, it := range items {
			retriesTotal += it.Retries
		}
	}
	return retriesTotal, queueTracked, nil
}

// VerificationDebt computes the weighted backlog-pressure score (spec.md §4.10).
func (r *Reader) VerificationDebt(ctx context.Context, tenantID *string) (models.VerificationDebt, error) {
	since := time.Now().UTC().Add(-24 * time.Hour)

	health, err := r.RepoHealth(ctx, tenantID)
	if err != nil {
		return models.VerificationDebt{}, err
	}
	staleness := clamp100(health.EntropyAverage * 2)

	_, queueTracked, err := r.retriesAndQueueDepth(ctx, tenantID)
	if err != nil {
		return models.VerificationDebt{}, err
	}
	queuePressure := clamp100(float64(queueTracked) / 10 * 100 / 10)

	pendingReview := models.ReviewPending
	pending, err := r.store.ListReviewTasks(ctx, &pendingReview)
	if err != nil {
		return models.VerificationDebt{}, fmt.Errorf("projections: verification debt: %w", err)
	}
	reviewBacklog := clamp100(float64(len(pending)) * 5)

	simType := eventlog.TypeSimulationCompleted
	simEvents, err := r.store.QueryEvents(ctx, models.EventFilters{EventType: &simType, TenantID: tenantID, Since: &since}, 0)
	if err != nil {
		return models.VerificationDebt{}, fmt.Errorf("projections: verification debt: %w", err)
	}
	var mergeConflicts int
	for _, e := range simEvents {
		if conflicts, ok := e.Payload["conflicts"].([]any); ok && len(conflicts) > 0 {
			mergeConflicts++
		}
	}
	mergeConflictRate := 0.0
	if len(simEvents) > 0 {
		mergeConflictRate = float64(mergeConflicts) / float64(len(simEvents))
	}

	semanticType := eventlog.TypeSemanticConflictDetected
	semanticConflicts, err := r.store.CountEvents(ctx, models.EventFilters{EventType: &semanticType, TenantID: tenantID, Since: &since})
	if err != nil {
		return models.VerificationDebt{}, fmt.Errorf("projections: verification debt: %w", err)
	}
	semanticRate := clamp01(float64(semanticConflicts) / 10)
	conflictPressure := clamp100((mergeConflictRate*0.70 + semanticRate*0.30) * 100)

	retriesTotal, _, err := r.retriesAndQueueDepth(ctx, tenantID)
	if err != nil {
		return models.VerificationDebt{}, err
	}
	retryPressure := clamp100(float64(retriesTotal) / 20 * 100)

	score := staleness*0.25 + queuePressure*0.20 + reviewBacklog*0.25 + conflictPressure*0.15 + retryPressure*0.15
	score = clamp100(score)

	return models.VerificationDebt{
		Score:            round1(score),
		Status:           debtStatusFor(score),
		Staleness:        round1(staleness),
		QueuePressure:    round1(queuePressure),
		ReviewBacklog:    round1(reviewBacklog),
		ConflictPressure: round1(conflictPressure),
		RetryPressure:    round1(retryPressure),
	}, nil
}

// Trends returns time series from RISK_EVALUATED / HEALTH_SNAPSHOT /
// HEALTH_CHANGE_SNAPSHOT events over the window (spec.md §4.10).
func (r *Reader) Trends(ctx context.Context, tenantID *string, window time.Duration) (models.Trends, error) {
	since := time.Now().UTC().Add(-window)

	riskType := eventlog.TypeRiskEvaluated
	riskEvents, err := r.store.QueryEvents(ctx, models.EventFilters{EventType: &riskType, TenantID: tenantID, Since: &since}, 0)
	if err != nil {
		return models.Trends{}, fmt.Errorf("projections: trends: %w", err)
	}
	var riskPoints []models.TrendPoint
	for _, e := range riskEvents {
		if v, ok := e.Payload["risk_score"].(float64); ok {
			riskPoints = append(riskPoints, models.TrendPoint{Timestamp: e.Timestamp, Value: v})
		}
	}

	healthType := eventlog.TypeHealthSnapshot
	healthEvents, err := r.store.QueryEvents(ctx, models.EventFilters{EventType: &healthType, TenantID: tenantID, Since: &since}, 0)
	if err != nil {
		return models.Trends{}, fmt.Errorf("projections: trends: %w", err)
	}
	var healthPoints []models.TrendPoint
	for _, e := range healthEvents {
		if v, ok := e.Payload["score"].(float64); ok {
			healthPoints = append(healthPoints, models.TrendPoint{Timestamp: e.Timestamp, Value: v})
		}
	}

	changeType := eventlog.TypeHealthChangeSnapshot
	changeEvents, err := r.store.QueryEvents(ctx, models.EventFilters{EventType: &changeType, TenantID: tenantID, Since: &since}, 0)
	if err != nil {
		return models.Trends{}, fmt.Errorf("projections: trends: %w", err)
	}
	var changePoints []models.TrendPoint
	for _, e := range changeEvents {
		if v, ok := e.Payload["risk_score"].(float64); ok {
			changePoints = append(changePoints, models.TrendPoint{Timestamp: e.Timestamp, Value: v})
		}
	}

	return models.Trends{RiskScores: riskPoints, HealthScores: healthPoints, ChangeHealth: changePoints}, nil
}

// Predictions computes heuristic early-warning signals (spec.md §4.10).
func (r *Reader) Predictions(ctx context.Context, tenantID *string) (models.Predictions, error) {
	now := time.Now().UTC()
	window0, window1 := now.Add(-24*time.Hour), now.Add(-48*time.Hour)

	simType := eventlog.TypeSimulationCompleted
	recent, err := r.store.QueryEvents(ctx, models.EventFilters{EventType: &simType, TenantID: tenantID, Since: &window0}, 0)
	if err != nil {
		return models.Predictions{}, fmt.Errorf("projections: predictions: %w", err)
	}
	prior, err := r.store.QueryEvents(ctx, models.EventFilters{EventType: &simType, TenantID: tenantID, Since: &window1, Until: &window0}, 0)
	if err != nil {
		return models.Predictions{}, fmt.Errorf("projections: predictions: %w", err)
	}
	recentRate, priorRate := conflictRate(recent), conflictRate(prior)
	risingConflict := len(recent) >= 3 && (recentRate-priorRate) > 0.1

	riskType := eventlog.TypeRiskEvaluated
	recentRisk, err := r.store.QueryEvents(ctx, models.EventFilters{EventType: &riskType, TenantID: tenantID, Since: &window0}, 0)
	if err != nil {
		return models.Predictions{}, fmt.Errorf("projections: predictions: %w", err)
	}
	priorRisk, err := r.store.QueryEvents(ctx, models.EventFilters{EventType: &riskType, TenantID: tenantID, Since: &window1, Until: &window0}, 0)
	if err != nil {
		return models.Predictions{}, fmt.Errorf("projections: predictions: %w", err)
	}
	recentEntropy, priorEntropy := avgEntropy(recentRisk), avgEntropy(priorRisk)
	entropySpike := len(recentRisk) >= 3 && recentEntropy > 15 && priorEntropy > 0 && recentEntropy > priorEntropy*1.2

	requeuedType := eventlog.TypeIntentRequeued
	requeues, err := r.store.CountEvents(ctx, models.EventFilters{EventType: &requeuedType, TenantID: tenantID, Since: &window0})
	if err != nil {
		return models.Predictions{}, fmt.Errorf("projections: predictions: %w", err)
	}
	queueStalling := requeues > 5

	mergedType, rejectedType := eventlog.TypeIntentMerged, eventlog.TypeIntentRejected
	merged, err := r.store.CountEvents(ctx, models.EventFilters{EventType: &mergedType, TenantID: tenantID, Since: &window0})
	if err != nil {
		return models.Predictions{}, fmt.Errorf("projections: predictions: %w", err)
	}
	rejected, err := r.store.CountEvents(ctx, models.EventFilters{EventType: &rejectedType, TenantID: tenantID, Since: &window0})
	if err != nil {
		return models.Predictions{}, fmt.Errorf("projections: predictions: %w", err)
	}
	total := merged + rejected
	highRejection := total > 0 && float64(rejected)/float64(total) > 0.40

	var cascade, spiral, thermal bool
	for _, e := range recentRisk {
		bombs, ok := e.Payload["bombs"].([]any)
		if !ok {
			continue
		}
		for _, b := range bombs {
			bomb, ok := b.(map[string]any)
			if !ok {
				continue
			}
			switch bomb["kind"] {
			case "cascade":
				cascade = true
			case "spiral":
				spiral = true
			case "thermal_death":
				thermal = true
			}
		}
	}

	return models.Predictions{
		RisingConflictRate: risingConflict,
		EntropySpike:       entropySpike,
		QueueStalling:      queueStalling,
		HighRejectionRate:  highRejection,
		CascadeRisk:        cascade,
		SpiralRisk:         spiral,
		ThermalDeathRisk:   thermal,
	}, nil
}

func conflictRate(events []models.Event) float64 {
	if len(events) == 0 {
		return 0
	}
	var n int
	for _, e := range events {
		if conflicts, ok := e.Payload["conflicts"].([]any); ok && len(conflicts) > 0 {
			n++
		}
	}
	return float64(n) / float64(len(events))
}

func avgEntropy(events []models.Event) float64 {
	if len(events) == 0 {
		return 0
	}
	var sum float64
	for _, e := range events {
		if v, ok := e.Payload["entropic_load"].(float64); ok {
			sum += v
		}
	}
	return sum / float64(len(events))
}

func gteCheck(name string, value, threshold float64) models.ComplianceCheck {
	return models.ComplianceCheck{Name: name, Value: round1(value), Threshold: threshold, Op: "gte", Passed: value >= threshold}
}

func lteCheck(name string, value, threshold float64) models.ComplianceCheck {
	return models.ComplianceCheck{Name: name, Value: round1(value), Threshold: threshold, Op: "lte", Passed: value <= threshold}
}

func statusFor(score float64) models.HealthStatus {
	switch {
	case score >= 70:
		return models.HealthGreen
	case score >= 40:
		return models.HealthYellow
	default:
		return models.HealthRed
	}
}

func debtStatusFor(score float64) models.HealthStatus {
	switch {
	case score <= 30:
		return models.HealthGreen
	case score <= 70:
		return models.HealthYellow
	default:
		return models.HealthRed
	}
}

func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
