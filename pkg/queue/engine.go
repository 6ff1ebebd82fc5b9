// Package queue implements the lifecycle engine (spec.md §4.7): the
// public entry points that drive an Intent through
// READY→VALIDATED→QUEUED→{MERGED,REJECTED,BLOCKED}, plus the queue
// drain loop that holds the advisory lock while it runs. Grounded on
// the worker-pool shape of the teacher's session-executor pattern, with
// one SessionExecutor-equivalent call (simulate→risk→policy→merge) per
// queued intent instead of one goroutine per session.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/converge/converge/pkg/authz"
	"github.com/converge/converge/pkg/eventlog"
	"github.com/converge/converge/pkg/models"
	"github.com/converge/converge/pkg/policy"
	"github.com/converge/converge/pkg/risk"
	"github.com/converge/converge/pkg/scm"
	"github.com/converge/converge/pkg/store"
)

// DefaultLockName is the queue's default advisory lock name (spec.md §5).
const DefaultLockName = "queue"

// DefaultMaxRetries is the queue processor's default retry ceiling
// (spec.md §4.7).
const DefaultMaxRetries = 3

// DefaultLockTTL matches spec.md §5's acquire default.
const DefaultLockTTL = 300 * time.Second

// Engine is the lifecycle engine over one Store, one SCM adapter, and
// the risk/policy/authz subsystems it orchestrates.
type Engine struct {
	store      store.Store
	log        *eventlog.Log
	scm        scm.Adapter
	evaluator  *policy.Evaluator
	authorizer *authz.Authorizer
	logger     *slog.Logger
}

// New wires an Engine from its collaborators.
func New(s store.Store, log *eventlog.Log, adapter scm.Adapter, evaluator *policy.Evaluator, authorizer *authz.Authorizer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: s, log: log, scm: adapter, evaluator: evaluator, authorizer: authorizer, logger: logger}
}

// Simulate dry-runs source→target and emits SIMULATION_COMPLETED
// (spec.md §4.7).
func (e *Engine) Simulate(ctx context.Context, traceID, source, target string, intentID *string) (models.Simulation, error) {
	sim, err := e.scm.SimulateMerge(ctx, source, target)
	if err != nil {
		return models.Simulation{}, fmt.Errorf("queue: simulate: %w", err)
	}

	_, _ = e.log.Emit(ctx, eventlog.TypeSimulationCompleted, traceID, intentID, nil, nil, map[string]any{
		"mergeable":     sim.Mergeable,
		"conflicts":     sim.Conflicts,
		"files_changed": sim.FilesChanged,
		"source":        sim.Source,
		"target":        sim.Target,
	})
	return sim, nil
}

// ValidateOptions configures ValidateIntent.
type ValidateOptions struct {
	LastSimulation *models.Simulation // when set, skip re-simulation (use_last_sim)
	SkipChecks     bool
	ChecksPassed   map[string]bool
}

// ValidateIntent runs the simulate(optional)→risk→policy pipeline for
// one intent, transitioning READY→VALIDATED on ALLOW or READY→BLOCKED
// on BLOCK (spec.md §4.7).
func (e *Engine) ValidateIntent(ctx context.Context, traceID string, intent models.Intent, opts ValidateOptions) (models.PolicyEvaluation, error) {
	sim := models.Simulation{}
	if opts.LastSimulation != nil {
		sim = *opts.LastSimulation
	} else {
		s, err := e.Simulate(ctx, traceID, intent.Source, intent.Target, &intent.ID)
		if err != nil {
			return models.PolicyEvaluation{}, err
		}
		sim = s
	}

	checksPassed := opts.ChecksPassed
	if opts.SkipChecks {
		checksPassed = map[string]bool{}
		profiles := models.DefaultProfiles()
		if profile, ok := profiles[intent.RiskLevel]; ok {
			for _, c := range profile.Checks {
				checksPassed[c] = true
			}
		}
	}
	if !opts.SkipChecks {
		_, _ = e.log.EmitSimple(ctx, eventlog.TypeCheckCompleted, traceID, intent.ID, map[string]any{
			"results": checksPassed,
		})
	}

	eval := risk.Evaluate(intent, sim)
	if eval.RiskLevel != intent.RiskLevel {
		_, _ = e.log.EmitSimple(ctx, eventlog.TypeRiskLevelReclassified, traceID, intent.ID, map[string]any{
			"from": intent.RiskLevel,
			"to":   eval.RiskLevel,
		})
		intent.RiskLevel = eval.RiskLevel
	}
	_, _ = e.log.EmitSimple(ctx, eventlog.TypeRiskEvaluated, traceID, intent.ID, map[string]any{
		"risk_score":        eval.RiskScore,
		"damage_score":      eval.DamageScore,
		"propagation_score": eval.PropagationScore,
		"containment_score": eval.ContainmentScore,
		"entropic_load":     eval.EntropicLoad,
		"contextual_value":  eval.ContextualValue,
		"complexity_delta":  eval.ComplexityDelta,
		"path_dependence":   eval.PathDependence,
		"risk_level":        eval.RiskLevel,
		"bombs":             eval.Bombs,
	})

	riskPolicy, err := e.store.GetRiskPolicy(ctx, intent.TenantID)
	if err != nil {
		return models.PolicyEvaluation{}, fmt.Errorf("queue: load risk policy: %w", err)
	}
	gateResult := policy.EvaluateRiskGate(intent.ID, eval, riskPolicy)
	if gateResult.Shadow {
		_, _ = e.log.EmitSimple(ctx, eventlog.TypeRiskShadowEvaluated, traceID, intent.ID, map[string]any{
			"verdict":  gateResult.Verdict,
			"gates":    gateResult.Gates,
			"enforced": gateResult.Enforced,
			"mode":     riskPolicy.Mode,
		})
	}

	result := e.evaluator.Evaluate(intent, sim, eval, checksPassed)
	if gateResult.Enforced && gateResult.Verdict == models.VerdictBlock {
		result.Verdict = models.VerdictBlock
		result.Gates = append(result.Gates, gateResult.Gates...)
	}
	_, _ = e.log.EmitSimple(ctx, eventlog.TypePolicyEvaluated, traceID, intent.ID, map[string]any{
		"verdict": result.Verdict,
		"gates":   result.Gates,
	})

	newStatus := models.StatusBlocked
	if result.Verdict == models.VerdictAllow {
		newStatus = models.StatusValidated
	}
	if err := e.store.UpdateIntentStatus(ctx, intent.ID, newStatus, nil); err != nil {
		return models.PolicyEvaluation{}, fmt.Errorf("queue: update status after validate: %w", err)
	}

	return result, nil
}

// dependenciesSatisfied reports whether every dependency id exists and is
// MERGED (spec.md §4.7 "Dependency rule"). Missing dependencies count as
// unmet.
func (e *Engine) dependenciesSatisfied(ctx context.Context, deps []string) (ok bool, unmet []string, err error) {
	for _, depID := range deps {
		dep, getErr := e.store.GetIntent(ctx, depID)
		if getErr != nil {
			if store.IsNotFound(getErr) {
				unmet = append(unmet, depID)
				continue
			}
			return false, nil, fmt.Errorf("queue: load dependency %s: %w", depID, getErr)
		}
		if dep.Status != models.StatusMerged {
			unmet = append(unmet, depID)
		}
	}
	return len(unmet) == 0, unmet, nil
}

// ProcessOptions configures ProcessQueue.
type ProcessOptions struct {
	Limit       int
	Target      *string
	AutoConfirm bool
	MaxRetries  int
	Holder      string
}

// ProcessResult is one line of ProcessQueue's returned decision list.
type ProcessResult struct {
	IntentID string `json:"intent_id"`
	Decision string `json:"decision"`
	Detail   string `json:"detail,omitempty"`
}

// ProcessQueue drains the queue once: acquires the lock, pulls pending
// intents ordered (priority ASC, id ASC), and advances each through
// dependency check → queue → merge/retry/reject (spec.md §4.7). If the
// lock cannot be acquired, it returns an empty result without side
// effects — lock contention is not retried inside this call.
func (e *Engine) ProcessQueue(ctx context.Context, traceID string, opts ProcessOptions) ([]ProcessResult, error) {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Holder == "" {
		opts.Holder = fmt.Sprintf("queue-worker-%d", time.Now().UnixNano())
	}

	acquired, err := e.store.Acquire(ctx, DefaultLockName, opts.Holder, DefaultLockTTL)
	if err != nil {
		return nil, fmt.Errorf("queue: acquire lock: %w", err)
	}
	if !acquired {
		return nil, nil
	}
	defer func() {
		_, _ = e.store.Release(ctx, DefaultLockName, opts.Holder)
	}()

	pending, err := e.loadPending(ctx, opts)
	if err != nil {
		return nil, err
	}

	var results []ProcessResult
	for _, intent := range pending {
		if opts.Limit > 0 && len(results) >= opts.Limit {
			break
		}
		result, err := e.processOne(ctx, traceID, intent, opts)
		if err != nil {
			e.logger.Error("queue: process intent failed", "intent_id", intent.ID, "error", err)
			continue
		}
		results = append(results, result)
	}

	_, _ = e.log.Emit(ctx, eventlog.TypeQueueDrained, traceID, nil, nil, nil, map[string]any{
		"processed": len(results),
		"holder":    opts.Holder,
	})

	return results, nil
}

func (e *Engine) loadPending(ctx context.Context, opts ProcessOptions) ([]models.Intent, error) {
	var all []models.Intent
	for _, status := range []models.IntentStatus{models.StatusReady, models.StatusValidated, models.StatusQueued} {
		s := status
		intents, err := e.store.ListIntents(ctx, models.IntentFilters{Status: &s, Limit: 1000})
		if err != nil {
			return nil, fmt.Errorf("queue: list pending %s: %w", status, err)
		}
		for _, i := range intents {
			if opts.Target != nil && i.Target != *opts.Target {
				continue
			}
			all = append(all, i)
		}
	}
	// (priority ASC, id ASC), spec.md §4.7 "Ordering".
	for i := 1; i < len(all); i++ {
		for j := i; j > 0; j-- {
			a, b := all[j-1], all[j]
			if a.Priority > b.Priority || (a.Priority == b.Priority && a.ID > b.ID) {
				all[j-1], all[j] = all[j], all[j-1]
			} else {
				break
			}
		}
	}
	return all, nil
}

func (e *Engine) processOne(ctx context.Context, traceID string, intent models.Intent, opts ProcessOptions) (ProcessResult, error) {
	ok, unmet, err := e.dependenciesSatisfied(ctx, intent.Dependencies)
	if err != nil {
		return ProcessResult{}, err
	}
	if !ok {
		_, _ = e.log.EmitSimple(ctx, eventlog.TypeIntentDependencyBlocked, traceID, intent.ID, map[string]any{
			"unmet": unmet,
		})
		return ProcessResult{IntentID: intent.ID, Decision: "dependency_blocked", Detail: fmt.Sprintf("unmet: %v", unmet)}, nil
	}

	switch intent.Status {
	case models.StatusReady:
		result, err := e.ValidateIntent(ctx, traceID, intent, ValidateOptions{SkipChecks: true})
		if err != nil {
			return ProcessResult{}, err
		}
		if result.Verdict == models.VerdictBlock {
			return ProcessResult{IntentID: intent.ID, Decision: "blocked"}, nil
		}
		intent.Status = models.StatusValidated
		fallthrough

	case models.StatusValidated:
		if err := e.store.UpdateIntentStatus(ctx, intent.ID, models.StatusQueued, nil); err != nil {
			return ProcessResult{}, fmt.Errorf("queue: transition to queued: %w", err)
		}
		intent.Status = models.StatusQueued
		fallthrough

	case models.StatusQueued:
		return e.attemptMerge(ctx, traceID, intent, opts)
	}

	return ProcessResult{IntentID: intent.ID, Decision: "skipped"}, nil
}

func (e *Engine) attemptMerge(ctx context.Context, traceID string, intent models.Intent, opts ProcessOptions) (ProcessResult, error) {
	if !opts.AutoConfirm {
		return ProcessResult{IntentID: intent.ID, Decision: "awaiting_confirmation"}, nil
	}

	sha, err := e.scm.ExecuteMergeSafe(ctx, intent.Source, intent.Target)
	if err == nil {
		if confirmErr := e.ConfirmMerge(ctx, traceID, intent.ID, &sha); confirmErr != nil {
			return ProcessResult{}, confirmErr
		}
		return ProcessResult{IntentID: intent.ID, Decision: "merged", Detail: sha}, nil
	}

	retries := intent.Retries + 1
	if retries >= opts.MaxRetries {
		if updErr := e.store.UpdateIntentStatus(ctx, intent.ID, models.StatusRejected, &retries); updErr != nil {
			return ProcessResult{}, fmt.Errorf("queue: transition to rejected: %w", updErr)
		}
		_, _ = e.log.EmitSimple(ctx, eventlog.TypeIntentRejected, traceID, intent.ID, map[string]any{
			"retries":    retries,
			"last_error": err.Error(),
		})
		return ProcessResult{IntentID: intent.ID, Decision: "rejected", Detail: err.Error()}, nil
	}

	if updErr := e.store.UpdateIntentStatus(ctx, intent.ID, models.StatusValidated, &retries); updErr != nil {
		return ProcessResult{}, fmt.Errorf("queue: transition to requeued: %w", updErr)
	}
	_, _ = e.log.EmitSimple(ctx, eventlog.TypeIntentRequeued, traceID, intent.ID, map[string]any{
		"retries":    retries,
		"last_error": err.Error(),
	})
	return ProcessResult{IntentID: intent.ID, Decision: "requeued", Detail: err.Error()}, nil
}

// ConfirmMerge transitions QUEUED→MERGED and emits INTENT_MERGED
// (spec.md §4.7).
func (e *Engine) ConfirmMerge(ctx context.Context, traceID, intentID string, mergedCommit *string) error {
	if err := e.store.UpdateIntentStatus(ctx, intentID, models.StatusMerged, nil); err != nil {
		return fmt.Errorf("queue: confirm merge: %w", err)
	}
	payload := map[string]any{}
	if mergedCommit != nil {
		payload["merged_commit"] = *mergedCommit
	}
	_, _ = e.log.EmitSimple(ctx, eventlog.TypeIntentMerged, traceID, intentID, payload)
	return nil
}

// ResetQueue is the operational escape hatch (spec.md §4.7): optionally
// forces an intent's status and/or clears the queue lock.
func (e *Engine) ResetQueue(ctx context.Context, intentID string, setStatus *models.IntentStatus, clearLock bool) error {
	if setStatus != nil {
		if err := e.store.UpdateIntentStatus(ctx, intentID, *setStatus, nil); err != nil {
			return fmt.Errorf("queue: reset status: %w", err)
		}
	}
	if clearLock {
		if err := e.store.ForceRelease(ctx, DefaultLockName); err != nil {
			return fmt.Errorf("queue: clear lock: %w", err)
		}
	}
	return nil
}

// InspectQueue lists intents matching the given filters for operational
// visibility (spec.md §4.7).
func (e *Engine) InspectQueue(ctx context.Context, f models.IntentFilters) ([]models.Intent, error) {
	intents, err := e.store.ListIntents(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("queue: inspect: %w", err)
	}
	return intents, nil
}
