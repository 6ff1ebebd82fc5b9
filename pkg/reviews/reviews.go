// Package reviews implements the review-task lifecycle (spec.md §4.9):
// creation with risk-derived SLA deadlines, assignment/completion/
// cancellation/escalation transitions, and SLA-breach scanning.
package reviews

import (
	"context"
	"fmt"
	"time"

	"github.com/converge/converge/pkg/eventlog"
	"github.com/converge/converge/pkg/models"
	"github.com/converge/converge/pkg/store"
)

// Manager drives review tasks over a Store.
type Manager struct {
	store store.Store
	log   *eventlog.Log
}

// New returns a Manager.
func New(s store.Store, log *eventlog.Log) *Manager {
	return &Manager{store: s, log: log}
}

// RequestReview creates a ReviewTask with an SLA deadline derived from
// the intent's risk level (spec.md §4.9). trigger names why review was
// requested (e.g. "high_risk", "manual").
func (m *Manager) RequestReview(ctx context.Context, traceID string, intent models.Intent, trigger string, reviewer *string, priority int) (models.ReviewTask, error) {
	hours, ok := models.ReviewSLAHours[intent.RiskLevel]
	if !ok {
		hours = models.ReviewSLAHours[models.RiskLow]
	}
	now := time.Now().UTC()

	task := models.ReviewTask{
		ID:          fmt.Sprintf("review-%s-%d", intent.ID, now.UnixNano()),
		IntentID:    intent.ID,
		Status:      models.ReviewPending,
		Reviewer:    reviewer,
		Priority:    priority,
		CreatedAt:   now,
		SLADeadline: now.Add(time.Duration(hours) * time.Hour),
		Trigger:     trigger,
	}
	if reviewer != nil {
		task.Status = models.ReviewAssigned
	}

	if err := m.store.CreateReviewTask(ctx, task); err != nil {
		return models.ReviewTask{}, fmt.Errorf("reviews: create: %w", err)
	}

	_, _ = m.log.EmitSimple(ctx, eventlog.TypeReviewRequested, traceID, intent.ID, map[string]any{
		"review_id":    task.ID,
		"trigger":      trigger,
		"sla_deadline": task.SLADeadline,
	})
	if reviewer != nil {
		_, _ = m.log.EmitSimple(ctx, eventlog.TypeReviewAssigned, traceID, intent.ID, map[string]any{
			"review_id": task.ID,
			"reviewer":  *reviewer,
		})
	}
	return task, nil
}

// Assign sets the reviewer and moves the task to assigned.
func (m *Manager) Assign(ctx context.Context, traceID, reviewID, reviewer string) error {
	task, err := m.store.GetReviewTask(ctx, reviewID)
	if err != nil {
		return fmt.Errorf("reviews: assign: %w", err)
	}
	task.Reviewer = &reviewer
	task.Status = models.ReviewAssigned
	if err := m.store.UpdateReviewTask(ctx, task); err != nil {
		return fmt.Errorf("reviews: assign: %w", err)
	}
	_, _ = m.log.EmitSimple(ctx, eventlog.TypeReviewAssigned, traceID, task.IntentID, map[string]any{
		"review_id": task.ID, "reviewer": reviewer,
	})
	return nil
}

// Complete resolves the task with resolution/notes.
func (m *Manager) Complete(ctx context.Context, traceID, reviewID, resolution, notes string) error {
	task, err := m.store.GetReviewTask(ctx, reviewID)
	if err != nil {
		return fmt.Errorf("reviews: complete: %w", err)
	}
	task.Status = models.ReviewCompleted
	task.Resolution = &resolution
	if notes != "" {
		task.Notes = &notes
	}
	if err := m.store.UpdateReviewTask(ctx, task); err != nil {
		return fmt.Errorf("reviews: complete: %w", err)
	}
	_, _ = m.log.EmitSimple(ctx, eventlog.TypeReviewCompleted, traceID, task.IntentID, map[string]any{
		"review_id": task.ID, "resolution": resolution,
	})
	return nil
}

// Cancel cancels the task with a reason.
func (m *Manager) Cancel(ctx context.Context, traceID, reviewID, reason string) error {
	task, err := m.store.GetReviewTask(ctx, reviewID)
	if err != nil {
		return fmt.Errorf("reviews: cancel: %w", err)
	}
	task.Status = models.ReviewCancelled
	task.Notes = &reason
	if err := m.store.UpdateReviewTask(ctx, task); err != nil {
		return fmt.Errorf("reviews: cancel: %w", err)
	}
	_, _ = m.log.EmitSimple(ctx, eventlog.TypeReviewCancelled, traceID, task.IntentID, map[string]any{
		"review_id": task.ID, "reason": reason,
	})
	return nil
}

// Escalate flags the task as escalated with a reason.
func (m *Manager) Escalate(ctx context.Context, traceID, reviewID, reason string) error {
	task, err := m.store.GetReviewTask(ctx, reviewID)
	if err != nil {
		return fmt.Errorf("reviews: escalate: %w", err)
	}
	task.Status = models.ReviewEscalated
	task.Notes = &reason
	if err := m.store.UpdateReviewTask(ctx, task); err != nil {
		return fmt.Errorf("reviews: escalate: %w", err)
	}
	_, _ = m.log.EmitSimple(ctx, eventlog.TypeReviewEscalated, traceID, task.IntentID, map[string]any{
		"review_id": task.ID, "reason": reason,
	})
	return nil
}

// CheckSLABreaches scans open tasks (pending/assigned) and emits
// REVIEW_SLA_BREACHED for every one past its deadline.
func (m *Manager) CheckSLABreaches(ctx context.Context, traceID string) ([]models.ReviewTask, error) {
	var breached []models.ReviewTask
	now := time.Now().UTC()

	for _, status := range []models.ReviewStatus{models.ReviewPending, models.ReviewAssigned} {
		s := status
		tasks, err := m.store.ListReviewTasks(ctx, &s)
		if err != nil {
			return nil, fmt.Errorf("reviews: check sla: %w", err)
		}
		for _, t := range tasks {
			if t.SLADeadline.Before(now) {
				breached = append(breached, t)
				_, _ = m.log.EmitSimple(ctx, eventlog.TypeReviewSLABreached, traceID, t.IntentID, map[string]any{
					"review_id":    t.ID,
					"sla_deadline": t.SLADeadline,
				})
			}
		}
	}
	return breached, nil
}
