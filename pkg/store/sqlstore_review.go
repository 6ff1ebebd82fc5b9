package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/converge/converge/pkg/models"
)

const reviewColumns = `id, intent_id, status, reviewer, priority, created_at, sla_deadline, trigger, resolution, notes`

func scanReviewTask(row interface{ Scan(...any) error }) (models.ReviewTask, error) {
	var t models.ReviewTask
	var status string
	var reviewer, resolution, notes sql.NullString
	if err := row.Scan(&t.ID, &t.IntentID, &status, &reviewer, &t.Priority, &t.CreatedAt, &t.SLADeadline, &t.Trigger, &resolution, &notes); err != nil {
		return models.ReviewTask{}, err
	}
	t.Status = models.ReviewStatus(status)
	t.Reviewer = stringPtr(reviewer)
	t.Resolution = stringPtr(resolution)
	t.Notes = stringPtr(notes)
	return t, nil
}

// CreateReviewTask inserts a new review task row.
func (s *SQLStore) CreateReviewTask(ctx context.Context, t models.ReviewTask) error {
	d := s.dialect
	q := fmt.Sprintf(`INSERT INTO review_tasks (%s) VALUES (%s)`, reviewColumns, placeholders(d, 1, 10))
	_, err := s.db.ExecContext(ctx, q,
		t.ID, t.IntentID, string(t.Status), nullableString(t.Reviewer), t.Priority,
		t.CreatedAt, t.SLADeadline, t.Trigger, nullableString(t.Resolution), nullableString(t.Notes),
	)
	if err != nil {
		return fmt.Errorf("create review task %s: %w", t.ID, err)
	}
	return nil
}

// GetReviewTask fetches one review task by id.
func (s *SQLStore) GetReviewTask(ctx context.Context, id string) (models.ReviewTask, error) {
	q := "SELECT " + reviewColumns + " FROM review_tasks WHERE id = " + s.dialect.Placeholder(1)
	row := s.db.QueryRowContext(ctx, q, id)
	t, err := scanReviewTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.ReviewTask{}, fmt.Errorf("get review task %s: %w", id, ErrNotFound)
		}
		return models.ReviewTask{}, err
	}
	return t, nil
}

// UpdateReviewTask overwrites a review task's mutable fields.
func (s *SQLStore) UpdateReviewTask(ctx context.Context, t models.ReviewTask) error {
	d := s.dialect
	q := fmt.Sprintf(`UPDATE review_tasks SET status = %s, reviewer = %s, resolution = %s, notes = %s WHERE id = %s`,
		d.Placeholder(1), d.Placeholder(2), d.Placeholder(3), d.Placeholder(4), d.Placeholder(5))
	_, err := s.db.ExecContext(ctx, q, string(t.Status), nullableString(t.Reviewer), nullableString(t.Resolution), nullableString(t.Notes), t.ID)
	if err != nil {
		return fmt.Errorf("update review task %s: %w", t.ID, err)
	}
	return nil
}

// ListReviewTasks lists review tasks, optionally filtered by status.
func (s *SQLStore) ListReviewTasks(ctx context.Context, status *models.ReviewStatus) ([]models.ReviewTask, error) {
	q := "SELECT " + reviewColumns + " FROM review_tasks"
	var args []any
	if status != nil {
		q += " WHERE status = " + s.dialect.Placeholder(1)
		args = append(args, string(*status))
	}
	q += " ORDER BY sla_deadline ASC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list review tasks: %w", err)
	}
	defer rows.Close()

	var out []models.ReviewTask
	for rows.Next() {
		t, err := scanReviewTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
