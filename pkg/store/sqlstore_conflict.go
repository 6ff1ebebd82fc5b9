package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/converge/converge/pkg/models"
)

const conflictColumns = `id, intent_a, intent_b, similarity, scope_overlap, target_overlap, combined_score, detected_at`

func scanConflictCandidate(row interface{ Scan(...any) error }) (models.ConflictCandidate, error) {
	var c models.ConflictCandidate
	var targetOverlap int
	if err := row.Scan(&c.ID, &c.IntentA, &c.IntentB, &c.Similarity, &c.ScopeOverlap, &targetOverlap, &c.CombinedScore, &c.DetectedAt); err != nil {
		return models.ConflictCandidate{}, err
	}
	c.TargetOverlap = targetOverlap != 0
	return c, nil
}

// RecordConflictCandidate persists a detected conflict pair (spec.md
// §4.11). Candidates are append-only: a repeated scan over the same pair
// records a fresh row rather than overwriting, preserving the history of
// when similarity crossed the threshold.
func (s *SQLStore) RecordConflictCandidate(ctx context.Context, c models.ConflictCandidate) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	targetOverlap := 0
	if c.TargetOverlap {
		targetOverlap = 1
	}
	d := s.dialect
	q := fmt.Sprintf(`INSERT INTO conflict_candidates (%s) VALUES (%s)`, conflictColumns, placeholders(d, 1, 8))
	_, err := s.db.ExecContext(ctx, q,
		c.ID, c.IntentA, c.IntentB, c.Similarity, c.ScopeOverlap, targetOverlap, c.CombinedScore, c.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("record conflict candidate %s/%s: %w", c.IntentA, c.IntentB, err)
	}
	return nil
}

// ListConflictCandidates lists recorded candidates, optionally filtered
// to those naming intentID on either side, newest first.
func (s *SQLStore) ListConflictCandidates(ctx context.Context, intentID *string) ([]models.ConflictCandidate, error) {
	q := "SELECT " + conflictColumns + " FROM conflict_candidates"
	var args []any
	if intentID != nil {
		d := s.dialect
		q += fmt.Sprintf(" WHERE intent_a = %s OR intent_b = %s", d.Placeholder(1), d.Placeholder(2))
		args = append(args, *intentID, *intentID)
	}
	q += " ORDER BY detected_at DESC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list conflict candidates: %w", err)
	}
	defer rows.Close()

	var out []models.ConflictCandidate
	for rows.Next() {
		c, err := scanConflictCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conflict candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
