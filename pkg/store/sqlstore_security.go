package store

import (
	"context"
	"fmt"

	"github.com/converge/converge/pkg/models"
)

// UpsertFinding inserts a normalized scanner finding; on an id collision
// it updates only severity, evidence and confidence.
func (s *SQLStore) UpsertFinding(ctx context.Context, f models.SecurityFinding) error {
	d := s.dialect
	ex := d.ExcludedPrefix()
	cols := []string{"id", "scanner", "category", "severity", "file", "line", "rule", "evidence", "confidence", "intent_id", "tenant_id"}
	q := fmt.Sprintf(`INSERT INTO security_findings (%s) VALUES (%s)
		ON CONFLICT (id) DO UPDATE SET severity = %sseverity, evidence = %sevidence, confidence = %sconfidence`,
		join(cols), placeholders(d, 1, len(cols)), ex, ex, ex)
	_, err := s.db.ExecContext(ctx, q,
		f.ID, f.Scanner, string(f.Category), string(f.Severity), f.File, f.Line, f.Rule,
		f.Evidence, f.Confidence, nullableString(f.IntentID), nullableString(f.TenantID),
	)
	if err != nil {
		return fmt.Errorf("upsert finding %s: %w", f.ID, err)
	}
	return nil
}

// CountFindingsBySeverity aggregates open findings for an intent by severity.
func (s *SQLStore) CountFindingsBySeverity(ctx context.Context, intentID string) (map[models.FindingSeverity]int, error) {
	q := "SELECT severity, COUNT(*) FROM security_findings WHERE intent_id = " + s.dialect.Placeholder(1) + " GROUP BY severity"
	rows, err := s.db.QueryContext(ctx, q, intentID)
	if err != nil {
		return nil, fmt.Errorf("count findings by severity: %w", err)
	}
	defer rows.Close()

	out := map[models.FindingSeverity]int{}
	for rows.Next() {
		var sev string
		var n int
		if err := rows.Scan(&sev, &n); err != nil {
			return nil, fmt.Errorf("scan finding count: %w", err)
		}
		out[models.FindingSeverity(sev)] = n
	}
	return out, rows.Err()
}

func join(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}
