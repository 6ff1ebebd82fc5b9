package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/converge/converge/pkg/models"
)

// UpsertIntent inserts or updates an intent keyed by id.
func (s *SQLStore) UpsertIntent(ctx context.Context, i models.Intent) (models.Intent, error) {
	d := s.dialect
	semantic, err := marshalJSON(i.Semantic)
	if err != nil {
		return models.Intent{}, err
	}
	technical, err := marshalJSON(i.Technical)
	if err != nil {
		return models.Intent{}, err
	}

	cols := []string{
		"id", "tenant_id", "plan_id", "source", "target", "status", "retries",
		"created_at", "created_by", "risk_level", "priority", "origin_type",
		"semantic", "technical", "checks_required", "dependencies",
	}
	updateCols := cols[1:] // everything but id
	q := fmt.Sprintf(`INSERT INTO intents (%s) VALUES (%s)
		ON CONFLICT (id) DO UPDATE SET %s`,
		strings.Join(cols, ", "),
		placeholders(d, 1, len(cols)),
		namedPlaceholders(d, updateCols, len(cols)+1),
	)

	args := []any{
		i.ID, nullableString(i.TenantID), nullableString(i.PlanID), i.Source, i.Target,
		string(i.Status), i.Retries, i.CreatedAt, i.CreatedBy, string(i.RiskLevel), i.Priority,
		i.OriginType, semantic, technical, marshalStrings(i.ChecksRequired), marshalStrings(i.Dependencies),
	}
	// Repeat the update-clause arguments (same values as the insert clause,
	// skipping the immutable id).
	args = append(args, args[1:]...)

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return models.Intent{}, fmt.Errorf("upsert intent %s: %w", i.ID, err)
	}
	return i, nil
}

func scanIntent(row interface{ Scan(...any) error }) (models.Intent, error) {
	var i models.Intent
	var tenantID, planID sql.NullString
	var status, riskLevel, semantic, technical, checks, deps string

	if err := row.Scan(
		&i.ID, &tenantID, &planID, &i.Source, &i.Target, &status, &i.Retries,
		&i.CreatedAt, &i.CreatedBy, &riskLevel, &i.Priority, &i.OriginType,
		&semantic, &technical, &checks, &deps,
	); err != nil {
		return models.Intent{}, err
	}
	i.TenantID = stringPtr(tenantID)
	i.PlanID = stringPtr(planID)
	i.Status = models.IntentStatus(status)
	i.RiskLevel = models.RiskLevel(riskLevel)
	if err := unmarshalJSON(semantic, &i.Semantic); err != nil {
		return models.Intent{}, err
	}
	if err := unmarshalJSON(technical, &i.Technical); err != nil {
		return models.Intent{}, err
	}
	i.ChecksRequired = unmarshalStrings(checks)
	i.Dependencies = unmarshalStrings(deps)
	return i, nil
}

const intentColumns = `id, tenant_id, plan_id, source, target, status, retries,
	created_at, created_by, risk_level, priority, origin_type,
	semantic, technical, checks_required, dependencies`

// GetIntent fetches one intent by id.
func (s *SQLStore) GetIntent(ctx context.Context, id string) (models.Intent, error) {
	q := "SELECT " + intentColumns + " FROM intents WHERE id = " + s.dialect.Placeholder(1)
	row := s.db.QueryRowContext(ctx, q, id)
	i, err := scanIntent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Intent{}, fmt.Errorf("get intent %s: %w", id, ErrNotFound)
		}
		return models.Intent{}, fmt.Errorf("get intent %s: %w", id, err)
	}
	return i, nil
}

// ListIntents lists intents matching the given filters.
func (s *SQLStore) ListIntents(ctx context.Context, f models.IntentFilters) ([]models.Intent, error) {
	d := s.dialect
	var clauses []string
	var args []any
	idx := 1
	if f.Status != nil {
		clauses = append(clauses, fmt.Sprintf("status = %s", d.Placeholder(idx)))
		args = append(args, string(*f.Status))
		idx++
	}
	if f.TenantID != nil {
		clauses = append(clauses, fmt.Sprintf("tenant_id = %s", d.Placeholder(idx)))
		args = append(args, *f.TenantID)
		idx++
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 500
	}
	q := "SELECT " + intentColumns + " FROM intents" + where +
		" ORDER BY priority ASC, id ASC LIMIT " + fmt.Sprint(limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list intents: %w", err)
	}
	defer rows.Close()

	var out []models.Intent
	for rows.Next() {
		i, err := scanIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan intent: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// UpdateIntentStatus transitions an intent's status and optionally its
// retry count in one statement.
func (s *SQLStore) UpdateIntentStatus(ctx context.Context, id string, status models.IntentStatus, retries *int) error {
	d := s.dialect
	if retries == nil {
		q := fmt.Sprintf("UPDATE intents SET status = %s WHERE id = %s", d.Placeholder(1), d.Placeholder(2))
		_, err := s.db.ExecContext(ctx, q, string(status), id)
		if err != nil {
			return fmt.Errorf("update intent status %s: %w", id, err)
		}
		return nil
	}
	q := fmt.Sprintf("UPDATE intents SET status = %s, retries = %s WHERE id = %s",
		d.Placeholder(1), d.Placeholder(2), d.Placeholder(3))
	_, err := s.db.ExecContext(ctx, q, string(status), *retries, id)
	if err != nil {
		return fmt.Errorf("update intent status %s: %w", id, err)
	}
	return nil
}

// UpsertCommitLink inserts or replaces a (intent_id, repo, sha, role) row.
func (s *SQLStore) UpsertCommitLink(ctx context.Context, l models.CommitLink) error {
	d := s.dialect
	q := fmt.Sprintf(`INSERT INTO intent_commit_links (intent_id, repo, sha, role) VALUES (%s)
		ON CONFLICT (intent_id, repo, sha, role) DO NOTHING`, placeholders(d, 1, 4))
	_, err := s.db.ExecContext(ctx, q, l.IntentID, l.Repo, l.SHA, string(l.Role))
	if err != nil {
		return fmt.Errorf("upsert commit link: %w", err)
	}
	return nil
}

// ListCommitLinks returns every commit link for an intent.
func (s *SQLStore) ListCommitLinks(ctx context.Context, intentID string) ([]models.CommitLink, error) {
	q := "SELECT intent_id, repo, sha, role FROM intent_commit_links WHERE intent_id = " + s.dialect.Placeholder(1)
	rows, err := s.db.QueryContext(ctx, q, intentID)
	if err != nil {
		return nil, fmt.Errorf("list commit links: %w", err)
	}
	defer rows.Close()

	var out []models.CommitLink
	for rows.Next() {
		var l models.CommitLink
		var role string
		if err := rows.Scan(&l.IntentID, &l.Repo, &l.SHA, &role); err != nil {
			return nil, fmt.Errorf("scan commit link: %w", err)
		}
		l.Role = models.CommitRole(role)
		out = append(out, l)
	}
	return out, rows.Err()
}
