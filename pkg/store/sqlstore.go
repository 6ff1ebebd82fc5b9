// Package store implements the ConvergeStore capability set (spec.md
// §4.1) as one generic SQL layer parameterized by a Dialect, plus two
// concrete dialects (pg, sqlite). Business logic lives here exactly
// once; only the six points named in dialect.go differ per backend.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/converge/converge/pkg/models"
)

// SQLStore is the shared implementation of Store over database/sql,
// generic across Postgres and SQLite via the injected Dialect.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps an already-open *sql.DB with the given dialect.
func New(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// Open opens a connection using the dialect's own lifecycle hook.
func Open(ctx context.Context, dialect Dialect, dsn string) (*SQLStore, error) {
	db, err := dialect.Open(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dialect.Name(), err)
	}
	return New(db, dialect), nil
}

// Close releases the underlying connection.
func (s *SQLStore) Close() error {
	return s.dialect.Close(s.db)
}

func tenantKey(t *string) string {
	if t == nil {
		return ""
	}
	return *t
}

func tenantPtr(key string) *string {
	if key == "" {
		return nil
	}
	v := key
	return &v
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func marshalJSON(v any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("store: marshal json: %w", err)
	}
	return string(b), nil
}

func unmarshalJSON[T any](raw string, dst *T) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}

func marshalStrings(ss []string) string {
	b, _ := json.Marshal(ss)
	return string(b)
}

func unmarshalStrings(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}

// --- Events ---------------------------------------------------------

// AppendEvent persists a new event, assigning id/timestamp if unset.
// Append-only: there is no update path for an event row.
func (s *SQLStore) AppendEvent(ctx context.Context, e models.Event) (models.Event, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	payload, err := marshalJSON(e.Payload)
	if err != nil {
		return models.Event{}, err
	}
	evidence, err := marshalJSON(e.Evidence)
	if err != nil {
		return models.Event{}, err
	}

	d := s.dialect
	q := fmt.Sprintf(`INSERT INTO events (id, event_type, timestamp, trace_id, intent_id, agent_id, tenant_id, payload, evidence)
		VALUES (%s)`, placeholders(d, 1, 9))

	_, err = s.db.ExecContext(ctx, q,
		e.ID, e.EventType, e.Timestamp, e.TraceID,
		nullableString(e.IntentID), nullableString(e.AgentID), nullableString(e.TenantID),
		payload, evidence,
	)
	if err != nil {
		if d.IsUniqueViolation(err) {
			return models.Event{}, fmt.Errorf("append event %s: %w", e.ID, ErrUniqueViolation)
		}
		return models.Event{}, fmt.Errorf("append event: %w", err)
	}
	return e, nil
}

func buildEventFilter(d Dialect, f models.EventFilters, argStart int) (string, []any) {
	var clauses []string
	var args []any
	idx := argStart
	add := func(col string, val any) {
		clauses = append(clauses, fmt.Sprintf("%s = %s", col, d.Placeholder(idx)))
		args = append(args, val)
		idx++
	}
	if f.EventType != nil {
		add("event_type", *f.EventType)
	}
	if f.IntentID != nil {
		add("intent_id", *f.IntentID)
	}
	if f.AgentID != nil {
		add("agent_id", *f.AgentID)
	}
	if f.TenantID != nil {
		add("tenant_id", *f.TenantID)
	}
	if f.Since != nil {
		clauses = append(clauses, fmt.Sprintf("timestamp >= %s", d.Placeholder(idx)))
		args = append(args, *f.Since)
		idx++
	}
	if f.Until != nil {
		clauses = append(clauses, fmt.Sprintf("timestamp <= %s", d.Placeholder(idx)))
		args = append(args, *f.Until)
		idx++
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// QueryEvents returns events matching f, newest-first.
func (s *SQLStore) QueryEvents(ctx context.Context, f models.EventFilters, limit int) ([]models.Event, error) {
	where, args := buildEventFilter(s.dialect, f, 1)
	if limit <= 0 {
		limit = 100
	}
	q := "SELECT id, event_type, timestamp, trace_id, intent_id, agent_id, tenant_id, payload, evidence FROM events" +
		where + " ORDER BY timestamp DESC, id DESC LIMIT " + fmt.Sprint(limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []models.Event
	for rows.Next() {
		var e models.Event
		var intentID, agentID, tenantID sql.NullString
		var payload, evidence string
		if err := rows.Scan(&e.ID, &e.EventType, &e.Timestamp, &e.TraceID, &intentID, &agentID, &tenantID, &payload, &evidence); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.IntentID = stringPtr(intentID)
		e.AgentID = stringPtr(agentID)
		e.TenantID = stringPtr(tenantID)
		if err := unmarshalJSON(payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal event payload: %w", err)
		}
		if err := unmarshalJSON(evidence, &e.Evidence); err != nil {
			return nil, fmt.Errorf("unmarshal event evidence: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountEvents returns the number of events matching f.
func (s *SQLStore) CountEvents(ctx context.Context, f models.EventFilters) (int, error) {
	where, args := buildEventFilter(s.dialect, f, 1)
	q := "SELECT COUNT(*) FROM events" + where
	var n int
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// PruneEvents deletes events strictly older than before. It is the only
// deletion path for the append-only log (spec.md §3).
func (s *SQLStore) PruneEvents(ctx context.Context, before time.Time, tenant *string, dryRun bool) (int, error) {
	d := s.dialect
	where := fmt.Sprintf(" WHERE timestamp < %s", d.Placeholder(1))
	args := []any{before}
	if tenant != nil {
		where += fmt.Sprintf(" AND tenant_id = %s", d.Placeholder(2))
		args = append(args, *tenant)
	}

	if dryRun {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events"+where, args...).Scan(&n); err != nil {
			return 0, fmt.Errorf("prune events (dry run): %w", err)
		}
		return n, nil
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM events"+where, args...)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune events rows affected: %w", err)
	}
	return int(n), nil
}
