package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Dialect isolates the six backend-specific points named in spec.md
// §4.1: connection lifecycle, parameter placeholder syntax,
// upsert-excluded-row prefix, integrity-error discriminator,
// insert-or-ignore statement builder, and shutdown. Every other Store
// method is written once against the shared SQL vocabulary in
// sqlstore.go and parameterized by a Dialect value.
type Dialect interface {
	// Name identifies the dialect for logging and CONVERGE_DB_BACKEND matching.
	Name() string

	// Open establishes the connection (pool) for this backend.
	Open(ctx context.Context, dsn string) (*sql.DB, error)

	// Close shuts the connection down cleanly.
	Close(db *sql.DB) error

	// Placeholder returns the positional parameter marker for the n-th
	// (1-indexed) bound argument, e.g. "$3" for Postgres, "?" for SQLite.
	Placeholder(n int) string

	// ExcludedPrefix returns the prefix used to reference the
	// would-have-been-inserted row inside an ON CONFLICT ... DO UPDATE
	// clause, e.g. "EXCLUDED." for Postgres and SQLite (both support the
	// standard syntax) or "VALUES(" ... ")" style for dialects that don't.
	ExcludedPrefix() string

	// IsUniqueViolation classifies a raw driver error as a primary/unique
	// key collision.
	IsUniqueViolation(err error) bool

	// InsertOrIgnore builds an "insert, do nothing on conflict" statement
	// over the given table/columns, returning the SQL with the dialect's
	// own placeholder syntax already substituted.
	InsertOrIgnore(table string, cols []string) string
}

// placeholders renders a comma-separated list of n placeholders starting
// at bound-argument index `from` (1-indexed), e.g. placeholders(d, 1, 3)
// -> "$1, $2, $3" for Postgres or "?, ?, ?" for SQLite.
func placeholders(d Dialect, from, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = d.Placeholder(from + i)
	}
	return strings.Join(parts, ", ")
}

// namedPlaceholders renders "col = $k" pairs for an UPDATE SET clause.
func namedPlaceholders(d Dialect, cols []string, from int) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s = %s", c, d.Placeholder(from+i))
	}
	return strings.Join(parts, ", ")
}
