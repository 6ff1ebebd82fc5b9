// Package sqlite is the embedded-SQLite Dialect for pkg/store, meant for
// single-node deployments and tests. Unlike the pg dialect it applies its
// schema directly via embed.FS + Exec rather than golang-migrate: there
// is exactly one SQLite schema revision to carry, so a migration runner
// would add ceremony without buying anything.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"github.com/converge/converge/pkg/store"
)

//go:embed schema.sql
var schemaFS embed.FS

// Dialect implements store.Dialect over modernc.org/sqlite, a pure-Go
// (cgo-free) SQLite driver.
type Dialect struct{}

// New returns the SQLite dialect.
func New() *Dialect {
	return &Dialect{}
}

func (d *Dialect) Name() string { return "sqlite" }

// Open connects to dsn (a file path, or ":memory:") and applies the
// embedded schema. CREATE TABLE/INDEX IF NOT EXISTS makes this idempotent
// across restarts against the same file.
func (d *Dialect) Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serializes writers; a single connection avoids
	// SQLITE_BUSY under concurrent access from this process.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragma: %w", err)
	}

	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("read embedded schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return db, nil
}

func (d *Dialect) Close(db *sql.DB) error {
	return db.Close()
}

func (d *Dialect) Placeholder(n int) string {
	return "?"
}

func (d *Dialect) ExcludedPrefix() string {
	return "excluded."
}

func (d *Dialect) IsUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlitelib.SQLITE_CONSTRAINT_UNIQUE || code == sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (d *Dialect) InsertOrIgnore(table string, cols []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	colList := strings.Join(cols, ", ")
	return fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)", table, colList, placeholders)
}

var _ store.Dialect = (*Dialect)(nil)
