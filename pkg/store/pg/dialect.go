// Package pg is the Postgres Dialect for pkg/store: pgx over
// database/sql, migrated by github.com/golang-migrate/migrate/v4.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/converge/converge/pkg/database"
	"github.com/converge/converge/pkg/store"
)

const uniqueViolationCode = "23505"

// Dialect implements store.Dialect for Postgres.
type Dialect struct {
	cfg database.Config
}

// New returns the Postgres dialect for the given connection config.
func New(cfg database.Config) *Dialect {
	return &Dialect{cfg: cfg}
}

func (d *Dialect) Name() string { return "postgres" }

// Open connects and applies embedded migrations. dsn is ignored in favor
// of the Config supplied to New — Postgres connection settings carry pool
// tuning that a bare DSN string can't express.
func (d *Dialect) Open(ctx context.Context, dsn string) (*sql.DB, error) {
	return database.Open(d.cfg)
}

func (d *Dialect) Close(db *sql.DB) error {
	return db.Close()
}

func (d *Dialect) Placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func (d *Dialect) ExcludedPrefix() string {
	return "EXCLUDED."
}

func (d *Dialect) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	return false
}

func (d *Dialect) InsertOrIgnore(table string, cols []string) string {
	placeholders := ""
	for i := range cols {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += fmt.Sprintf("$%d", i+1)
	}
	colList := ""
	for i, c := range cols {
		if i > 0 {
			colList += ", "
		}
		colList += c
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING", table, colList, placeholders)
}

var _ store.Dialect = (*Dialect)(nil)
