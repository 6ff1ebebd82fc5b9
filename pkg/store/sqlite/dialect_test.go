package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectName(t *testing.T) {
	assert.Equal(t, "sqlite", New().Name())
}

func TestDialectPlaceholderIsAlwaysQuestionMark(t *testing.T) {
	d := New()
	assert.Equal(t, "?", d.Placeholder(1))
	assert.Equal(t, "?", d.Placeholder(7))
}

func TestDialectExcludedPrefix(t *testing.T) {
	assert.Equal(t, "excluded.", New().ExcludedPrefix())
}

func TestDialectInsertOrIgnoreBuildsStatement(t *testing.T) {
	d := New()
	stmt := d.InsertOrIgnore("events", []string{"id", "event_type"})
	assert.Equal(t, "INSERT OR IGNORE INTO events (id, event_type) VALUES (?, ?)", stmt)
}

func TestDialectIsUniqueViolationFalseForUnrelatedError(t *testing.T) {
	d := New()
	assert.False(t, d.IsUniqueViolation(errors.New("some other failure")))
}

func TestOpenAppliesEmbeddedSchemaAndIsIdempotent(t *testing.T) {
	d := New()
	ctx := context.Background()

	db, err := d.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer func() { _ = d.Close(db) }()

	var count int
	row := db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'events'")
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 1, count)

	schema, err := schemaFS.ReadFile("schema.sql")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, string(schema))
	require.NoError(t, err)
}
