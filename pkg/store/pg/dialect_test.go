package pg

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/converge/converge/pkg/database"
)

func TestDialectName(t *testing.T) {
	assert.Equal(t, "postgres", New(database.Config{}).Name())
}

func TestDialectPlaceholderIsPositional(t *testing.T) {
	d := New(database.Config{})
	assert.Equal(t, "$1", d.Placeholder(1))
	assert.Equal(t, "$7", d.Placeholder(7))
}

func TestDialectExcludedPrefix(t *testing.T) {
	assert.Equal(t, "EXCLUDED.", New(database.Config{}).ExcludedPrefix())
}

func TestDialectInsertOrIgnoreBuildsStatement(t *testing.T) {
	d := New(database.Config{})
	stmt := d.InsertOrIgnore("events", []string{"id", "event_type"})
	assert.Equal(t, "INSERT INTO events (id, event_type) VALUES ($1, $2) ON CONFLICT DO NOTHING", stmt)
}

func TestDialectIsUniqueViolationFalseForNonPgError(t *testing.T) {
	d := New(database.Config{})
	assert.False(t, d.IsUniqueViolation(assertError{}))
}

type assertError struct{}

func (assertError) Error() string { return "not a pg error" }
