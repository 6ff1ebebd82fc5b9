package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg := LoadFromEnv()
	assert.Equal(t, BackendSQLite, cfg.DBBackend)
	assert.Equal(t, 300, cfg.RateLimitRPM)
	assert.True(t, cfg.RateLimitEnabled)
	assert.False(t, cfg.AuthRequired)
}

func TestLoadFromEnvReadsOverrides(t *testing.T) {
	t.Setenv("CONVERGE_DB_BACKEND", "postgres")
	t.Setenv("CONVERGE_RATE_LIMIT_RPM", "42")
	t.Setenv("CONVERGE_API_KEYS", "a, b ,c")
	t.Setenv("CONVERGE_FF_NOTIFICATIONS", "false")

	cfg := LoadFromEnv()
	assert.Equal(t, BackendPostgres, cfg.DBBackend)
	assert.Equal(t, 42, cfg.RateLimitRPM)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.APIKeys)
	assert.False(t, cfg.FeatureFlags["notifications"].Enabled)
}
