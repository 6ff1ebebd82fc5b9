// Package config loads process-wide settings from the CONVERGE_* family
// of environment variables (spec.md §6), separate from pkg/database's
// Postgres-only connection Config.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/converge/converge/pkg/featureflags"
)

// Backend selects which store dialect cmd/converged's openStore wires up.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// Config is the resolved process configuration.
type Config struct {
	DBBackend Backend
	DBPath    string // sqlite only
	PGDSN     string // read from CONVERGE_PG_DSN; the pg dialect connects from pkg/database's Config and does not use it

	GitHubWebhookSecret string
	GitHubDefaultTenant string

	AuthRequired bool
	APIKeys      []string

	RateLimitEnabled bool
	RateLimitRPM     int

	WebhookURL    string
	WebhookSecret string

	LLMProvider  string
	LLMAPIKey    string
	LLMRateLimit int

	FeatureFlags map[string]featureflags.Flag
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// namedFlags are the feature flag keys a CONVERGE_FF_<NAME> env var may
// target (spec.md §4.12); config-layer overrides only recognize these.
var namedFlags = []string{
	featureflags.AdvisoryLocks,
	featureflags.SemanticConflicts,
	featureflags.LLMReviewAdvisor,
	featureflags.Notifications,
	featureflags.RiskAutoClassify,
	featureflags.CoherenceFeedback,
	featureflags.CodeOwnership,
	featureflags.PreEvalHarness,
}

// LoadFromEnv builds a Config from the CONVERGE_* environment (spec.md §6).
// Feature-flag env vars are read here only to seed the config-layer
// override map; featureflags.Registry re-reads them directly so that its
// own env>config>defaults precedence holds even if this Config is stale.
func LoadFromEnv() Config {
	flags := map[string]featureflags.Flag{}
	for _, name := range namedFlags {
		key := "CONVERGE_FF_" + strings.ToUpper(name)
		if raw, ok := os.LookupEnv(key); ok {
			enabled, _ := strconv.ParseBool(raw)
			flags[name] = featureflags.Flag{Enabled: enabled, Mode: os.Getenv(key + "_MODE")}
		}
	}

	return Config{
		DBBackend: Backend(getEnv("CONVERGE_DB_BACKEND", string(BackendSQLite))),
		DBPath:    getEnv("CONVERGE_DB_PATH", "./converge.db"),
		PGDSN:     getEnv("CONVERGE_PG_DSN", ""),

		GitHubWebhookSecret: getEnv("CONVERGE_GITHUB_WEBHOOK_SECRET", ""),
		GitHubDefaultTenant: getEnv("CONVERGE_GITHUB_DEFAULT_TENANT", ""),

		AuthRequired: getEnvBool("CONVERGE_AUTH_REQUIRED", false),
		APIKeys:      getEnvList("CONVERGE_API_KEYS"),

		RateLimitEnabled: getEnvBool("CONVERGE_RATE_LIMIT_ENABLED", true),
		RateLimitRPM:     getEnvInt("CONVERGE_RATE_LIMIT_RPM", 300),

		WebhookURL:    getEnv("CONVERGE_WEBHOOK_URL", ""),
		WebhookSecret: getEnv("CONVERGE_WEBHOOK_SECRET", ""),

		LLMProvider:  getEnv("CONVERGE_LLM_PROVIDER", ""),
		LLMAPIKey:    getEnv("CONVERGE_LLM_API_KEY", ""),
		LLMRateLimit: getEnvInt("CONVERGE_LLM_RATE_LIMIT", 60),

		FeatureFlags: flags,
	}
}
