// Package featureflags resolves feature flags with precedence
// env > config > defaults (spec.md §4.12), caching the result in
// process after first access.
package featureflags

import (
	"context"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/converge/converge/pkg/eventlog"
)

// Flag names recognized by the registry (spec.md §4.12).
const (
	AdvisoryLocks     = "advisory_locks"
	SemanticConflicts = "semantic_conflicts"
	LLMReviewAdvisor  = "llm_review_advisor"
	Notifications     = "notifications"
	RiskAutoClassify  = "risk_auto_classify"
	CoherenceFeedback = "coherence_feedback"
	CodeOwnership     = "code_ownership"
	PreEvalHarness    = "pre_eval_harness"
)

// defaultOn lists the flags that default to enabled; the remainder
// (coherence_feedback, code_ownership, pre_eval_harness, and
// llm_review_advisor) default off per spec.md §4.12.
var defaultOn = map[string]bool{
	AdvisoryLocks:     true,
	SemanticConflicts: true,
	Notifications:     true,
	RiskAutoClassify:  true,
}

// Flag is the resolved {enabled, mode} pair for one flag (spec.md §4.12).
type Flag struct {
	Enabled bool   `json:"enabled"`
	Mode    string `json:"mode"`
}

// Registry resolves and caches flags for one process. It is an
// explicitly constructed object passed down from a root context rather
// than a package-level singleton (spec.md §9 "Process-wide caches").
type Registry struct {
	mu     sync.RWMutex
	config map[string]Flag // operator-set overrides, below env but above defaults
	cache  map[string]Flag
	log    *eventlog.Log
}

// New returns a Registry seeded with optional config overrides.
func New(config map[string]Flag, log *eventlog.Log) *Registry {
	if config == nil {
		config = map[string]Flag{}
	}
	return &Registry{config: config, cache: map[string]Flag{}, log: log}
}

func envFlag(name string) (Flag, bool) {
	enabledRaw, hasEnabled := os.LookupEnv("CONVERGE_FF_" + strings.ToUpper(name))
	if !hasEnabled {
		return Flag{}, false
	}
	enabled, err := strconv.ParseBool(enabledRaw)
	if err != nil {
		enabled = false
	}
	mode := os.Getenv("CONVERGE_FF_" + strings.ToUpper(name) + "_MODE")
	return Flag{Enabled: enabled, Mode: mode}, true
}

// Resolve returns the flag's value, caching it on first access.
// Precedence: env > config > defaults.
func (r *Registry) Resolve(name string) Flag {
	r.mu.RLock()
	if f, ok := r.cache[name]; ok {
		r.mu.RUnlock()
		return f
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.cache[name]; ok {
		return f
	}

	var resolved Flag
	if f, ok := envFlag(name); ok {
		resolved = f
	} else if f, ok := r.config[name]; ok {
		resolved = f
	} else {
		resolved = Flag{Enabled: defaultOn[name]}
	}
	r.cache[name] = resolved
	return resolved
}

// Enabled is shorthand for Resolve(name).Enabled.
func (r *Registry) Enabled(name string) bool {
	return r.Resolve(name).Enabled
}

// Set mutates a flag's cached value at runtime and emits
// FEATURE_FLAG_CHANGED (spec.md §4.12). Intended for admin-surface use;
// does not persist past process restart.
func (r *Registry) Set(ctx context.Context, traceID, name string, flag Flag) {
	r.mu.Lock()
	previous := r.cache[name]
	r.cache[name] = flag
	r.mu.Unlock()

	if r.log != nil {
		_, _ = r.log.Emit(ctx, eventlog.TypeFeatureFlagChanged, traceID, nil, nil, nil, map[string]any{
			"flag": name, "from": previous, "to": flag,
		})
	}
}
