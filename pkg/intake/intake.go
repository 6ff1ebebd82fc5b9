// Package intake is the accept/throttle/pause front door gated on
// repository health (spec.md §4.10, C13): a thin controller over the
// core contracts, not a full HTTP surface.
package intake

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/converge/converge/pkg/eventlog"
	"github.com/converge/converge/pkg/models"
	"github.com/converge/converge/pkg/projections"
	"github.com/converge/converge/pkg/store"
)

// Decision is the front door's verdict for one intake request.
type Decision string

const (
	DecisionAccept    Decision = "accept"
	DecisionThrottled Decision = "throttled"
	DecisionPaused    Decision = "paused"
)

// Controller gates intake on RepoHealth status and a token-bucket limit,
// re-evaluating repo health on a periodic tick rather than per-request
// so the health query doesn't sit on every intake's hot path.
type Controller struct {
	mu       sync.RWMutex
	health   models.RepoHealth
	limiter  *rate.Limiter
	reader   *projections.Reader
	store    store.IntentStorePort
	log      *eventlog.Log
	logger   *slog.Logger
	tenantID *string
	cfg      Config

	cron    *cron.Cron
	entryID cron.EntryID
}

// Config configures a Controller's rate limit and re-evaluation cadence.
type Config struct {
	RequestsPerSecond float64
	Burst             int
	ReevaluateCron    string // cron spec understood by robfig/cron, e.g. "@every 30s"
}

// DefaultConfig matches spec.md §6's CONVERGE_RATE_LIMIT_* defaults.
func DefaultConfig() Config {
	return Config{RequestsPerSecond: 5, Burst: 10, ReevaluateCron: "@every 30s"}
}

// New returns a Controller with an initial accept-everything health
// snapshot; call Start to begin periodic re-evaluation. s may be nil if
// the caller only needs Accept's gating decision and will ingest intents
// through some other path.
func New(reader *projections.Reader, s store.IntentStorePort, log *eventlog.Log, logger *slog.Logger, tenantID *string, cfg Config) *Controller {
	if cfg.RequestsPerSecond <= 0 {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		health:   models.RepoHealth{Status: models.HealthGreen},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		reader:   reader,
		store:    s,
		log:      log,
		logger:   logger,
		tenantID: tenantID,
		cfg:      cfg,
		cron:     cron.New(),
	}
}

// Start schedules periodic RepoHealth re-evaluation and performs one
// synchronous evaluation before returning so the first Accept call
// reflects current health rather than the green default.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.reevaluate(ctx); err != nil {
		return fmt.Errorf("intake: initial health check: %w", err)
	}
	id, err := c.cron.AddFunc(c.cfg.ReevaluateCron, func() {
		if err := c.reevaluate(ctx); err != nil {
			c.logger.Warn("intake: health re-evaluation failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("intake: schedule re-evaluation: %w", err)
	}
	c.entryID = id
	c.cron.Start()
	return nil
}

// Stop halts the periodic re-evaluation.
func (c *Controller) Stop() {
	if c.cron != nil {
		c.cron.Stop()
	}
}

func (c *Controller) reevaluate(ctx context.Context) error {
	health, err := c.reader.RepoHealth(ctx, c.tenantID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.health = health
	c.mu.Unlock()
	return nil
}

// Accept decides whether to accept, throttle, or pause one intake
// request (spec.md §4.10's RepoHealth status bands): red pauses intake
// entirely, yellow throttles via the token bucket, green admits freely
// subject to the same bucket as a courtesy ceiling.
func (c *Controller) Accept(ctx context.Context, traceID string) (Decision, error) {
	c.mu.RLock()
	status := c.health.Status
	c.mu.RUnlock()

	var decision Decision
	switch status {
	case models.HealthRed:
		decision = DecisionPaused
	case models.HealthYellow:
		if c.limiter.Allow() {
			decision = DecisionAccept
		} else {
			decision = DecisionThrottled
		}
	default:
		if c.limiter.Allow() {
			decision = DecisionAccept
		} else {
			decision = DecisionThrottled
		}
	}

	eventType := eventlog.TypeIntakeAccepted
	switch decision {
	case DecisionThrottled:
		eventType = eventlog.TypeIntakeThrottled
	case DecisionPaused:
		eventType = eventlog.TypeIntakePaused
	}
	if c.log != nil {
		_, _ = c.log.Emit(ctx, eventType, traceID, nil, nil, c.tenantID, map[string]any{
			"health_status": status,
			"health_score":  c.health.Score,
		})
	}
	return decision, nil
}

// Ingest upserts a new intent from req and emits INTENT_CREATED (spec.md
// S1, invariant 10: every admitted intent starts life as a logged event).
// Callers are expected to have already run Accept and only call Ingest on
// DecisionAccept; Ingest itself does not re-check intake gating.
func (c *Controller) Ingest(ctx context.Context, traceID string, req models.CreateIntentRequest) (models.Intent, error) {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	priority := req.Priority
	if priority == 0 {
		priority = 3
	}
	intent := models.Intent{
		ID:             id,
		TenantID:       req.TenantID,
		PlanID:         req.PlanID,
		Source:         req.Source,
		Target:         req.Target,
		Status:         models.StatusReady,
		CreatedAt:      time.Now().UTC(),
		CreatedBy:      req.CreatedBy,
		RiskLevel:      models.RiskLow,
		Priority:       priority,
		OriginType:     req.OriginType,
		Semantic:       req.Semantic,
		Technical:      req.Technical,
		ChecksRequired: req.ChecksRequired,
		Dependencies:   req.Dependencies,
	}

	saved, err := c.store.UpsertIntent(ctx, intent)
	if err != nil {
		return models.Intent{}, fmt.Errorf("intake: ingest intent: %w", err)
	}
	if c.log != nil {
		_, _ = c.log.EmitSimple(ctx, eventlog.TypeIntentCreated, traceID, saved.ID, map[string]any{
			"source": saved.Source,
			"target": saved.Target,
		})
	}
	return saved, nil
}
