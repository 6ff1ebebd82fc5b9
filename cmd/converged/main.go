// Converged is the Converge control plane's background worker and thin
// health surface: it wires the store, the lifecycle engine, and the
// intake front door together and periodically drains the merge queue.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appconfig "github.com/converge/converge/pkg/config"
	"github.com/converge/converge/pkg/database"
	"github.com/converge/converge/pkg/eventlog"
	"github.com/converge/converge/pkg/featureflags"
	"github.com/converge/converge/pkg/intake"
	"github.com/converge/converge/pkg/projections"
	"github.com/converge/converge/pkg/queue"
	"github.com/converge/converge/pkg/scm"
	"github.com/converge/converge/pkg/store"
	"github.com/converge/converge/pkg/store/pg"
	"github.com/converge/converge/pkg/store/sqlite"

	"github.com/converge/converge/pkg/authz"
	"github.com/converge/converge/pkg/policy"
)

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := appconfig.LoadFromEnv()
	ctx := context.Background()

	s, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Error("error closing store", "error", err)
		}
	}()
	logger.Info("store opened", "backend", cfg.DBBackend)

	elog := eventlog.New(s)
	flags := featureflags.New(cfg.FeatureFlags, elog)
	reader := projections.New(s)

	repoDir := getEnv("CONVERGE_REPO_DIR", ".")
	adapter := scm.New(repoDir, 300*time.Second)
	evaluator := policy.New()
	authorizer := authz.New(s, elog, nil)
	engine := queue.New(s, elog, adapter, evaluator, authorizer, logger)

	intakeController := intake.New(reader, s, elog, logger, nil, intake.Config{
		RequestsPerSecond: float64(cfg.RateLimitRPM) / 60,
		Burst:             cfg.RateLimitRPM / 10,
		ReevaluateCron:    "@every 30s",
	})
	if cfg.RateLimitEnabled {
		if err := intakeController.Start(ctx); err != nil {
			logger.Warn("intake controller failed to start", "error", err)
		}
		defer intakeController.Stop()
	}

	go runQueueWorker(ctx, engine, logger)

	metrics := projections.NewMetrics(reader, prometheus.DefaultRegisterer)
	if err := metrics.Collect(ctx); err != nil {
		logger.Warn("initial metrics collection failed", "error", err)
	}
	go metrics.RunPeriodic(ctx, 15*time.Second, func(err error) {
		logger.Warn("metrics refresh failed", "error", err)
	})

	router := gin.New()
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":             "ok",
			"db_backend":         cfg.DBBackend,
			"advisory_locks":     flags.Enabled(featureflags.AdvisoryLocks),
			"semantic_conflicts": flags.Enabled(featureflags.SemanticConflicts),
		})
	})
	router.GET("/repo-health", func(c *gin.Context) {
		health, err := reader.RepoHealth(c.Request.Context(), nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, health)
	})

	httpPort := getEnv("HTTP_PORT", "8080")
	logger.Info("starting http surface", "port", httpPort)
	if err := router.Run(":" + httpPort); err != nil {
		log.Fatalf("http server exited: %v", err)
	}
}

func openStore(ctx context.Context, cfg appconfig.Config) (store.Store, error) {
	switch cfg.DBBackend {
	case appconfig.BackendPostgres:
		dbCfg := database.LoadConfigFromEnv()
		return store.Open(ctx, pg.New(dbCfg), cfg.PGDSN)
	default:
		return store.Open(ctx, sqlite.New(), cfg.DBPath)
	}
}

// runQueueWorker drains the merge queue on a fixed interval until ctx is
// done, logging but not exiting on a single drain's failure.
func runQueueWorker(ctx context.Context, engine *queue.Engine, logger *slog.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			traceID := eventlog.NewTraceID()
			results, err := engine.ProcessQueue(ctx, traceID, queue.ProcessOptions{AutoConfirm: true})
			if err != nil {
				logger.Error("queue drain failed", "error", err, "trace_id", traceID)
				continue
			}
			if len(results) > 0 {
				logger.Info("queue drained", "trace_id", traceID, "decisions", len(results))
			}
		}
	}
}
