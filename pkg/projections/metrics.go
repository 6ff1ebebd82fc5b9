package projections

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes repo health, debt, and queue-depth projections as
// Prometheus gauges, refreshed on demand by Collect (spec.md §4.10).
type Metrics struct {
	reader *Reader

	repoHealthScore prometheus.Gauge
	debtScore       prometheus.Gauge
	queueDepth      *prometheus.GaugeVec
	mergeable24h    prometheus.Gauge
	rejected24h     prometheus.Gauge
}

// NewMetrics registers the gauges against registerer.
func NewMetrics(reader *Reader, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		reader: reader,
		repoHealthScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "converge_repo_health_score",
			Help: "Composite repository health score in [0,100]",
		}),
		debtScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "converge_verification_debt_score",
			Help: "Weighted verification-debt score in [0,100]",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "converge_queue_depth",
			Help: "Pending intent count by status",
		}, []string{"status"}),
		mergeable24h: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "converge_merged_24h",
			Help: "Intents merged in the last 24 hours",
		}),
		rejected24h: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "converge_rejected_24h",
			Help: "Intents rejected in the last 24 hours",
		}),
	}
	registerer.MustRegister(m.repoHealthScore, m.debtScore, m.queueDepth, m.mergeable24h, m.rejected24h)
	return m
}

// Collect refreshes every gauge from a fresh projection read. Intended
// to run on a timer (spec.md §5's "in-process caches... reconciled by
// reload"), not per-scrape, since the underlying queries scan events.
func (m *Metrics) Collect(ctx context.Context) error {
	health, err := m.reader.RepoHealth(ctx, nil)
	if err != nil {
		return err
	}
	m.repoHealthScore.Set(health.Score)
	m.mergeable24h.Set(float64(health.Merged24h))
	m.rejected24h.Set(float64(health.Rejected24h))

	debt, err := m.reader.VerificationDebt(ctx, nil)
	if err != nil {
		return err
	}
	m.debtScore.Set(debt.Score)

	state, err := m.reader.QueueState(ctx, nil)
	if err != nil {
		return err
	}
	for status, count := range state.CountsByStatus {
		m.queueDepth.WithLabelValues(string(status)).Set(float64(count))
	}
	return nil
}

// RunPeriodic refreshes metrics every interval until ctx is done.
func (m *Metrics) RunPeriodic(ctx context.Context, interval time.Duration, onError func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Collect(ctx); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}
