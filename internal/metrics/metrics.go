// Package metrics records per-run counters and pushes them to a Prometheus
// Pushgateway. A batch job exits before it could be scraped, so metrics
// live in a per-run registry and are pushed once at the end.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/ignite/campaign-tracker/internal/domain"
)

// Metrics holds the run's collectors.
type Metrics struct {
	registry *prometheus.Registry

	rowsAppended    *prometheus.CounterVec
	rowsMerged      prometheus.Counter
	degradedRows    *prometheus.CounterVec
	writeAttempts   *prometheus.CounterVec
	segmentsSkipped *prometheus.CounterVec
	ledgerDrift     *prometheus.GaugeVec
	runDuration     prometheus.Histogram
	lastSuccess     prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		rowsAppended: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campaign_tracker_rows_appended_total",
			Help: "Rows appended and verified per tab kind",
		}, []string{"kind"}),
		rowsMerged: f.NewCounter(prometheus.CounterOpts{
			Name: "campaign_tracker_rows_merged_total",
			Help: "Rows appended to merge tabs",
		}),
		degradedRows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campaign_tracker_degraded_rows_total",
			Help: "Rows written with an Error registration type",
		}, []string{"kind"}),
		writeAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campaign_tracker_write_attempts_total",
			Help: "Append attempts by outcome",
		}, []string{"kind", "outcome"}), // outcome=verified/unverified/transport/backup
		segmentsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campaign_tracker_segments_skipped_total",
			Help: "Segments skipped by reason",
		}, []string{"reason"}),
		ledgerDrift: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "campaign_tracker_ledger_drift",
			Help: "Destination key count minus ledger count at run start",
		}, []string{"kind"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "campaign_tracker_run_duration_seconds",
			Help:    "Wall time of a run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68min
		}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "campaign_tracker_last_success_timestamp_seconds",
			Help: "Unix time of the last run that completed",
		}),
	}
}

// Registry exposes the registry (useful for testing).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RowsAppended counts verified rows for kind.
func (m *Metrics) RowsAppended(kind domain.Kind, n int) {
	m.rowsAppended.WithLabelValues(string(kind)).Add(float64(n))
}

// RowsMerged counts merged rows.
func (m *Metrics) RowsMerged(n int) { m.rowsMerged.Add(float64(n)) }

// DegradedRows counts Error rows for kind.
func (m *Metrics) DegradedRows(kind domain.Kind, n int) {
	m.degradedRows.WithLabelValues(string(kind)).Add(float64(n))
}

// WriteAttempt records one append attempt.
func (m *Metrics) WriteAttempt(kind domain.Kind, outcome string) {
	m.writeAttempts.WithLabelValues(string(kind), outcome).Inc()
}

// SegmentSkipped records a skipped segment.
func (m *Metrics) SegmentSkipped(reason string) {
	m.segmentsSkipped.WithLabelValues(reason).Inc()
}

// LedgerDrift sets the drift observed for kind.
func (m *Metrics) LedgerDrift(kind domain.Kind, drift int) {
	m.ledgerDrift.WithLabelValues(string(kind)).Set(float64(drift))
}

// RunFinished records the run duration and, when ok, the success time.
func (m *Metrics) RunFinished(d time.Duration, ok bool) {
	m.runDuration.Observe(d.Seconds())
	if ok {
		m.lastSuccess.SetToCurrentTime()
	}
}

// Push sends the registry to a Pushgateway grouped by campaign and
// environment. An empty url is a no-op.
func (m *Metrics) Push(ctx context.Context, url, job, campaign, environment string) error {
	if url == "" {
		return nil
	}
	err := push.New(url, job).
		Gatherer(m.registry).
		Grouping("campaign", campaign).
		Grouping("environment", environment).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("pushing metrics: %w", err)
	}
	return nil
}
