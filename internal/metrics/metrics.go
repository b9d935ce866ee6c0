// Package metrics defines the Prometheus collectors for merge batches,
// encode passes, and view reconciliation.
//
// Collectors are registered on the Registerer passed to New so tests can
// use a private registry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector.
type Metrics struct {
	batches        *prometheus.CounterVec
	records        *prometheus.CounterVec
	batchDuration  prometheus.Histogram
	encoded        prometheus.Counter
	reconcileRows  *prometheus.CounterVec
	reconcileTimes prometheus.Histogram
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		batches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "galactic_merge_batches_total",
			Help: "Merge batches applied, by outcome",
		}, []string{"outcome"}),
		records: f.NewCounterVec(prometheus.CounterOpts{
			Name: "galactic_merge_records_total",
			Help: "Records seen by the merge engine, by classification",
		}, []string{"class"}),
		batchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "galactic_merge_batch_duration_seconds",
			Help:    "Time spent applying one merge batch",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		encoded: f.NewCounter(prometheus.CounterOpts{
			Name: "galactic_encode_records_total",
			Help: "Records produced by encode passes",
		}),
		reconcileRows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "galactic_reconcile_rows_total",
			Help: "Rows touched by view reconciliation, by action",
		}, []string{"action"}),
		reconcileTimes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "galactic_reconcile_duration_seconds",
			Help:    "Time spent reconciling one view",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
}

// ObserveBatch records one merge batch. counts is keyed by classification
// (new, modified, unmodified, error, ignored).
func (m *Metrics) ObserveBatch(d time.Duration, counts map[string]int, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.batches.WithLabelValues(outcome).Inc()
	m.batchDuration.Observe(d.Seconds())
	for class, n := range counts {
		m.records.WithLabelValues(class).Add(float64(n))
	}
}

// ObserveEncode records one encode pass.
func (m *Metrics) ObserveEncode(records int) {
	if m == nil {
		return
	}
	m.encoded.Add(float64(records))
}

// ObserveReconcile records one reconciliation.
func (m *Metrics) ObserveReconcile(d time.Duration, created, reused, purged int) {
	if m == nil {
		return
	}
	m.reconcileTimes.Observe(d.Seconds())
	m.reconcileRows.WithLabelValues("created").Add(float64(created))
	m.reconcileRows.WithLabelValues("reused").Add(float64(reused))
	m.reconcileRows.WithLabelValues("purged").Add(float64(purged))
}

// Handler serves the collectors gathered from g in the Prometheus text
// format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
