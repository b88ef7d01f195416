// Package prometheus records review pipeline metrics with the Prometheus client.
package prometheus

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
)

// Ensure Metrics implements the interface.
var _ driven.ReviewMetrics = (*Metrics)(nil)

// Metrics holds the review pipeline collectors. A nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	// Documents reviewed by outcome status
	DocumentsReviewed *prometheus.CounterVec

	// Issues reported after validation and dedup
	IssuesReported prometheus.Counter

	// Per-document review latency
	DocumentLatency prometheus.Histogram

	// Oracle attempts by outcome
	OracleCalls   *prometheus.CounterVec
	OracleLatency prometheus.Histogram

	// Candidates dropped by validation
	RejectedCandidates prometheus.Counter

	BatchLatency   prometheus.Histogram
	BatchDocuments prometheus.Histogram

	IndexChunks       prometheus.Gauge
	IndexBuildLatency prometheus.Histogram
}

// New creates metrics registered on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		DocumentsReviewed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docreview_documents_reviewed_total",
			Help: "Documents reviewed by outcome status",
		}, []string{"status"}), // status: "ok", "degraded", "failed"

		IssuesReported: factory.NewCounter(prometheus.CounterOpts{
			Name: "docreview_issues_reported_total",
			Help: "Issues reported after validation and deduplication",
		}),

		DocumentLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "docreview_document_review_duration_seconds",
			Help:    "Duration of one document review including retrieval and retries",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),

		OracleCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docreview_oracle_calls_total",
			Help: "Findings oracle attempts by outcome",
		}, []string{"outcome"}), // outcome: "ok", "error", "malformed"

		OracleLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "docreview_oracle_call_duration_seconds",
			Help:    "Duration of a single findings oracle attempt",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		RejectedCandidates: factory.NewCounter(prometheus.CounterOpts{
			Name: "docreview_rejected_candidates_total",
			Help: "Oracle candidates dropped by validation",
		}),

		BatchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "docreview_batch_duration_seconds",
			Help:    "Duration of a review batch",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),

		BatchDocuments: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "docreview_batch_documents",
			Help:    "Documents per review batch",
			Buckets: []float64{1, 2, 5, 10, 20, 50},
		}),

		IndexChunks: factory.NewGauge(prometheus.GaugeOpts{
			Name: "docreview_index_chunks",
			Help: "Chunks in the live knowledge index",
		}),

		IndexBuildLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "docreview_index_build_duration_seconds",
			Help:    "Duration of a knowledge index build",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 900},
		}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveDocument records one finished document review.
func (m *Metrics) ObserveDocument(status domain.ReviewStatus, issues int, elapsed time.Duration) {
	if m != nil {
		m.DocumentsReviewed.WithLabelValues(string(status)).Inc()
		m.IssuesReported.Add(float64(issues))
		m.DocumentLatency.Observe(elapsed.Seconds())
	}
}

// ObserveOracleCall records one oracle attempt.
func (m *Metrics) ObserveOracleCall(outcome string, elapsed time.Duration) {
	if m != nil {
		m.OracleCalls.WithLabelValues(outcome).Inc()
		m.OracleLatency.Observe(elapsed.Seconds())
	}
}

// ObserveRejectedCandidates records candidates dropped by validation.
func (m *Metrics) ObserveRejectedCandidates(n int) {
	if m != nil {
		m.RejectedCandidates.Add(float64(n))
	}
}

// ObserveBatch records one finished batch.
func (m *Metrics) ObserveBatch(documents int, elapsed time.Duration) {
	if m != nil {
		m.BatchDocuments.Observe(float64(documents))
		m.BatchLatency.Observe(elapsed.Seconds())
	}
}

// ObserveIndexBuild records a completed index build.
func (m *Metrics) ObserveIndexBuild(chunks int, elapsed time.Duration) {
	if m != nil {
		m.IndexChunks.Set(float64(chunks))
		m.IndexBuildLatency.Observe(elapsed.Seconds())
	}
}
