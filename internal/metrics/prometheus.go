// Package metrics exposes the engine's Prometheus instrumentation: HTTP
// request metrics for the demonstration API surface, plus metrics for the
// operations that actually matter to this engine — snapshot construction,
// query latency, delta-chain length, and store operation outcomes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	snapshotBuildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapshot_build_duration_seconds",
			Help:    "Duration of base/delta snapshot construction",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"kind"}, // "base" or "delta"
	)

	snapshotParticipantCount = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapshot_participant_count",
			Help:    "Participant count of a written base snapshot",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 20000},
		},
		[]string{"contest_id"},
	)

	snapshotChangeCount = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapshot_delta_change_count",
			Help:    "Changed-participant count of a written delta snapshot",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500},
		},
		[]string{"contest_id"},
	)

	deltaChainLength = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "delta_chain_length",
			Help: "Number of delta snapshots applied to answer the most recent standingsAt call",
		},
		[]string{"contest_id"},
	)

	queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "standings_query_duration_seconds",
			Help:    "Duration of standingsAt and validate calls",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation"}, // "standings_at" or "validate"
	)

	storeOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_store_operations_total",
			Help: "Total Snapshot Store operations by backend, collection, and outcome",
		},
		[]string{"backend", "collection", "outcome"},
	)

	validationMismatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "standings_validation_mismatches_total",
			Help: "Total participants found to differ between the snapshot chain and the reference replay",
		},
		[]string{"contest_id"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		snapshotBuildDuration,
		snapshotParticipantCount,
		snapshotChangeCount,
		deltaChainLength,
		queryDuration,
		storeOperationsTotal,
		validationMismatchesTotal,
	)
}

// MetricsHandler returns the Prometheus HTTP handler for the /metrics
// endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// HTTPMiddleware records request count and latency for every HTTP request
// through the demonstration API surface.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(wrapper.statusCode)
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// SnapshotMetrics records outcomes of snapshot construction.
type SnapshotMetrics struct{}

func NewSnapshotMetrics() *SnapshotMetrics { return &SnapshotMetrics{} }

func (m *SnapshotMetrics) ObserveBaseBuild(duration time.Duration, contestID string, participantCount int) {
	snapshotBuildDuration.WithLabelValues("base").Observe(duration.Seconds())
	snapshotParticipantCount.WithLabelValues(contestID).Observe(float64(participantCount))
}

func (m *SnapshotMetrics) ObserveDeltaBuild(duration time.Duration, contestID string, changeCount int) {
	snapshotBuildDuration.WithLabelValues("delta").Observe(duration.Seconds())
	snapshotChangeCount.WithLabelValues(contestID).Observe(float64(changeCount))
}

// QueryMetrics records outcomes of standingsAt/validate calls.
type QueryMetrics struct{}

func NewQueryMetrics() *QueryMetrics { return &QueryMetrics{} }

func (m *QueryMetrics) ObserveStandingsAt(duration time.Duration, contestID string, deltasApplied int) {
	queryDuration.WithLabelValues("standings_at").Observe(duration.Seconds())
	deltaChainLength.WithLabelValues(contestID).Set(float64(deltasApplied))
}

func (m *QueryMetrics) ObserveValidate(duration time.Duration, contestID string, mismatchCount int) {
	queryDuration.WithLabelValues("validate").Observe(duration.Seconds())
	if mismatchCount > 0 {
		validationMismatchesTotal.WithLabelValues(contestID).Add(float64(mismatchCount))
	}
}

// StoreMetrics records Snapshot Store operation outcomes.
type StoreMetrics struct{}

func NewStoreMetrics() *StoreMetrics { return &StoreMetrics{} }

func (m *StoreMetrics) IncrementOperation(backend, collection, outcome string) {
	storeOperationsTotal.WithLabelValues(backend, collection, outcome).Inc()
}
