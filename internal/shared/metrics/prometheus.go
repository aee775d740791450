package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	attentionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attentions_recorded_total",
			Help: "Total number of attention outcomes recorded",
		},
		[]string{"bag", "facility"},
	)

	conditionChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assignment_condition_changes_total",
			Help: "Total number of assignment condition transitions",
		},
		[]string{"from_condition", "to_condition"},
	)

	desertionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desertions_recorded_total",
			Help: "Total number of desertion outcomes by catalog reason group",
		},
		[]string{"reason_group"},
	)

	imageEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_evaluations_total",
			Help: "Total number of diagnostic image evaluations",
		},
		[]string{"verdict"},
	)

	imageRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "image_rejections_total",
			Help: "Total number of diagnostic images rejected pending resubmission",
		},
	)

	allocationRowsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_rows_ingested_total",
			Help: "Total number of upstream allocation rows ingested",
		},
		[]string{"source_table", "status"},
	)

	helpdeskTickets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_tickets_total",
			Help: "Total number of help-desk tickets created",
		},
		[]string{"motive", "status"},
	)

	summaryCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_summary_cache_lookups_total",
			Help: "Image summary cache lookups by result",
		},
		[]string{"result"},
	)

	// Database metrics
	dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath normalizes URL paths for metrics to avoid cardinality explosion
func normalizePath(path string) string {
	// Replace UUIDs with placeholder
	// Simple heuristic: segments that look like UUIDs
	// In production, use proper path templates
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// --- Business metric helpers ---

// RecordAttention records a recorded attention outcome
func RecordAttention(bag, facility string) {
	attentionsRecorded.WithLabelValues(bag, facility).Inc()
}

// RecordConditionChange records an assignment condition transition
func RecordConditionChange(from, to string) {
	conditionChanges.WithLabelValues(from, to).Inc()
}

// RecordDesertion records a desertion by catalog reason group
func RecordDesertion(reasonGroup string) {
	desertionsRecorded.WithLabelValues(reasonGroup).Inc()
}

// RecordImageEvaluation records a diagnostic image evaluation
func RecordImageEvaluation(verdict string) {
	imageEvaluations.WithLabelValues(verdict).Inc()
}

// RecordImageRejection records a diagnostic image rejection
func RecordImageRejection() {
	imageRejections.Inc()
}

// RecordAllocationRow records an ingested upstream allocation row
func RecordAllocationRow(sourceTable, status string) {
	allocationRowsIngested.WithLabelValues(sourceTable, status).Inc()
}

// RecordHelpdeskTicket records a help-desk ticket creation attempt
func RecordHelpdeskTicket(motive, status string) {
	helpdeskTickets.WithLabelValues(motive, status).Inc()
}

// RecordSummaryCacheLookup records a cache hit or miss
func RecordSummaryCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	summaryCacheLookups.WithLabelValues(result).Inc()
}

// RecordDBConnections records active database connections
func RecordDBConnections(count int) {
	dbConnectionsActive.Set(float64(count))
}

// RecordDBQuery records a database query duration
func RecordDBQuery(operation string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
