// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Simulation metrics
	SimulationsTotal    *prometheus.CounterVec
	SimulationDuration  *prometheus.HistogramVec
	PathsSimulated      prometheus.Counter
	EventsCompiled      prometheus.Histogram
	ReplaySoftFailures  *prometheus.CounterVec

	// Kernel metrics
	KernelCallLatency *prometheus.HistogramVec
	KernelCallErrors  *prometheus.CounterVec

	// Transport metrics
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	WSStreamsActive  prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulSimulation prometheus.Gauge
	UptimeSeconds            prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "retirement_sim_lab"
	}

	return &Metrics{
		// Simulation metrics
		SimulationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "runs_total",
			Help:      "Total number of simulation runs by mode and status",
		}, []string{"mode", "status"}),
		SimulationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "duration_seconds",
			Help:      "End-to-end simulation duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"mode"}),
		PathsSimulated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "paths_total",
			Help:      "Total number of Monte Carlo paths simulated",
		}),
		EventsCompiled: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "timeline",
			Name:      "events_compiled",
			Help:      "Number of events compiled per request",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250},
		}),
		ReplaySoftFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "replay_soft_failures_total",
			Help:      "Total number of replays degraded to MC-only results",
		}, []string{"reason"}),

		// Kernel metrics
		KernelCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "kernel",
			Name:      "call_latency_seconds",
			Help:      "Kernel call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"entrypoint"}),
		KernelCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kernel",
			Name:      "call_errors_total",
			Help:      "Total number of kernel call errors by kind",
		}, []string{"entrypoint", "kind"}),

		// Transport metrics
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
		RequestsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Current number of in-flight HTTP requests",
		}),
		WSStreamsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "ws_streams_active",
			Help:      "Current number of active WebSocket simulation streams",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulSimulation: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_simulation_timestamp",
			Help:      "Unix timestamp of last successful simulation",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSimulation records one completed simulation run.
func RecordSimulation(mode, status string, durationSeconds float64) {
	DefaultMetrics.SimulationsTotal.WithLabelValues(mode, status).Inc()
	DefaultMetrics.SimulationDuration.WithLabelValues(mode).Observe(durationSeconds)
}

// RecordPathsSimulated adds to the Monte Carlo path counter.
func RecordPathsSimulated(paths int) {
	DefaultMetrics.PathsSimulated.Add(float64(paths))
}

// RecordEventsCompiled observes the compiled timeline size.
func RecordEventsCompiled(count int) {
	DefaultMetrics.EventsCompiled.Observe(float64(count))
}

// RecordReplaySoftFailure counts a replay degraded to MC-only output.
func RecordReplaySoftFailure(reason string) {
	DefaultMetrics.ReplaySoftFailures.WithLabelValues(reason).Inc()
}

// RecordKernelCall records kernel call latency and outcome.
func RecordKernelCall(entrypoint string, seconds float64, err error) {
	DefaultMetrics.KernelCallLatency.WithLabelValues(entrypoint).Observe(seconds)
	if err != nil {
		DefaultMetrics.KernelCallErrors.WithLabelValues(entrypoint, "error").Inc()
	}
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
