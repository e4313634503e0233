package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry metrics
	ClustersRegistered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cwloscar_clusters_registered",
			Help: "Total number of clusters registered in the Cluster Registry",
		},
	)

	ClusterSelectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cwloscar_cluster_selections_total",
			Help: "Total number of cluster selections made by the round-robin registry",
		},
		[]string{"cluster"},
	)

	// Service Manager metrics
	ServiceCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cwloscar_service_cache_hits_total",
			Help: "Total number of getOrCreateService calls resolved from the in-process cache",
		},
	)

	ServiceCreationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cwloscar_service_creations_total",
			Help: "Total number of remote service create attempts by outcome",
		},
		[]string{"outcome"}, // "created", "transient_retry", "exhausted"
	)

	ServiceCreateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cwloscar_service_create_duration_seconds",
			Help:    "Time taken to get or create a remote service, including retries",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Job Dispatcher metrics
	DispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cwloscar_dispatches_total",
			Help: "Total number of job dispatches by outcome",
		},
		[]string{"outcome"}, // "exit_zero", "exit_nonzero"
	)

	DispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cwloscar_dispatch_duration_seconds",
			Help:    "Wall-clock time for one script upload/poll/download cycle",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	PollAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cwloscar_poll_attempts_total",
			Help: "Total number of output-bucket listing polls performed while waiting for an exit-code artifact",
		},
	)

	ExitCodeCoercedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cwloscar_exit_code_coerced_total",
			Help: "Total number of exit-code artifacts with non-numeric content coerced to 0",
		},
	)

	// Task Orchestrator metrics
	StepsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cwloscar_steps_completed_total",
			Help: "Total number of CWL steps completed by reported status",
		},
		[]string{"status"}, // "success", "permanentFail"
	)

	StepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cwloscar_step_duration_seconds",
			Help:    "End-to-end duration of one Task Orchestrator step, by status",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(ClustersRegistered)
	prometheus.MustRegister(ClusterSelectionsTotal)

	prometheus.MustRegister(ServiceCacheHitsTotal)
	prometheus.MustRegister(ServiceCreationsTotal)
	prometheus.MustRegister(ServiceCreateDuration)

	prometheus.MustRegister(DispatchesTotal)
	prometheus.MustRegister(DispatchDuration)
	prometheus.MustRegister(PollAttemptsTotal)
	prometheus.MustRegister(ExitCodeCoercedTotal)

	prometheus.MustRegister(StepsCompletedTotal)
	prometheus.MustRegister(StepDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
