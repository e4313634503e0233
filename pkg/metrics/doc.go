/*
Package metrics provides Prometheus metrics collection and exposition for
the CWL-OSCAR execution backend.

The metrics package defines and registers all backend metrics using the
Prometheus client library, providing observability into cluster selection,
service creation, job dispatch, and step-level outcomes. Metrics are
exposed via an HTTP endpoint for scraping by Prometheus servers.

# Architecture

The execution backend's metrics system follows Prometheus best practices
with instrumentation at each stage of the pipeline:

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  │  - Automatic Go runtime metrics             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Types                   │          │
	│  │                                              │          │
	│  │  Gauge: Instant values (clusters registered)│          │
	│  │  Counter: Monotonic increases (dispatches)  │          │
	│  │  Histogram: Distributions (step duration)   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Registry: Cluster count, selections        │          │
	│  │  Service Manager: Cache hits, creations     │          │
	│  │  Dispatcher: Dispatches, polls, coercions   │          │
	│  │  Orchestrator: Steps completed, duration    │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Prometheus Server                   │          │
	│  │  - Scrapes /metrics every 15s               │          │
	│  │  - Stores time series data                  │          │
	│  │  - Provides PromQL query interface          │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Metric Registry:
  - Global Prometheus DefaultRegistry
  - All metrics registered at package init
  - Automatic collection of Go runtime metrics
  - Thread-safe for concurrent updates

Gauge Metrics:
  - Instant value that can go up or down
  - Example: clusters registered
  - Operations: Set, Inc, Dec, Add, Sub

Counter Metrics:
  - Monotonically increasing value
  - Examples: dispatches total, poll attempts total
  - Operations: Inc, Add (cannot decrease)

Histogram Metrics:
  - Distribution of observed values
  - Buckets sized for the dispatcher's 5s poll / 300s deadline window
  - Examples: dispatch duration, step duration (service create duration
    uses Prometheus' default buckets)
  - Includes: sum, count, buckets

Timer Helper:
  - Convenience wrapper for timing operations
  - Start timer, observe duration to histogram
  - Supports label values for histogram vectors

# Metrics Catalog

Cluster Registry:

cwloscar_clusters_registered:
  - Type: Gauge
  - Description: Total number of clusters registered in the Cluster Registry
  - Example: cwloscar_clusters_registered 3

cwloscar_cluster_selections_total{cluster}:
  - Type: Counter
  - Description: Total times a cluster was returned by round-robin selection
  - Labels: cluster
  - Example: cwloscar_cluster_selections_total{cluster="cluster-oscar.example.org"} 42

Service Manager:

cwloscar_service_cache_hits_total:
  - Type: Counter
  - Description: Total getOrCreateService calls resolved from the in-process identity cache
  - Example: cwloscar_service_cache_hits_total 118

cwloscar_service_creations_total{outcome}:
  - Type: Counter
  - Description: Total remote service create attempts by outcome
  - Labels: outcome (created, transient_retry, exhausted)
  - Example: cwloscar_service_creations_total{outcome="created"} 7

cwloscar_service_create_duration_seconds:
  - Type: Histogram
  - Description: Time to get or create a remote service, including retries

Job Dispatcher:

cwloscar_dispatches_total{outcome}:
  - Type: Counter
  - Description: Total job dispatches by outcome
  - Labels: outcome (exit_zero, exit_nonzero)
  - Example: cwloscar_dispatches_total{outcome="exit_zero"} 250

cwloscar_dispatch_duration_seconds:
  - Type: Histogram
  - Description: Wall-clock time for one script upload/poll/download cycle
  - Buckets: 1, 5, 10, 30, 60, 120, 300, 600

cwloscar_poll_attempts_total:
  - Type: Counter
  - Description: Total output-bucket listing polls performed while awaiting an exit-code artifact

cwloscar_exit_code_coerced_total:
  - Type: Counter
  - Description: Total exit-code artifacts with non-numeric content coerced to 0

Task Orchestrator:

cwloscar_steps_completed_total{status}:
  - Type: Counter
  - Description: Total CWL steps completed by reported status
  - Labels: status (success, permanentFail)
  - Example: cwloscar_steps_completed_total{status="success"} 250

cwloscar_step_duration_seconds{status}:
  - Type: Histogram
  - Description: End-to-end duration of one orchestrator step, by reported status
  - Buckets: 1, 5, 10, 30, 60, 120, 300, 600

# Usage

Updating Gauge Metrics:

	import "github.com/grycap/cwl-oscar-go/pkg/metrics"

	metrics.ClustersRegistered.Set(3)

Updating Counter Metrics:

	metrics.ServiceCacheHitsTotal.Inc()
	metrics.DispatchesTotal.WithLabelValues("exit_zero").Inc()

Recording Histogram Observations:

	// Using Timer helper
	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDuration(metrics.ServiceCreateDuration)

Using Timer with Labels:

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDurationVec(metrics.StepDuration, string(status))

Complete Example:

	package main

	import (
		"net/http"
		"github.com/grycap/cwl-oscar-go/pkg/metrics"
	)

	func main() {
		metrics.ClustersRegistered.Set(3)

		timer := metrics.NewTimer()
		runStep()
		timer.ObserveDurationVec(metrics.StepDuration, "success")

		http.Handle("/metrics", metrics.Handler())
		http.ListenAndServe(":9090", nil)
	}

	func runStep() {
		// orchestrator.RunStep logic
	}

# Integration Points

This package integrates with:

  - pkg/registry: Updates cluster-count gauge and selection counters
  - pkg/servicemgr: Records cache hits, creation outcomes, create duration
  - pkg/dispatcher: Records dispatch outcomes, poll attempts, exit-code coercions, dispatch duration
  - pkg/orchestrator: Records step outcomes and step duration
  - Prometheus: Scrapes /metrics endpoint

# Design Patterns

Package Init Registration:
  - All metrics registered in init() function
  - MustRegister panics on duplicate registration
  - Ensures metrics available before main()
  - No runtime registration needed

Label Discipline:
  - Use WithLabelValues for cardinality-bounded labels
  - cluster and status/outcome labels are bounded by configuration and a
    small fixed enum respectively; never label by job ID or timestamp
  - Keep label count low (< 5 per metric)

Timer Pattern:
  - Create timer at operation start
  - Defer or explicitly call ObserveDuration / ObserveDurationVec
  - Automatically calculates elapsed time

Global Metrics:
  - Package-level variables for all metrics
  - Accessible from any backend package
  - Thread-safe concurrent updates
  - No initialization required by callers

# Performance Characteristics

Metric Update Overhead:
  - Gauge set/inc: ~50ns per operation
  - Counter inc: ~50ns per operation
  - Histogram observe: ~200ns per operation
  - Negligible next to the multi-second network calls they instrument

Cardinality Management:
  - Low cardinality: status, outcome (< 5 values each)
  - Medium cardinality: cluster name (bounded by configured cluster count)
  - Avoid: job IDs, tool names, timestamps (unbounded)

# Troubleshooting

Common Issues:

Missing Metrics:
  - Symptom: Metric not appearing in /metrics output
  - Check: Metric registered in init() function
  - Solution: Verify metric variable is exported

Stale Metrics:
  - Symptom: Metrics not updating
  - Cause: Code not calling metric update methods
  - Solution: Instrument the code path at the point the outcome is known

# Monitoring

Prometheus Queries (PromQL):

Cluster Health:
  - Clusters registered: cwloscar_clusters_registered
  - Selection skew: rate(cwloscar_cluster_selections_total[5m])

Service Manager Health:
  - Cache hit ratio: rate(cwloscar_service_cache_hits_total[5m]) / rate(cwloscar_service_creations_total[5m])
  - Retry pressure: rate(cwloscar_service_creations_total{outcome="transient_retry"}[5m])
  - Exhaustion rate: rate(cwloscar_service_creations_total{outcome="exhausted"}[5m])

Dispatcher Health:
  - Failure rate: rate(cwloscar_dispatches_total{outcome="exit_nonzero"}[5m])
  - p95 dispatch latency: histogram_quantile(0.95, cwloscar_dispatch_duration_seconds_bucket)
  - Coercion rate: rate(cwloscar_exit_code_coerced_total[5m])

Orchestrator Health:
  - Step failure rate: rate(cwloscar_steps_completed_total{status="permanentFail"}[5m])
  - p95 step latency: histogram_quantile(0.95, cwloscar_step_duration_seconds_bucket)

# Alerting Rules

Recommended Prometheus alerts:

High Step Failure Rate:
  - Alert: rate(cwloscar_steps_completed_total{status="permanentFail"}[5m]) > 0.1
  - Description: More than 0.1 steps failing per second
  - Action: Check dispatcher and service-manager logs, cluster reachability

Service Creation Exhaustion:
  - Alert: rate(cwloscar_service_creations_total{outcome="exhausted"}[5m]) > 0
  - Description: Service creation retries are being exhausted
  - Action: Check the target cluster's API and resource quotas

High Dispatch Latency:
  - Alert: histogram_quantile(0.95, cwloscar_dispatch_duration_seconds_bucket) > 250
  - Description: p95 dispatch latency approaching the 300s poll deadline
  - Action: Check cluster load and storage-provider latency

# Grafana Dashboards

Recommended dashboard panels:

Cluster Overview:
  - Gauge: Clusters registered
  - Time series: Selections per cluster

Service Manager:
  - Time series: Cache hits vs. creations
  - Time series: Creation outcomes (created, transient_retry, exhausted)
  - Heatmap: Service create duration distribution

Dispatcher:
  - Time series: Dispatches by outcome
  - Time series: Poll attempts per dispatch
  - Heatmap: Dispatch duration distribution

Orchestrator:
  - Time series: Steps completed by status
  - Heatmap: Step duration distribution

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
  - PromQL tutorial: https://prometheus.io/docs/prometheus/latest/querying/basics/
  - Histogram best practices: https://prometheus.io/docs/practices/histograms/
*/
package metrics
