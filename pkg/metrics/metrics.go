// Package metrics exposes Prometheus counters and histograms for the
// digest cache, the recorder's event pipeline, and invoice generation,
// mirroring the teacher's package-level promauto vars plus small
// Record*/Timer helpers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DigestCacheHitsTotal and DigestCacheMissesTotal together give the
	// digest cache's hit rate (pkg/digest, spec.md §4.E).
	DigestCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odb_digest_cache_hits_total",
		Help: "Number of digest cache lookups served from cache.",
	})
	DigestCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odb_digest_cache_misses_total",
		Help: "Number of digest cache lookups that required recomputation.",
	})
	DigestComputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "odb_digest_compute_duration_seconds",
		Help:    "Time spent recomputing a digest cache entry.",
		Buckets: prometheus.DefBuckets,
	})

	// EventsRecordedTotal counts ExecutionEvents accepted by the recorder
	// (pkg/recorder, spec.md §4.F), labeled by event kind.
	EventsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odb_events_recorded_total",
		Help: "Number of execution events recorded, by kind.",
	}, []string{"kind"})

	// RecorderTransitionErrorsTotal counts rejected (not disordered —
	// panics, not errors, flag disorder) transitions, e.g. unauthorized
	// or otherwise invalid event submissions.
	RecorderTransitionErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odb_recorder_transition_errors_total",
		Help: "Number of execution events rejected by the recorder, by reason.",
	}, []string{"reason"})

	// InvoiceBuildDuration times TimeAccountingEngine.BuildInvoice
	// (pkg/timeaccounting, spec.md §4.G/H).
	InvoiceBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "odb_invoice_build_duration_seconds",
		Help:    "Time spent folding events and building a time-accounting invoice.",
		Buckets: prometheus.DefBuckets,
	})

	// WorkflowStateTransitionsTotal counts WorkflowResolver.Resolve
	// results, labeled by the resulting state (pkg/workflow, spec.md
	// §4.I).
	WorkflowStateTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odb_workflow_state_transitions_total",
		Help: "Number of times an observation resolved into each workflow state.",
	}, []string{"state"})

	// ExternalOracleCallsTotal counts calls through the ITC and
	// Smart-GCAL oracles, labeled by oracle and outcome.
	ExternalOracleCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "odb_external_oracle_calls_total",
		Help: "Number of calls made to an external oracle, by oracle and outcome.",
	}, []string{"oracle", "outcome"})

	// HTTPRequestDuration times every pkg/api request, labeled by route
	// pattern and response status, the way a chi-fronted service
	// typically exposes request latency alongside its domain metrics.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odb_http_request_duration_seconds",
		Help:    "Time spent handling an HTTP request, by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})
)

// RecordDigestHit increments the cache-hit counter.
func RecordDigestHit() { DigestCacheHitsTotal.Inc() }

// RecordDigestMiss increments the cache-miss counter and observes the
// time spent recomputing.
func RecordDigestMiss(computeDuration time.Duration) {
	DigestCacheMissesTotal.Inc()
	DigestComputeDuration.Observe(computeDuration.Seconds())
}

// RecordEvent increments the per-kind recorded-event counter.
func RecordEvent(kind string) { EventsRecordedTotal.WithLabelValues(kind).Inc() }

// RecordTransitionError increments the per-reason rejected-transition
// counter.
func RecordTransitionError(reason string) { RecorderTransitionErrorsTotal.WithLabelValues(reason).Inc() }

// RecordWorkflowState increments the per-state workflow-resolution
// counter.
func RecordWorkflowState(state string) { WorkflowStateTransitionsTotal.WithLabelValues(state).Inc() }

// RecordOracleCall increments the per-oracle, per-outcome call counter.
func RecordOracleCall(oracle, outcome string) {
	ExternalOracleCallsTotal.WithLabelValues(oracle, outcome).Inc()
}

// RecordHTTPRequest observes one request's duration against
// HTTPRequestDuration.
func RecordHTTPRequest(route, status string, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(route, status).Observe(d.Seconds())
}

// Timer measures an elapsed duration and reports it through
// InvoiceBuildDuration when the operation it wraps completes.
type Timer struct {
	start time.Time
}

// NewTimer starts a Timer.
func NewTimer() *Timer { return &Timer{start: time.Now()} }

// Elapsed returns the time since the Timer was created.
func (t *Timer) Elapsed() time.Duration { return time.Since(t.start) }

// RecordInvoiceBuild observes the elapsed time against
// InvoiceBuildDuration.
func (t *Timer) RecordInvoiceBuild() { InvoiceBuildDuration.Observe(t.Elapsed().Seconds()) }
