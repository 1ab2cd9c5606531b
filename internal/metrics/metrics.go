// Package metrics exposes Prometheus instrumentation for the monitoring
// control plane itself, in the teacher's per-subsystem *_metrics.go style
// (internal/business/routing/evaluator_metrics.go). Every constructor takes
// an explicit prometheus.Registerer rather than registering against the
// global default registry, so multiple independent Controllers (as tests
// construct routinely) never collide on metric names.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every metric callwatch emits.
type Registry struct {
	EventsEmittedTotal   *prometheus.CounterVec
	EventsDroppedTotal   *prometheus.CounterVec
	PoolRentalsTotal     prometheus.Counter
	PoolReturnsTotal     prometheus.Counter
	PoolLiveRecords      prometheus.Gauge
	VersionBumpsTotal    prometheus.Counter
	StackDepth           prometheus.Histogram
	AdmissionDecisions   *prometheus.CounterVec
	CallDuration         prometheus.Histogram
}

// New builds and registers a Registry against reg. Pass
// prometheus.NewRegistry() in tests and prometheus.DefaultRegisterer in a
// long-lived process embedding callwatch once.
func New(reg prometheus.Registerer) *Registry {
	factory := prometheus.WrapRegistererWithPrefix("callwatch_", reg)

	r := &Registry{
		EventsEmittedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "events_emitted_total",
			Help: "Lifecycle events delivered to at least one observer, by kind.",
		}, []string{"kind"}),

		EventsDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "events_dropped_total",
			Help: "Lifecycle events dropped because a reporter could not keep up, by reporter.",
		}, []string{"reporter"}),

		PoolRentalsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pool_rentals_total",
			Help: "MethodCallInfo records rented from the pool (excludes null-record rentals).",
		}),

		PoolReturnsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pool_returns_total",
			Help: "MethodCallInfo records returned to the pool free-list.",
		}),

		PoolLiveRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pool_live_records",
			Help: "Currently rented (not yet returned) MethodCallInfo records.",
		}),

		VersionBumpsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "version_bumps_total",
			Help: "MonitoringVersion advances caused by controller mutations.",
		}),

		StackDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stack_depth",
			Help:    "Per-flow call stack depth observed at push time.",
			Buckets: prometheus.LinearBuckets(1, 10, 20),
		}),

		AdmissionDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admission_decisions_total",
			Help: "Admission rule outcomes, by result (admitted/dropped/untracked).",
		}, []string{"result"}),

		CallDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "call_duration_seconds",
			Help:    "Elapsed wall-clock time of tracked calls.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 16),
		}),
	}

	factory.MustRegister(
		r.EventsEmittedTotal,
		r.EventsDroppedTotal,
		r.PoolRentalsTotal,
		r.PoolReturnsTotal,
		r.PoolLiveRecords,
		r.VersionBumpsTotal,
		r.StackDepth,
		r.AdmissionDecisions,
		r.CallDuration,
	)

	return r
}

// ObserveCallDuration records d on the CallDuration histogram.
func (r *Registry) ObserveCallDuration(d time.Duration) {
	r.CallDuration.Observe(d.Seconds())
}
