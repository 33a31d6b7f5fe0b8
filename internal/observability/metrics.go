// Package observability exposes the scheduler's Prometheus metrics,
// mirroring the teacher's promauto-registered gauge/counter/histogram idiom.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PendingRequests tracks the number of requests awaiting assignment.
	PendingRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swarmrouter_pending_requests",
		Help: "Current number of requests awaiting replica assignment",
	})

	// SchedulingTasks tracks the number of live scheduling tasks.
	SchedulingTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swarmrouter_scheduling_tasks",
		Help: "Current number of running scheduling tasks",
	})

	// ActiveReplicas tracks the size of the active replica set.
	ActiveReplicas = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swarmrouter_active_replicas",
		Help: "Current number of replicas in the active set",
	})

	// Assignments counts completed assignments by tier.
	Assignments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swarmrouter_assignments_total",
		Help: "Total number of requests assigned to a replica, by candidate tier",
	}, []string{"tier"})

	// AssignmentWaitSeconds tracks time from enqueue to assignment.
	AssignmentWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "swarmrouter_assignment_wait_seconds",
		Help:    "Time a request spent pending before being assigned",
		Buckets: prometheus.DefBuckets,
	})

	// ProbeDeadlineSeconds tracks the deadline budget used per probe.
	ProbeDeadlineSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "swarmrouter_probe_deadline_seconds",
		Help:    "Deadline budget in effect when a probe was issued",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	// ProbeOutcomes counts probe results by outcome.
	ProbeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swarmrouter_probe_outcomes_total",
		Help: "Total probes issued, by outcome (ok, timeout, transport_error)",
	}, []string{"outcome"})

	// CacheHits counts queue-length lookups satisfied without a probe.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swarmrouter_cache_hits_total",
		Help: "Total queue length lookups satisfied from cache without a probe",
	})

	// CacheMisses counts queue-length lookups that required a probe.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swarmrouter_cache_misses_total",
		Help: "Total queue length lookups that required a probe",
	})
)
