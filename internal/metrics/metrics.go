// Package metrics exposes the scheduler's Prometheus counters. All metrics
// are registered on the default registry and served by the instance's
// /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchesTotal counts finished executions by terminal outcome
	// (succeeded, failed, timed_out, cancelled).
	DispatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_dispatches_total",
		Help: "Finished job executions by outcome.",
	}, []string{"outcome"})

	LockAcquiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_lock_acquired_total",
		Help: "Successful job lock acquisitions.",
	})

	// LockConflictsTotal counts the normal skip branch: another instance
	// held the job. High values just mean contention, not trouble.
	LockConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_lock_conflicts_total",
		Help: "Lock attempts skipped because another instance held the job.",
	})

	LockTakeoversTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_lock_takeovers_total",
		Help: "Acquisitions that reclaimed an expired lease.",
	})

	LocksExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_locks_expired_total",
		Help: "Acquired locks flipped to expired by the reaper sweep.",
	})

	RunningExecutions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_running_executions",
		Help: "Executions currently running on this instance.",
	})

	ExecutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduler_execution_duration_seconds",
		Help:    "Wall-clock duration of job executions.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"kind"})
)
