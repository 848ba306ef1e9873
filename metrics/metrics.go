// Package metrics exposes the service's prometheus collectors. Everything is
// registered on the default registry via promauto and served by the /metrics
// endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counters
	JobsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocrflow_jobs_submitted_total",
			Help: "Total number of jobs accepted for processing",
		},
		[]string{"priority"}, // low, normal, high
	)

	JobsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocrflow_jobs_completed_total",
			Help: "Total number of jobs that reached a terminal state",
		},
		[]string{"status"}, // completed, failed
	)

	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ocrflow_cache_hits_total",
			Help: "Total number of result cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ocrflow_cache_misses_total",
			Help: "Total number of result cache misses",
		},
	)

	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ocrflow_rate_limited_total",
			Help: "Total number of submissions rejected by admission control",
		},
	)

	EngineInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocrflow_engine_invocations_total",
			Help: "Total number of recognition engine calls",
		},
		[]string{"engine"},
	)

	// Gauges
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ocrflow_queue_depth",
			Help: "Current number of jobs waiting in the queue",
		},
	)

	ActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ocrflow_active_workers",
			Help: "Current number of workers executing a job",
		},
	)

	// Histogram for end-to-end job duration
	// Buckets: 10ms, 20ms, 40ms, ... to ~163s
	JobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ocrflow_job_duration_seconds",
			Help:    "Job duration from enqueue to terminal state in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		},
		[]string{"mode"},
	)
)
