// Package metrics holds the Prometheus instruments exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsProcessed counts ingestion jobs by terminal status (done/failed).
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radio_jobs_processed_total",
		Help: "Ingestion jobs finished, by terminal status.",
	}, []string{"status"})

	// JobDuration observes wall-clock ingestion time per job.
	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "radio_job_duration_seconds",
		Help:    "Wall-clock duration of ingestion jobs.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	// SchedulerPicks counts next-track decisions by policy.
	SchedulerPicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radio_scheduler_picks_total",
		Help: "Tracks returned by the scheduler, by policy.",
	}, []string{"policy"})

	// PlayEvents counts track starts reported by the streaming engine.
	PlayEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radio_play_events_total",
		Help: "Track starts reported by the streaming engine.",
	})
)
