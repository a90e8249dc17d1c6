package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stochopt_jobs_started_total",
		Help: "Number of optimization jobs submitted.",
	})

	jobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stochopt_jobs_finished_total",
		Help: "Number of optimization jobs finished, by outcome.",
	}, []string{"outcome"})

	evaluationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stochopt_objective_evaluations_total",
		Help: "Objective evaluations consumed by completed jobs.",
	})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stochopt_job_duration_seconds",
		Help:    "Wall-clock duration of optimization jobs.",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	})
)
