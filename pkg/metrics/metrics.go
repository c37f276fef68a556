package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lozenge_generate_total",
			Help: "Code generation attempts by result",
		},
		[]string{"result"},
	)

	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lozenge_runs_total",
			Help: "Machine runs by final state (halted, faulted, canceled)",
		},
		[]string{"result"},
	)

	instructionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lozenge_instructions_total",
			Help: "Instructions executed across all runs",
		},
	)

	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lozenge_run_duration_seconds",
			Help:    "Wall time of a machine run",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)
)

// ObserveGenerate counts a generation attempt.
func ObserveGenerate(err error) {
	if err != nil {
		generateTotal.WithLabelValues("error").Inc()
		return
	}
	generateTotal.WithLabelValues("ok").Inc()
}

// ObserveRun records one finished run.
func ObserveRun(result string, steps uint64, d time.Duration) {
	runsTotal.WithLabelValues(result).Inc()
	instructionsTotal.Add(float64(steps))
	runDuration.Observe(d.Seconds())
}
