package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Run outcomes reported by the server.
const (
	outcomeEnd       = "end"
	outcomeError     = "error"
	outcomeAbandoned = "abandoned"
)

// serverMetrics exposes Prometheus collectors for the HTTP server.
type serverMetrics struct {
	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	terminations *prometheus.CounterVec
}

// newServerMetrics registers the server collectors and the Go runtime
// collector with reg. Each server gets its own registry so tests can build
// several.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	m := &serverMetrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "replshim",
				Name:      "runs_total",
				Help:      "Runs by language and outcome.",
			},
			[]string{"language", "outcome"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "replshim",
				Name:      "run_duration_seconds",
				Help:      "Time from request to the terminal event.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"language"},
		),
		terminations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "replshim",
				Name:      "interpreter_terminations_total",
				Help:      "Interpreters stopped on request.",
			},
			[]string{"language"},
		),
	}
	reg.MustRegister(m.runs, m.runDuration, m.terminations, collectors.NewGoCollector())
	return m
}

func (m *serverMetrics) observeRun(language, outcome string, d time.Duration) {
	m.runs.WithLabelValues(language, outcome).Inc()
	m.runDuration.WithLabelValues(language).Observe(d.Seconds())
}
