package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Measurements     *prometheus.CounterVec
	DocumentsWritten *prometheus.CounterVec
	WriteConflicts   prometheus.Counter
	WriteFailures    prometheus.Counter
	BatchDuration    prometheus.Histogram
}

// NewMetrics builds the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Measurements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensordocs",
			Name:      "measurements_total",
			Help:      "Measurements received, by outcome (accepted or dropped).",
		}, []string{"outcome"}),
		DocumentsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensordocs",
			Name:      "documents_written_total",
			Help:      "Documents committed, by mode (insert or update).",
		}, []string{"mode"}),
		WriteConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensordocs",
			Name:      "write_conflicts_total",
			Help:      "Commits rejected by a concurrent writer and retried.",
		}),
		WriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensordocs",
			Name:      "write_failures_total",
			Help:      "Documents that could not be written.",
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sensordocs",
			Name:      "batch_duration_seconds",
			Help:      "Time spent processing one batch.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Measurements,
			m.DocumentsWritten,
			m.WriteConflicts,
			m.WriteFailures,
			m.BatchDuration,
		)
	}
	return m
}
