package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ignite/pan-validator/internal/pan"
)

// Run statuses used as the "status" label of pan_runs_total.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusRejected  = "rejected"
)

// Metrics provides observability for validation runs.
type Metrics struct {
	// Raw records read from sources, before dedup
	RecordsIngested prometheus.Counter

	// Raw records dropped as duplicates
	DuplicatesDropped prometheus.Counter

	// Classified identifiers by verdict label
	Verdicts *prometheus.CounterVec

	// Runs by final status
	Runs *prometheus.CounterVec

	RunDuration prometheus.Histogram
}

// New registers every metric on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RecordsIngested: f.NewCounter(prometheus.CounterOpts{
			Name: "pan_records_ingested_total",
			Help: "Raw records read from sources",
		}),
		DuplicatesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "pan_duplicates_dropped_total",
			Help: "Raw records removed by deduplication",
		}),
		Verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pan_verdicts_total",
			Help: "Classified identifiers by verdict",
		}, []string{"verdict"}),
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pan_runs_total",
			Help: "Validation runs by final status",
		}, []string{"status"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pan_run_duration_seconds",
			Help:    "Wall time of a validation run from load to delivery",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}),
	}
}

// ObserveResult records the counts of a finished run.
func (m *Metrics) ObserveResult(res *pan.Result) {
	if m == nil {
		return
	}
	m.RecordsIngested.Add(float64(res.Dedup.Input))
	m.DuplicatesDropped.Add(float64(res.Dedup.Duplicates))
	for v, n := range res.Summary.ByVerdict {
		if n > 0 {
			m.Verdicts.WithLabelValues(string(v)).Add(float64(n))
		}
	}
}

// ObserveRun records a run's status and duration.
func (m *Metrics) ObserveRun(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(status).Inc()
	m.RunDuration.Observe(d.Seconds())
}
