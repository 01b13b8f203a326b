package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Disease pipeline Prometheus metrics.
var (
	BuildDiseasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phenodex",
			Name:      "build_diseases_total",
			Help:      "Diseases processed by the embedding builder",
		},
		[]string{"variant", "result"}, // "stored" / "skipped"
	)

	BuildUpsertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phenodex",
			Name:      "build_upserts_total",
			Help:      "Batch upserts issued by the embedding builder",
		},
		[]string{"variant"},
	)

	BuildStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "phenodex",
			Name:      "build_stage_duration_seconds",
			Help:      "Embedding builder stage duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"variant", "stage"}, // "aggregate" / "upsert"
	)

	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phenodex",
			Name:      "queries_total",
			Help:      "Disease similarity queries",
		},
		[]string{"variant", "mode", "status"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "phenodex",
			Name:      "query_duration_seconds",
			Help:      "Disease similarity query duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"variant", "mode"},
	)

	ProbeAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phenodex",
			Name:      "probe_attempts_total",
			Help:      "Capacity probe queries by outcome",
		},
		[]string{"result"}, // "accepted" / "rejected"
	)

	ProbeMaxSafeResults = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "phenodex",
			Name:      "probe_max_safe_results",
			Help:      "Largest result count the store accepted in the last capacity probe",
		},
	)
)

var registerPipelineOnce sync.Once

// RegisterPipelineMetrics registers the disease pipeline metrics. Safe to call more than once.
func RegisterPipelineMetrics() {
	registerPipelineOnce.Do(func() {
		prometheus.MustRegister(BuildDiseasesTotal)
		prometheus.MustRegister(BuildUpsertsTotal)
		prometheus.MustRegister(BuildStageDuration)
		prometheus.MustRegister(QueriesTotal)
		prometheus.MustRegister(QueryDuration)
		prometheus.MustRegister(ProbeAttemptsTotal)
		prometheus.MustRegister(ProbeMaxSafeResults)
	})
}
