package metrics

import "github.com/prometheus/client_golang/prometheus"

// Index and query Prometheus metrics.
var (
	RebuildPhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "facetdex",
			Name:      "rebuild_phase_duration_seconds",
			Help:      "Rebuild phase duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"phase", "status"},
	)

	RebuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facetdex",
			Name:      "rebuilds_total",
			Help:      "Total number of index rebuild attempts",
		},
		[]string{"status"},
	)

	GenerationItems = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "facetdex",
			Name:      "generation_items",
			Help:      "Items in the currently published generation",
		},
	)

	FacetCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facetdex",
			Name:      "facet_cache_total",
			Help:      "Facet computations by cache outcome",
		},
		[]string{"result"}, // "precomputed" / "memo" / "miss"
	)

	QueriesApproximateTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "facetdex",
			Name:      "queries_approximate_total",
			Help:      "Search responses with an estimated total count",
		},
	)
)

var indexMetricsRegistered bool

// RegisterIndexMetrics registers Prometheus index metrics. Must be called once from main.
func RegisterIndexMetrics() {
	if indexMetricsRegistered {
		return
	}
	prometheus.MustRegister(RebuildPhaseDuration)
	prometheus.MustRegister(RebuildsTotal)
	prometheus.MustRegister(GenerationItems)
	prometheus.MustRegister(FacetCacheTotal)
	prometheus.MustRegister(QueriesApproximateTotal)
	indexMetricsRegistered = true
}
