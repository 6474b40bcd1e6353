package statistics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "spqr_kernel_stage_duration_seconds",
		Help: "Statement processing stage duration in seconds",
		Buckets: []float64{
			0.00001, // 10µs
			0.0001,  // 100µs
			0.0005,  // 500µs
			0.001,   // 1ms
			0.005,   // 5ms
			0.01,    // 10ms
			0.05,    // 50ms
			0.1,     // 100ms
			0.5,     // 500ms
			1.0,     // 1s
			5.0,     // 5s
		},
	}, []string{"stage"})

	statementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spqr_kernel_statements_total",
		Help: "Total number of planned statements",
	}, []string{"kind", "plan"})

	routeUnits = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "spqr_kernel_route_units",
		Help:    "Number of routing units per planned statement",
		Buckets: prometheus.ExponentialBuckets(1, 2, 8),
	})

	mergesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spqr_kernel_merges_total",
		Help: "Total number of merged scatter results",
	}, []string{"strategy"})

	inflightScatter = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spqr_kernel_inflight_scatter",
		Help: "Number of scatter plans being executed",
	})
)

func observeStage(statType StatisticsType, d time.Duration) {
	stageDuration.WithLabelValues(string(statType)).Observe(d.Seconds())
}

// RecordPlan counts a planned statement of the given kind by its unit count.
func RecordPlan(kind string, units int) {
	plan := "single"
	if units > 1 {
		plan = "scatter"
	}
	statementsTotal.WithLabelValues(kind, plan).Inc()
	routeUnits.Observe(float64(units))
}

func RecordMerge(strategy string) {
	mergesTotal.WithLabelValues(strategy).Inc()
}

func ScatterStarted() {
	inflightScatter.Inc()
}

func ScatterFinished() {
	inflightScatter.Dec()
}
