package profiling

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the profiler's Prometheus collectors.
type Metrics struct {
	QueriesPerRequest *prometheus.HistogramVec
	QueryDuration     prometheus.Histogram
	Findings          *prometheus.CounterVec
	SinkErrors        prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueriesPerRequest: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smells_request_queries",
			Help:    "SQL statements executed per profiled request",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 500},
		}, []string{"method"}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "smells_query_duration_seconds",
			Help:    "Duration of individual SQL statements",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		Findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smells_profile_findings_total",
			Help: "Findings emitted as response headers",
		}, []string{"kind"}),
		SinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smells_profile_sink_errors_total",
			Help: "Reports that could not be stored",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.QueriesPerRequest, m.QueryDuration, m.Findings, m.SinkErrors)
	}
	return m
}
