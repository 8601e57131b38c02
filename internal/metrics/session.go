package metrics

import "github.com/prometheus/client_golang/prometheus"

// Session and oracle Prometheus metrics.
var (
	SessionSearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lookalike",
			Name:      "session_searches_total",
			Help:      "Total session searches by query kind and outcome",
		},
		[]string{"kind", "outcome"}, // outcome: ready / error / rejected / busy / soft_fail / discarded
	)

	SessionSearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lookalike",
			Name:      "session_search_duration_seconds",
			Help:      "Time from dispatch to completion of a session search",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	OracleRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lookalike",
			Name:      "oracle_requests_total",
			Help:      "Total ranking oracle requests",
		},
		[]string{"endpoint", "status"},
	)

	OracleRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lookalike",
			Name:      "oracle_request_duration_seconds",
			Help:      "Ranking oracle request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"endpoint"},
	)

	SimilarCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lookalike",
			Name:      "similar_cache_total",
			Help:      "Find-similar response cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	WorkspaceSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lookalike",
			Name:      "workspace_sessions",
			Help:      "Number of live gateway sessions",
		},
	)
)

var sessionMetricsRegistered bool

// RegisterSessionMetrics registers session, oracle and cache metrics. Must be called once from main.
func RegisterSessionMetrics() {
	if sessionMetricsRegistered {
		return
	}
	prometheus.MustRegister(SessionSearchesTotal)
	prometheus.MustRegister(SessionSearchDuration)
	prometheus.MustRegister(OracleRequestsTotal)
	prometheus.MustRegister(OracleRequestDuration)
	prometheus.MustRegister(SimilarCacheTotal)
	prometheus.MustRegister(WorkspaceSessions)
	sessionMetricsRegistered = true
}
