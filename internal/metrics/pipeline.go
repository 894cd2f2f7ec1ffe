package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval pipeline metrics.
var (
	QuoteRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procura",
			Name:      "quote_requests_total",
			Help:      "Total number of processed quote requests",
		},
		[]string{"status"}, // "ok" / "error"
	)

	QuoteLinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procura",
			Name:      "quote_lines_total",
			Help:      "Quote line items by outcome",
		},
		[]string{"outcome"}, // "found" / "not_found"
	)

	QuoteDecompositionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procura",
			Name:      "quote_decomposition_total",
			Help:      "Query decompositions by strategy",
		},
		[]string{"strategy"}, // "parser" / "rules" / "identity"
	)

	SearchRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "procura",
			Name:      "search_request_duration_seconds",
			Help:      "Similarity search duration in seconds, embedding included",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers retrieval pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(QuoteRequestsTotal)
	prometheus.MustRegister(QuoteLinesTotal)
	prometheus.MustRegister(QuoteDecompositionTotal)
	prometheus.MustRegister(SearchRequestDuration)
	pipelineMetricsRegistered = true
}
