// Package metrics holds the Prometheus collectors for retrieval and assembly.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "knowctx"

// Retrieval Prometheus metrics.
var (
	FallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Collaborator failures routed to a fallback path",
		},
		[]string{"stage"}, // classify / embed / search / keyword_search / enrich / facts / structures / generate
	)

	NearMatchViolationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "near_match_violations_total",
			Help:      "Protected near-match candidates missing from a final selection",
		},
	)

	RecallInjectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recall_injections_total",
			Help:      "Recall injector actions",
		},
		[]string{"pass", "action"}, // action: replaced / appended / evicted / skipped
	)

	RetrievalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Knowledge retrieval duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"mode"},
	)

	ContextPrunedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "context_pruned_items_total",
			Help:      "Items pruned by the token budget",
		},
		[]string{"category"},
	)

	ContextTokens = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "context_tokens",
			Help:      "Estimated tokens of assembled contexts",
			Buckets:   []float64{100, 250, 500, 1000, 1500, 1800, 2500, 4000},
		},
	)

	StructureResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "structure_resolutions_total",
			Help:      "Structure resolutions by provenance",
		},
		[]string{"resolution"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	EmbeddingBackfillTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_backfill_total",
			Help:      "Chunks processed by the embedding backfill worker",
		},
		[]string{"outcome"}, // "embedded" / "failed"
	)
)

var retrievalMetricsRegistered bool

// RegisterRetrievalMetrics registers the retrieval metrics. Must be called once from main.
func RegisterRetrievalMetrics() {
	if retrievalMetricsRegistered {
		return
	}
	prometheus.MustRegister(FallbacksTotal)
	prometheus.MustRegister(NearMatchViolationsTotal)
	prometheus.MustRegister(RecallInjectionsTotal)
	prometheus.MustRegister(RetrievalDuration)
	prometheus.MustRegister(ContextPrunedTotal)
	prometheus.MustRegister(ContextTokens)
	prometheus.MustRegister(StructureResolutionsTotal)
	prometheus.MustRegister(EmbeddingCacheTotal)
	prometheus.MustRegister(EmbeddingBackfillTotal)
	retrievalMetricsRegistered = true
}
