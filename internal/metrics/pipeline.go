package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics. Registered explicitly from the composition
// root (no init()).
var (
	ClassifierRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "navsearch",
			Name:      "classifier_requests_total",
			Help:      "Total number of reasoning service calls",
		},
		[]string{"model", "status"},
	)

	ClassifierRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "navsearch",
			Name:      "classifier_request_duration_seconds",
			Help:      "Reasoning service call duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"model"},
	)

	ClassifierTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "navsearch",
			Name:      "classifier_tokens_total",
			Help:      "Total reasoning service tokens consumed",
		},
		[]string{"model", "type"},
	)

	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "navsearch",
			Name:      "classification_cache_lookups_total",
			Help:      "Classification cache lookups per tier and result",
		},
		[]string{"tier", "result"},
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "navsearch",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "navsearch",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"model"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "navsearch",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"},
	)

	EmbeddingQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "navsearch",
			Name:      "embedding_queue_depth",
			Help:      "Entities waiting for vector generation",
		},
	)

	EmbeddingQueueDropsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "navsearch",
			Name:      "embedding_queue_drops_total",
			Help:      "Enqueue attempts dropped because the queue was full",
		},
	)

	EmbeddingsGeneratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "navsearch",
			Name:      "embeddings_generated_total",
			Help:      "Embedding records generated per entity type and status",
		},
		[]string{"entity_type", "status"},
	)

	VectorCoverageGapTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "navsearch",
			Name:      "vector_coverage_gap_total",
			Help:      "Structured-filter candidates excluded from semantic ranking for lack of a current-model vector",
		},
		[]string{"entity_type"},
	)

	ProviderBudgetTokensRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "navsearch",
			Name:      "provider_budget_tokens_remaining",
			Help:      "Remaining provider token budget per window (-1 when unlimited)",
		},
		[]string{"provider", "period"},
	)

	InvalidFilterDropsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "navsearch",
			Name:      "invalid_filter_drops_total",
			Help:      "Filter sets dropped because a key was outside the target's filterable fields",
		},
		[]string{"page"},
	)
)

// RegisterPipelineMetrics registers all pipeline metrics with the default registry.
func RegisterPipelineMetrics() {
	prometheus.MustRegister(
		ClassifierRequestsTotal,
		ClassifierRequestDuration,
		ClassifierTokensTotal,
		CacheLookupsTotal,
		EmbeddingRequestsTotal,
		EmbeddingRequestDuration,
		EmbeddingCacheTotal,
		EmbeddingQueueDepth,
		EmbeddingQueueDropsTotal,
		EmbeddingsGeneratedTotal,
		VectorCoverageGapTotal,
		ProviderBudgetTokensRemaining,
		InvalidFilterDropsTotal,
	)
}
