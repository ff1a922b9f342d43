package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Model call metrics
	ModelCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "questlog_model_calls_total",
			Help: "Total language-model calls",
		},
		[]string{"purpose", "outcome"}, // purpose: reply|title|summary|prompt, outcome: ok|error|timeout
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "questlog_session_cache_hits_total",
			Help: "Session cache hits by tier",
		},
		[]string{"tier"}, // "memory" or "local"
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "questlog_session_cache_misses_total",
			Help: "Session cache misses across both tiers",
		},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "questlog_session_cache_evictions_total",
			Help: "Invalid or stale cache entries evicted on read",
		},
		[]string{"reason"}, // "owner", "mode", "stale", "corrupt"
	)

	// Store metrics
	StoreWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "questlog_store_write_failures_total",
			Help: "Best-effort remote writes that failed",
		},
	)

	// Summary metrics
	SummariesSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "questlog_summaries_saved_total",
			Help: "Conversation summaries written as journal entries",
		},
		[]string{"fallback"}, // "true" when the direct-save path was used
	)
)
