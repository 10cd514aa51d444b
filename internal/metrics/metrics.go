// Package metrics exposes Prometheus collectors for the memory pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vox"

// Pipeline outcomes.
const (
	OutcomeStored   = "stored"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Dependency labels.
const (
	DepCompletion = "completion"
	DepClassifier = "classifier"
	DepSummarizer = "summarizer"
	DepEmbedding  = "embedding"
	DepStore      = "store"
)

var (
	// retrievalTier counts which retrieval tier served each query.
	retrievalTier = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_tier_total",
			Help:      "Retrievals by serving tier",
		},
		[]string{"tier"}, // "vector", "lexical" or "none"
	)

	// memoryPipeline counts capture attempts by outcome.
	memoryPipeline = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_pipeline_total",
			Help:      "Memory capture attempts by outcome",
		},
		[]string{"outcome"},
	)

	dependencyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dependency_failures_total",
			Help:      "Failed calls to external dependencies",
		},
		[]string{"dependency"},
	)

	turns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Chat turns by result",
		},
		[]string{"result"},
	)

	turnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "End-to-end chat turn latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func RecordRetrievalTier(tier string) {
	retrievalTier.WithLabelValues(tier).Inc()
}

func RecordPipeline(outcome string) {
	memoryPipeline.WithLabelValues(outcome).Inc()
}

func RecordDependencyFailure(dep string) {
	dependencyFailures.WithLabelValues(dep).Inc()
}

// RecordTurn records one completed or failed turn and its latency.
func RecordTurn(result string, elapsed time.Duration) {
	turns.WithLabelValues(result).Inc()
	turnDuration.Observe(elapsed.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
