// Package metrics holds the Prometheus collectors of the scoring core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LMLookups counts n-gram probability lookups by result (hit, miss).
	LMLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "translate_lm_lookups_total",
		Help: "Language model probability lookups by cache result",
	}, []string{"result"})

	// ActiveTasks tracks tasks between BeginTask and EndTask.
	ActiveTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "translate_active_tasks",
		Help: "Translation tasks currently holding scoring state",
	})

	// CandidatesRetrieved counts raw alignment records per lookup.
	CandidatesRetrieved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "translate_candidates_retrieved_total",
		Help: "Raw alignment records returned by the phrase memory",
	})

	// CandidatesPruned counts candidates dropped by the table limit.
	CandidatesPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "translate_candidates_pruned_total",
		Help: "Candidates discarded by table-limit pruning",
	})

	// RetrievalDuration tracks bulk phrase-memory queries.
	RetrievalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "translate_retrieval_duration_seconds",
		Help:    "Bulk phrase-memory retrieval latency",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})
)
