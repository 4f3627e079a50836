package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run statuses used as metric label values.
const (
	StatusOK          = "ok"
	StatusInterrupted = "interrupted"
	StatusFailed      = "failed"
)

// CorefMetrics holds all Prometheus metrics for coreference resolution runs.
type CorefMetrics struct {
	// Run metrics
	RunsTotal      *prometheus.CounterVec
	RunSeconds     *prometheus.HistogramVec
	StageSeconds   *prometheus.HistogramVec
	MentionsPerRun prometheus.Histogram
	ClustersPerRun prometheus.Histogram

	// Pair metrics
	PairsTotal      *prometheus.CounterVec
	PairScores      *prometheus.HistogramVec
	ScoreCacheTotal *prometheus.CounterVec

	// Merge metrics
	MergesTotal *prometheus.CounterVec

	// Batch metrics
	WorkersActive prometheus.Gauge
}

// DefaultCorefMetrics creates metrics registered on the default registerer.
func DefaultCorefMetrics() *CorefMetrics {
	return NewCorefMetrics(prometheus.DefaultRegisterer)
}

// NewCorefMetrics creates a new set of coreference metrics on reg.
func NewCorefMetrics(reg prometheus.Registerer) *CorefMetrics {
	factory := promauto.With(reg)

	return &CorefMetrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coref_runs_total",
				Help: "Total resolution runs by outcome",
			},
			[]string{"status"},
		),
		RunSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coref_run_seconds",
				Help:    "Wall time of a resolution run",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"status"},
		),
		StageSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coref_stage_seconds",
				Help:    "Latency of each resolution stage",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"stage"},
		),
		MentionsPerRun: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "coref_mentions_per_run",
				Help:    "Mentions per resolved document",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		ClustersPerRun: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "coref_clusters_per_run",
				Help:    "Clusters remaining after a resolved document",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		PairsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coref_pairs_total",
				Help: "Candidate pairs by outcome (scored, excluded, linked)",
			},
			[]string{"outcome"},
		),
		PairScores: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coref_pair_score",
				Help:    "Distribution of pair scores by threshold bucket",
				Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.35, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			},
			[]string{"bucket"},
		),
		ScoreCacheTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coref_score_cache_total",
				Help: "Score cache lookups by result (hit, miss, error)",
			},
			[]string{"result"},
		),
		MergesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coref_merges_total",
				Help: "Merge operations by result (applied, noop)",
			},
			[]string{"result"},
		),
		WorkersActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "coref_batch_workers_active",
				Help: "Batch workers currently resolving a document",
			},
		),
	}
}

// RecordRun records the outcome and latency of one resolution run.
func (m *CorefMetrics) RecordRun(status string, seconds float64, mentions, clusters int) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunSeconds.WithLabelValues(status).Observe(seconds)
	if status == StatusOK {
		m.MentionsPerRun.Observe(float64(mentions))
		m.ClustersPerRun.Observe(float64(clusters))
	}
}

// RecordStage records latency for one stage of a run.
func (m *CorefMetrics) RecordStage(stage string, seconds float64) {
	m.StageSeconds.WithLabelValues(stage).Observe(seconds)
}

// RecordPairs adds n pairs with the given outcome.
func (m *CorefMetrics) RecordPairs(outcome string, n int) {
	m.PairsTotal.WithLabelValues(outcome).Add(float64(n))
}

// RecordScore observes a pair score under its threshold bucket.
func (m *CorefMetrics) RecordScore(bucket string, score float64) {
	m.PairScores.WithLabelValues(bucket).Observe(score)
}

// RecordCacheLookup records a score cache lookup result.
func (m *CorefMetrics) RecordCacheLookup(result string) {
	m.ScoreCacheTotal.WithLabelValues(result).Inc()
}

// RecordMerges records applied and no-op merges.
func (m *CorefMetrics) RecordMerges(applied, noop int) {
	m.MergesTotal.WithLabelValues("applied").Add(float64(applied))
	m.MergesTotal.WithLabelValues("noop").Add(float64(noop))
}
