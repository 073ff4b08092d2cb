// Package metrics holds the Prometheus collectors for the retrieval pipelines.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors registered for one process.
type Metrics struct {
	chunksIngested   prometheus.Counter
	documentsRemoved prometheus.Counter
	queries          *prometheus.CounterVec
	embedFallbacks   prometheus.Counter
	answerFallbacks  *prometheus.CounterVec
	buildDuration    prometheus.Histogram
	indexedChunks    *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		chunksIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docrag",
			Name:      "chunks_ingested_total",
			Help:      "Chunks inserted into the session store.",
		}),
		documentsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docrag",
			Name:      "documents_removed_total",
			Help:      "Documents removed from the session store.",
		}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docrag",
			Name:      "queries_total",
			Help:      "Queries served per pipeline.",
		}, []string{"pipeline"}),
		embedFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docrag",
			Name:      "embedding_fallbacks_total",
			Help:      "Remote embedding calls answered by the local encoder.",
		}),
		answerFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docrag",
			Name:      "answer_fallbacks_total",
			Help:      "Answers produced by the extractive path, by reason.",
		}, []string{"reason"}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "docrag",
			Name:      "index_build_seconds",
			Help:      "Duration of corpus index builds.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		indexedChunks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "docrag",
			Name:      "indexed_chunks",
			Help:      "Chunks currently held per pipeline.",
		}, []string{"pipeline"}),
	}
	if reg != nil {
		reg.MustRegister(m.chunksIngested, m.documentsRemoved, m.queries, m.embedFallbacks,
			m.answerFallbacks, m.buildDuration, m.indexedChunks)
	}
	return m
}

func (m *Metrics) ChunksIngested(n int) {
	if m != nil {
		m.chunksIngested.Add(float64(n))
	}
}

func (m *Metrics) DocumentRemoved() {
	if m != nil {
		m.documentsRemoved.Inc()
	}
}

func (m *Metrics) Query(pipeline string) {
	if m != nil {
		m.queries.WithLabelValues(pipeline).Inc()
	}
}

func (m *Metrics) EmbedFallback() {
	if m != nil {
		m.embedFallbacks.Inc()
	}
}

func (m *Metrics) AnswerFallback(reason string) {
	if m != nil {
		m.answerFallbacks.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) BuildDuration(d time.Duration) {
	if m != nil {
		m.buildDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) IndexedChunks(pipeline string, n int) {
	if m != nil {
		m.indexedChunks.WithLabelValues(pipeline).Set(float64(n))
	}
}
