package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ChunksIngested(3)
	m.Query("session")
	m.Query("session")
	m.EmbedFallback()
	m.AnswerFallback("no_backend")
	m.IndexedChunks("corpus", 42)
	m.BuildDuration(time.Second)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.chunksIngested))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.queries.WithLabelValues("session")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.embedFallbacks))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.indexedChunks.WithLabelValues("corpus")))

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ChunksIngested(1)
		m.DocumentRemoved()
		m.Query("corpus")
		m.EmbedFallback()
		m.AnswerFallback("error")
		m.BuildDuration(time.Millisecond)
		m.IndexedChunks("corpus", 1)
	})
}
