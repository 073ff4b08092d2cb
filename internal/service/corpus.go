package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"docrag/internal/answer"
	"docrag/internal/corpus"
	"docrag/internal/domain"
	"docrag/internal/embedding"
	"docrag/internal/logger"
	"docrag/internal/metrics"
	"docrag/internal/ranking"
)

// CorpusOptions tunes the corpus pipeline.
type CorpusOptions struct {
	SearchK     int
	ResultLimit int
}

// Corpus is the persistent pipeline: a directory is built into an on-disk
// index that is loaded lazily and answered generatively.
type Corpus struct {
	index    *corpus.Index
	embedder embedding.Embedder
	scorer   ranking.Scorer
	synth    *answer.Synthesizer
	opts     CorpusOptions
	log      *slog.Logger
	metrics  *metrics.Metrics
}

func NewCorpus(index *corpus.Index, emb embedding.Embedder, scorer ranking.Scorer, synth *answer.Synthesizer, opts CorpusOptions, log *slog.Logger, m *metrics.Metrics) *Corpus {
	if opts.SearchK <= 0 {
		opts.SearchK = 10
	}
	if opts.ResultLimit <= 0 {
		opts.ResultLimit = 8
	}
	return &Corpus{index: index, embedder: emb, scorer: scorer, synth: synth, opts: opts, log: logger.OrDiscard(log), metrics: m}
}

// Build rebuilds the index from dir.
func (c *Corpus) Build(ctx context.Context, dir string) (corpus.BuildResult, error) {
	return c.index.Build(ctx, dir)
}

var definitionCues = []string{"what", "çfarë", "ç'është"}

const definitionExpansion = " definition përkufizim explanation shpjegim"

// ExpandQuery appends definition vocabulary to questions that ask what
// something is. Only retrieval sees the expanded text.
func ExpandQuery(question string) string {
	lower := strings.ToLower(question)
	for _, cue := range definitionCues {
		if strings.Contains(lower, cue) {
			return question + definitionExpansion
		}
	}
	return question
}

// Query answers a question from the persisted index. topK overrides the
// retrieval depth; scope keeps only chunks from one source file.
func (c *Corpus) Query(ctx context.Context, text string, topK int, scope string) (Response, error) {
	if !c.ensureLoaded() {
		return Response{}, domain.ErrNotIndexed
	}
	if topK <= 0 {
		topK = c.opts.SearchK
	}
	vec, err := c.embedder.Embed(ctx, ExpandQuery(text))
	if err != nil {
		return Response{}, fmt.Errorf("embed query: %w", err)
	}
	hits, err := c.index.Search(ctx, vec, topK)
	if err != nil {
		return Response{}, err
	}
	c.metrics.Query("corpus")
	if scope != "" {
		hits = inScope(hits, scope)
	}
	results := c.scorer.Rank(text, hits, ranking.L2, c.opts.ResultLimit)
	return Response{Answer: c.synth.Synthesize(ctx, text, results), Results: results}, nil
}

// Status loads the index from disk if needed and reports its size.
func (c *Corpus) Status(_ context.Context) domain.Status {
	c.ensureLoaded()
	return c.index.Status()
}

func (c *Corpus) ensureLoaded() bool {
	if c.index.Loaded() {
		return true
	}
	return c.index.Load()
}

func inScope(hits []domain.Hit, scope string) []domain.Hit {
	out := hits[:0:0]
	for _, h := range hits {
		src := h.Chunk.Provenance.DocumentID
		if src == scope || filepath.Base(src) == scope {
			out = append(out, h)
		}
	}
	return out
}
