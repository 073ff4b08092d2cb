package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"docrag/internal/answer"
	"docrag/internal/domain"
	"docrag/internal/embedding"
	"docrag/internal/extract"
	"docrag/internal/logger"
	"docrag/internal/metrics"
	"docrag/internal/ranking"
	"docrag/internal/summarizer"
	"docrag/internal/vectorstore"
)

// SessionOptions tunes the session pipeline.
type SessionOptions struct {
	TopK             int
	MinSimilarity    float64
	SummarySentences int
}

// IngestReport describes an IngestFiles call.
type IngestReport struct {
	Documents []string
	Chunks    int
	Summary   string
}

// Session is the ephemeral pipeline: documents are ingested into a mutable
// store, removed individually and queried with a heuristic answer.
type Session struct {
	chunker    domain.Chunker
	embedder   embedding.Embedder
	store      vectorstore.Storage
	scorer     ranking.Scorer
	summarizer *summarizer.FrequencySummarizer
	extractor  *extract.Registry
	opts       SessionOptions
	log        *slog.Logger
	metrics    *metrics.Metrics

	// mu serialises ingest and remove so sequence numbers stay unique per document.
	mu   sync.Mutex
	docs map[string]int
}

func NewSession(ch domain.Chunker, emb embedding.Embedder, store vectorstore.Storage, scorer ranking.Scorer, opts SessionOptions, log *slog.Logger, m *metrics.Metrics) *Session {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.SummarySentences <= 0 {
		opts.SummarySentences = summarizer.DefaultSentences
	}
	return &Session{
		chunker:    ch,
		embedder:   emb,
		store:      store,
		scorer:     scorer,
		summarizer: summarizer.NewFrequencySummarizer(),
		extractor:  extract.NewRegistry(),
		opts:       opts,
		log:        logger.OrDiscard(log),
		metrics:    m,
		docs:       make(map[string]int),
	}
}

// Ingest chunks, embeds and stores text under documentID and returns the
// number of chunks stored. Ingesting the same id twice stores both sets.
func (s *Session) Ingest(ctx context.Context, documentID, text string) (int, error) {
	if strings.TrimSpace(text) == "" {
		s.log.Warn("skipping document without text", "document", documentID)
		return 0, nil
	}
	chunks, err := s.chunker.Chunk(domain.Document{ID: documentID, Content: text})
	if err != nil {
		return 0, fmt.Errorf("chunk %s: %w", documentID, err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	offset, err := s.store.CountDocument(ctx, documentID)
	if err != nil {
		return 0, err
	}
	texts := make([]string, len(chunks))
	for i := range chunks {
		if offset > 0 {
			seq := offset + i
			chunks[i].ID = fmt.Sprintf("%s_chunk_%d", documentID, seq)
			chunks[i].Provenance.Sequence = seq
		}
		texts[i] = chunks[i].Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", documentID, err)
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	if err := s.store.Insert(ctx, chunks); err != nil {
		return 0, fmt.Errorf("store %s: %w", documentID, err)
	}
	s.docs[documentID] += len(chunks)
	s.metrics.ChunksIngested(len(chunks))
	s.recordSize(ctx)
	s.log.Info("indexed document", "document", documentID, "chunks", len(chunks))
	return len(chunks), nil
}

// IngestFiles expands globs, reads every supported file and ingests it under
// its file name. The report carries a short extractive summary of all text.
func (s *Session) IngestFiles(ctx context.Context, patterns []string) (IngestReport, error) {
	var files []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return IngestReport{}, fmt.Errorf("pattern %q: %w", p, err)
		}
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && !info.IsDir() && s.extractor.Supports(m) {
				files = append(files, m)
			}
		}
	}
	if len(files) == 0 {
		return IngestReport{}, fmt.Errorf("no supported documents found: %w", domain.ErrEmptyInput)
	}

	var report IngestReport
	var all strings.Builder
	for _, path := range files {
		pages, err := s.extractor.Extract(path)
		if err != nil {
			return report, fmt.Errorf("read %s: %w", path, err)
		}
		parts := make([]string, len(pages))
		for i, p := range pages {
			parts[i] = p.Text
		}
		text := strings.Join(parts, "\n\n")
		id := filepath.Base(path)
		n, err := s.Ingest(ctx, id, text)
		if err != nil {
			return report, err
		}
		report.Documents = append(report.Documents, id)
		report.Chunks += n
		all.WriteString(text)
		all.WriteString("\n\n")
	}
	report.Summary = s.summarizer.Summarize(all.String(), s.opts.SummarySentences)
	return report, nil
}

// Remove deletes every chunk of documentID and returns how many were removed.
func (s *Session) Remove(ctx context.Context, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.store.DeleteDocument(ctx, documentID)
	if err != nil {
		return 0, err
	}
	delete(s.docs, documentID)
	if n > 0 {
		s.metrics.DocumentRemoved()
		s.log.Info("removed document", "document", documentID, "chunks", n)
	}
	s.recordSize(ctx)
	return n, nil
}

// Query ranks the topK best chunks, optionally scoped to one document,
// and answers heuristically. Low similarity never drops results.
func (s *Session) Query(ctx context.Context, text string, topK int, scope string) (Response, error) {
	if topK <= 0 {
		topK = s.opts.TopK
	}
	size, err := s.store.Len(ctx)
	if err != nil {
		return Response{}, err
	}
	if size == 0 {
		return Response{}, domain.ErrNotIndexed
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return Response{}, fmt.Errorf("embed query: %w", err)
	}
	hits, err := s.store.Search(ctx, vec, topK*2, scope)
	if err != nil {
		return Response{}, err
	}
	s.metrics.Query("session")
	if len(hits) == 0 {
		return Response{Answer: answer.NoDocuments, Results: []domain.Result{}}, nil
	}
	results := s.scorer.Rank(text, hits, ranking.Cosine, topK)
	best := hits[0].Score
	return Response{
		Answer:        answer.Heuristic(text, results),
		Results:       results,
		LowConfidence: best < s.opts.MinSimilarity,
	}, nil
}

// Status reports the number of tracked documents and stored chunks.
func (s *Session) Status(ctx context.Context) domain.Status {
	n, err := s.store.Len(ctx)
	if err != nil {
		s.log.Warn("session status unavailable", "error", err)
		return domain.Status{}
	}
	s.mu.Lock()
	docs := len(s.docs)
	s.mu.Unlock()
	return domain.Status{Indexed: n > 0, NumDocuments: docs, NumChunks: n}
}

func (s *Session) recordSize(ctx context.Context) {
	if n, err := s.store.Len(ctx); err == nil {
		s.metrics.IndexedChunks("session", n)
	}
}
