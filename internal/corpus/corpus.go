// Package corpus is the persistent vector index: a full-rebuild exact L2 index
// over a directory of documents, saved as a binary matrix plus JSON metadata.
package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"docrag/internal/chunker"
	"docrag/internal/domain"
	"docrag/internal/embedding"
	"docrag/internal/extract"
	"docrag/internal/logger"
	"docrag/internal/metrics"
	"docrag/internal/vectorstore/flat"
)

const (
	IndexFile    = "index.flat"
	MetadataFile = "metadata.json"
)

// Record is one metadata row, aligned with the matrix row of the same position.
type Record struct {
	Source  string `json:"source"`
	Page    int    `json:"page"`
	ChunkID string `json:"chunk_id"`
	Text    string `json:"text"`
	Snippet string `json:"snippet"`
}

// BuildResult is reported by a successful Build.
type BuildResult struct {
	Status       string `json:"status"`
	NumDocuments int    `json:"num_documents"`
	NumChunks    int    `json:"num_chunks"`
}

// Options configures chunking, batching and where artifacts live.
type Options struct {
	IndexDir      string
	ChunkSize     int
	Overlap       int
	MinLength     int
	SnippetLength int
	BatchSize     int
	Workers       int
}

type snapshot struct {
	matrix  *flat.Index
	records []Record
}

// Index is safe for concurrent Search while a Build runs: a build assembles a
// new snapshot off to the side and swaps it in with one atomic store.
type Index struct {
	opts      Options
	embedder  embedding.Embedder
	extractor *extract.Registry
	splitter  *chunker.Recursive
	log       *slog.Logger
	metrics   *metrics.Metrics

	buildMu sync.Mutex
	current atomic.Pointer[snapshot]
}

func New(embedder embedding.Embedder, extractor *extract.Registry, opts Options, log *slog.Logger, m *metrics.Metrics) *Index {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = chunker.DefaultCorpusChunkSize
	}
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}
	if opts.MinLength <= 0 {
		opts.MinLength = chunker.DefaultCorpusMinLength
	}
	if opts.SnippetLength <= 0 {
		opts.SnippetLength = chunker.DefaultSnippetLength
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if extractor == nil {
		extractor = extract.NewRegistry()
	}
	return &Index{
		opts:      opts,
		embedder:  embedder,
		extractor: extractor,
		splitter:  chunker.NewRecursive(opts.ChunkSize, opts.Overlap),
		log:       logger.OrDiscard(log),
		metrics:   m,
	}
}

// Build scans dir, embeds every surviving chunk and replaces the current index.
// The new index is saved before Build returns. A failed save is a build
// error even though the new index stays searchable in memory.
func (x *Index) Build(ctx context.Context, dir string) (BuildResult, error) {
	x.buildMu.Lock()
	defer x.buildMu.Unlock()
	start := time.Now()

	files, err := x.extractor.Discover(dir)
	if err != nil {
		return BuildResult{}, &domain.BuildError{Reason: "corpus directory not readable", Err: err}
	}
	if len(files) == 0 {
		return BuildResult{}, &domain.BuildError{Reason: "no source files found", Err: domain.ErrEmptyInput}
	}
	x.log.Info("building corpus index", "dir", dir, "files", len(files))

	var records []Record
	for _, path := range files {
		pages, err := x.extractor.Extract(path)
		if err != nil {
			x.log.Warn("skipping unreadable source", "path", path, "error", err)
			continue
		}
		records = append(records, x.chunkPages(path, pages)...)
	}
	if len(records) == 0 {
		return BuildResult{}, &domain.BuildError{Reason: "no chunks created", Err: domain.ErrEmptyInput}
	}

	vectors, err := x.embed(ctx, records)
	if err != nil {
		return BuildResult{}, &domain.BuildError{Reason: "embedding failed", Err: err}
	}
	matrix := flat.New(x.embedder.Dimension())
	if err := matrix.Add(vectors...); err != nil {
		return BuildResult{}, &domain.BuildError{Reason: "embedding dimension changed during build", Err: err}
	}

	x.current.Store(&snapshot{matrix: matrix, records: records})
	x.metrics.BuildDuration(time.Since(start))
	x.metrics.IndexedChunks("corpus", len(records))
	if err := x.save(); err != nil {
		x.log.Error("saving corpus index failed", "dir", x.opts.IndexDir, "error", err)
		return BuildResult{}, &domain.BuildError{Reason: "saving index failed", Err: err}
	}
	x.log.Info("corpus index built", "documents", len(files), "chunks", len(records), "elapsed", time.Since(start))
	return BuildResult{Status: "success", NumDocuments: len(files), NumChunks: len(records)}, nil
}

func (x *Index) chunkPages(path string, pages []extract.Page) []Record {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var out []Record
	for _, page := range pages {
		for i, text := range x.splitter.Split(page.Text) {
			if len([]rune(strings.TrimSpace(text))) < x.opts.MinLength {
				continue
			}
			out = append(out, Record{
				Source:  page.Source,
				Page:    page.Number,
				ChunkID: fmt.Sprintf("%s_page%d_chunk%d", stem, page.Number, i),
				Text:    text,
				Snippet: chunker.Snippet(text, x.opts.SnippetLength),
			})
		}
	}
	return out
}

func (x *Index) embed(ctx context.Context, records []Record) ([][]float32, error) {
	vectors := make([][]float32, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.opts.Workers)
	for start := 0; start < len(records); start += x.opts.BatchSize {
		end := min(start+x.opts.BatchSize, len(records))
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, r := range records[start:end] {
				texts = append(texts, r.Text)
			}
			out, err := x.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return err
			}
			if len(out) != len(texts) {
				return fmt.Errorf("embedder returned %d vectors for %d texts", len(out), len(texts))
			}
			copy(vectors[start:end], out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Save writes both artifacts, each through a temp file and rename.
func (x *Index) Save() error {
	x.buildMu.Lock()
	defer x.buildMu.Unlock()
	return x.save()
}

func (x *Index) save() error {
	snap := x.current.Load()
	if snap == nil {
		return domain.ErrNotIndexed
	}
	if err := os.MkdirAll(x.opts.IndexDir, 0o755); err != nil {
		return err
	}
	if err := writeAtomic(x.path(IndexFile), func(w io.Writer) error {
		_, err := snap.matrix.WriteTo(w)
		return err
	}); err != nil {
		return fmt.Errorf("write %s: %w", IndexFile, err)
	}
	if err := writeAtomic(x.path(MetadataFile), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap.records)
	}); err != nil {
		return fmt.Errorf("write %s: %w", MetadataFile, err)
	}
	return nil
}

// Load reads the artifacts from disk. Any inconsistency is treated as
// corruption: both files are deleted and Load reports false.
func (x *Index) Load() bool {
	x.buildMu.Lock()
	defer x.buildMu.Unlock()
	snap, err := x.read()
	if err != nil {
		if errors.Is(err, domain.ErrCorruptArtifact) {
			x.log.Warn("corrupt corpus index removed, rebuild required", "dir", x.opts.IndexDir, "error", err)
			x.remove()
		}
		return false
	}
	x.current.Store(snap)
	x.metrics.IndexedChunks("corpus", len(snap.records))
	x.log.Info("corpus index loaded", "chunks", len(snap.records), "dimension", snap.matrix.Dimension())
	return true
}

func (x *Index) read() (*snapshot, error) {
	indexInfo, indexErr := os.Stat(x.path(IndexFile))
	metaInfo, metaErr := os.Stat(x.path(MetadataFile))
	if errors.Is(indexErr, os.ErrNotExist) && errors.Is(metaErr, os.ErrNotExist) {
		return nil, domain.ErrNotIndexed
	}
	if indexErr != nil || metaErr != nil {
		return nil, fmt.Errorf("%w: missing artifact", domain.ErrCorruptArtifact)
	}
	if indexInfo.Size() == 0 || metaInfo.Size() == 0 {
		return nil, fmt.Errorf("%w: empty artifact", domain.ErrCorruptArtifact)
	}

	f, err := os.Open(x.path(IndexFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	matrix := &flat.Index{}
	if _, err := matrix.ReadSized(f, indexInfo.Size()); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptArtifact, err)
	}

	data, err := os.ReadFile(x.path(MetadataFile))
	if err != nil {
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", domain.ErrCorruptArtifact, err)
	}
	if len(records) != matrix.Len() {
		return nil, fmt.Errorf("%w: %d metadata rows for %d vectors", domain.ErrCorruptArtifact, len(records), matrix.Len())
	}
	return &snapshot{matrix: matrix, records: records}, nil
}

func (x *Index) remove() {
	for _, name := range []string{IndexFile, MetadataFile} {
		if err := os.Remove(x.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			x.log.Warn("removing corpus artifact failed", "file", name, "error", err)
		}
	}
}

// Loaded reports whether an index is in memory.
func (x *Index) Loaded() bool { return x.current.Load() != nil }

// Dimension returns the dimension of the loaded index, or 0.
func (x *Index) Dimension() int {
	if snap := x.current.Load(); snap != nil {
		return snap.matrix.Dimension()
	}
	return 0
}

// Search returns the k nearest chunks. Hit scores are squared L2 distances.
func (x *Index) Search(_ context.Context, vector []float32, k int) ([]domain.Hit, error) {
	snap := x.current.Load()
	if snap == nil {
		return nil, domain.ErrNotIndexed
	}
	neighbors, err := snap.matrix.Search(vector, k)
	if err != nil {
		return nil, err
	}
	hits := make([]domain.Hit, 0, len(neighbors))
	for _, n := range neighbors {
		r := snap.records[n.Row]
		hits = append(hits, domain.Hit{
			Chunk: domain.Chunk{
				ID:      r.ChunkID,
				Text:    r.Text,
				Snippet: r.Snippet,
				Provenance: domain.Provenance{
					DocumentID: r.Source,
					Page:       r.Page,
					Sequence:   n.Row,
				},
			},
			Score: n.Distance,
		})
	}
	return hits, nil
}

// Records returns the metadata rows of the current index.
func (x *Index) Records() []Record {
	snap := x.current.Load()
	if snap == nil {
		return nil
	}
	return append([]Record(nil), snap.records...)
}

// Status counts distinct sources among indexed chunks.
func (x *Index) Status() domain.Status {
	snap := x.current.Load()
	if snap == nil {
		return domain.Status{}
	}
	sources := make(map[string]struct{})
	for _, r := range snap.records {
		sources[r.Source] = struct{}{}
	}
	return domain.Status{Indexed: true, NumDocuments: len(sources), NumChunks: len(snap.records)}
}

func (x *Index) path(name string) string { return filepath.Join(x.opts.IndexDir, name) }

func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
