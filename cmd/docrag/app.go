package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docrag/internal/answer"
	"docrag/internal/chunker"
	"docrag/internal/config"
	"docrag/internal/corpus"
	"docrag/internal/embedding"
	"docrag/internal/llm"
	"docrag/internal/logger"
	"docrag/internal/metrics"
	"docrag/internal/ranking"
	"docrag/internal/service"
	"docrag/internal/vectorstore"
	"docrag/internal/vectorstore/memory"
	"docrag/internal/vectorstore/qdrant"
)

type globalOptions struct {
	configPath  string
	logLevel    string
	metricsAddr string
}

// app holds the components shared by every command.
type app struct {
	cfg      *config.AppConfig
	log      *slog.Logger
	metrics  *metrics.Metrics
	embedder *embedding.Provider
	scorer   ranking.Scorer
	server   *http.Server
	closers  []io.Closer
}

func newApp(opts *globalOptions) (*app, error) {
	var (
		cfg  *config.AppConfig
		path string
		err  error
	)
	if opts.configPath == "" {
		cfg, path, err = config.LoadDefault()
	} else {
		path = opts.configPath
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.metricsAddr != "" {
		cfg.Metrics.Addr = opts.metricsAddr
	}

	log := logger.New(cfg.Log)
	log.Debug("config loaded", "path", path)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	a := &app{
		cfg:      cfg,
		log:      log,
		metrics:  m,
		embedder: embedding.FromConfig(cfg.Embedder, log, m),
		scorer:   ranking.NewScorer(cfg.Ranking),
	}
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		a.server = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info("serving metrics", "addr", cfg.Metrics.Addr)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server stopped", "error", err)
			}
		}()
	}
	return a, nil
}

func (a *app) close() {
	for _, c := range append(a.closers, a.embedder) {
		if err := c.Close(); err != nil {
			a.log.Warn("closing backend failed", "error", err)
		}
	}
	if a.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = a.server.Shutdown(ctx)
}

func (a *app) store() (vectorstore.Storage, error) {
	switch a.cfg.VectorStore.Type {
	case "memory", "":
		return memory.NewStorage(), nil
	case "qdrant":
		qc := a.cfg.VectorStore.Qdrant
		if qc == nil {
			return nil, errors.New("vector_store.qdrant config missing")
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        qc.URL,
			APIKey:     qc.APIKey,
			Collection: qc.Collection,
			Timeout:    time.Duration(qc.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", a.cfg.VectorStore.Type)
	}
}

func (a *app) session() (*service.Session, error) {
	st, err := a.store()
	if err != nil {
		return nil, err
	}
	c := a.cfg.Chunker
	return service.NewSession(
		chunker.NewParagraph(c.ChunkSize, c.Overlap, c.MinLength),
		a.embedder,
		st,
		a.scorer,
		service.SessionOptions{TopK: a.cfg.Session.TopK, MinSimilarity: a.cfg.Session.MinSimilarity},
		a.log,
		a.metrics,
	), nil
}

func (a *app) corpus(ctx context.Context) *service.Corpus {
	gen, err := llm.FromConfig(ctx, a.cfg.Generator, a.log)
	if err != nil {
		a.log.Warn("answer generator unavailable, using extractive answers", "type", a.cfg.Generator.Type, "error", err)
		gen = nil
	}
	if c, ok := gen.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	cc := a.cfg.Corpus
	index := corpus.New(a.embedder, nil, corpus.Options{
		IndexDir:      cc.IndexDir,
		ChunkSize:     cc.ChunkSize,
		Overlap:       cc.Overlap,
		MinLength:     cc.MinLength,
		SnippetLength: cc.SnippetLength,
		BatchSize:     a.cfg.Embedder.BatchSize,
		Workers:       cc.Workers,
	}, a.log, a.metrics)
	synth := answer.NewSynthesizer(gen, answer.Options{
		MaxChunks:   a.cfg.Generator.MaxChunks,
		AnswerLimit: a.cfg.Generator.AnswerLimit,
	}, a.log, a.metrics)
	return service.NewCorpus(index, a.embedder, a.scorer, synth, service.CorpusOptions{
		SearchK:     cc.SearchK,
		ResultLimit: cc.ResultLimit,
	}, a.log, a.metrics)
}
