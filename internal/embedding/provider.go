package embedding

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"docrag/internal/config"
	"docrag/internal/embedding/gemini"
	"docrag/internal/embedding/hashing"
	"docrag/internal/embedding/openai"
	"docrag/internal/metrics"
)

// Provider is the shared embedding entry point. Its backend is built lazily on
// first use, exactly once, and reused for the life of the process.
type Provider struct {
	build   func(ctx context.Context) Embedder
	once    sync.Once
	backend Embedder
	built   atomic.Bool
}

// NewProvider creates a provider around a backend factory.
func NewProvider(build func(ctx context.Context) Embedder) *Provider {
	return &Provider{build: build}
}

// Backend returns the backend, building it on the first call.
func (p *Provider) Backend(ctx context.Context) Embedder {
	p.once.Do(func() {
		p.backend = p.build(ctx)
		p.built.Store(true)
	})
	return p.backend
}

// Close releases the backend if it was built. It never builds one.
func (p *Provider) Close() error {
	if !p.built.Load() {
		return nil
	}
	return closeBackend(p.backend)
}

func (p *Provider) Name() string { return p.Backend(context.Background()).Name() }

func (p *Provider) Dimension() int { return p.Backend(context.Background()).Dimension() }

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	return p.Backend(ctx).Embed(ctx, text)
}

func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return p.Backend(ctx).EmbedBatch(ctx, texts)
}

// FromConfig returns a provider that selects the backend named in cfg.
// Remote backends are wrapped in a Fallback to the local encoder; a remote
// backend that cannot be constructed degrades to the local encoder.
func FromConfig(cfg config.EmbedderConfig, log *slog.Logger, m *metrics.Metrics) *Provider {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return NewProvider(func(ctx context.Context) Embedder {
		var remote Embedder
		switch cfg.Type {
		case "local", "":
			enc := hashing.NewEncoder(cfg.Dimension)
			log.Info("using local embedding encoder", "dimension", enc.Dimension())
			return enc
		case "openai":
			oc := config.OpenAIEmbedderConfig{}
			if cfg.OpenAI != nil {
				oc = *cfg.OpenAI
			}
			client, err := openai.NewClient(openai.Config{
				BaseURL:    oc.BaseURL,
				APIKeyEnv:  oc.APIKeyEnv,
				Model:      oc.Model,
				Dimension:  cfg.Dimension,
				Timeout:    time.Duration(oc.TimeoutSecs) * time.Second,
				MaxRetries: oc.MaxRetries,
			})
			if err != nil {
				log.Warn("openai embedder unavailable, using local encoder", "error", err)
				return hashing.NewEncoder(cfg.Dimension)
			}
			remote = client
		case "gemini":
			gc := config.GeminiConfig{}
			if cfg.Gemini != nil {
				gc = *cfg.Gemini
			}
			client, err := gemini.NewClient(ctx, gemini.Config{
				APIKeyEnv: gc.APIKeyEnv,
				Model:     gc.EmbeddingModel,
				Dimension: cfg.Dimension,
			})
			if err != nil {
				log.Warn("gemini embedder unavailable, using local encoder", "error", err)
				return hashing.NewEncoder(cfg.Dimension)
			}
			remote = client
		default:
			log.Warn("unknown embedder, using local encoder", "type", cfg.Type)
			return hashing.NewEncoder(cfg.Dimension)
		}
		fb, err := NewFallback(remote, hashing.NewEncoder(remote.Dimension()), log, m)
		if err != nil {
			log.Warn("embedding fallback setup failed, using local encoder", "error", err)
			return hashing.NewEncoder(cfg.Dimension)
		}
		log.Info("using remote embedding backend", "backend", remote.Name(), "dimension", remote.Dimension())
		return fb
	})
}
