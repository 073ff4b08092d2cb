// Package llm holds the generative backends used to write answers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"docrag/internal/config"
	"docrag/internal/domain"
	"docrag/internal/llm/gemini"
	"docrag/internal/llm/openai"
	"docrag/internal/logger"
)

// Generator produces text from a system instruction and a user prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Guard rate-limits a generator and trips a circuit breaker after repeated
// failures so a dead backend fails fast.
type Guard struct {
	next    Generator
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewGuard wraps next. A non-positive requestsPerMinute disables rate limiting.
func NewGuard(next Generator, requestsPerMinute int, log *slog.Logger) *Guard {
	log = logger.OrDiscard(log)
	g := &Guard{next: next}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "generator-" + next.Name(),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("generator circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	if requestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), max(1, requestsPerMinute/10))
	}
	return g
}

func (g *Guard) Name() string { return g.next.Name() }

// Close releases the wrapped generator when it holds resources.
func (g *Guard) Close() error {
	if c, ok := g.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Generate reports every failure as wrapping domain.ErrBackendUnavailable.
func (g *Guard) Generate(ctx context.Context, system, prompt string) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%s: %w", g.next.Name(), errors.Join(domain.ErrBackendUnavailable, err))
		}
	}
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.next.Generate(ctx, system, prompt)
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", g.next.Name(), errors.Join(domain.ErrBackendUnavailable, err))
	}
	return out.(string), nil
}

// FromConfig builds the configured generator wrapped in a Guard.
// It returns nil when generation is disabled.
func FromConfig(ctx context.Context, cfg config.GeneratorConfig, log *slog.Logger) (Generator, error) {
	var gen Generator
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "openai":
		oc := config.OpenAIGeneratorConfig{}
		if cfg.OpenAI != nil {
			oc = *cfg.OpenAI
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:     oc.BaseURL,
			APIKeyEnv:   oc.APIKeyEnv,
			Model:       oc.Model,
			Temperature: oc.Temperature,
			MaxTokens:   oc.MaxTokens,
			Timeout:     time.Duration(oc.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		gen = client
	case "gemini":
		gc := config.GeminiConfig{}
		if cfg.Gemini != nil {
			gc = *cfg.Gemini
		}
		client, err := gemini.NewClient(ctx, gemini.Config{APIKeyEnv: gc.APIKeyEnv, Model: gc.Model})
		if err != nil {
			return nil, err
		}
		gen = client
	default:
		return nil, fmt.Errorf("unknown generator type %q", cfg.Type)
	}
	return NewGuard(gen, cfg.RequestsPerMinute, log), nil
}
