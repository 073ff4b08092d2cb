package embedding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"docrag/internal/metrics"
)

// Fallback serves embeddings from a remote primary and degrades to a local
// secondary of the same dimension when the primary fails or its circuit is open.
type Fallback struct {
	primary   Embedder
	secondary Embedder
	breaker   *gobreaker.CircuitBreaker
	log       *slog.Logger
	metrics   *metrics.Metrics
}

// NewFallback wires primary and secondary. It fails when their dimensions differ,
// since one index must never mix vector sizes.
func NewFallback(primary, secondary Embedder, log *slog.Logger, m *metrics.Metrics) (*Fallback, error) {
	if primary.Dimension() != secondary.Dimension() {
		return nil, fmt.Errorf("fallback dimension %d does not match primary %d", secondary.Dimension(), primary.Dimension())
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "embedding-" + primary.Name(),
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("embedding circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Fallback{primary: primary, secondary: secondary, breaker: breaker, log: log, metrics: m}, nil
}

func (f *Fallback) Name() string { return f.primary.Name() }

func (f *Fallback) Dimension() int { return f.primary.Dimension() }

func (f *Fallback) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := f.breaker.Execute(func() (interface{}, error) {
		return f.primary.Embed(ctx, text)
	})
	if err == nil {
		return v.([]float32), nil
	}
	f.degrade(err)
	return f.secondary.Embed(ctx, text)
}

func (f *Fallback) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	v, err := f.breaker.Execute(func() (interface{}, error) {
		return f.primary.EmbedBatch(ctx, texts)
	})
	if err == nil {
		return v.([][]float32), nil
	}
	f.degrade(err)
	return f.secondary.EmbedBatch(ctx, texts)
}

func (f *Fallback) degrade(err error) {
	f.log.Warn("remote embedding failed, using local encoder", "backend", f.primary.Name(), "error", err)
	f.metrics.EmbedFallback()
}

// Close releases whichever of primary and secondary hold resources.
func (f *Fallback) Close() error {
	return errors.Join(closeBackend(f.primary), closeBackend(f.secondary))
}

func closeBackend(e Embedder) error {
	if c, ok := e.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
