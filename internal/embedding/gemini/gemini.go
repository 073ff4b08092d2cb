// Package gemini provides a remote embedding backend on Google Generative AI.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Default configuration values.
const (
	DefaultModel     = "text-embedding-004"
	DefaultDimension = 768
)

// Config configures the Gemini embeddings client.
type Config struct {
	APIKeyEnv string
	Model     string
	Dimension int
}

// Client embeds text with a Gemini embedding model.
type Client struct {
	client    *genai.Client
	model     *genai.EmbeddingModel
	dimension int
}

// NewClient creates a client; the API key is read from cfg.APIKeyEnv.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = DefaultDimension
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, err
	}
	return &Client{client: client, model: client.EmbeddingModel(cfg.Model), dimension: cfg.Dimension}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "gemini" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if resp.Embedding == nil {
		return nil, errors.New("no embedding returned")
	}
	return c.check(resp.Embedding.Values)
}

// EmbedBatch embeds all texts with one batch request.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	batch := c.model.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}
	resp, err := c.model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if e == nil {
			return nil, errors.New("no embedding returned")
		}
		v, err := c.check(e.Values)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Close releases the underlying client.
func (c *Client) Close() error { return c.client.Close() }

func (c *Client) check(v []float32) ([]float32, error) {
	if len(v) != c.dimension {
		return nil, fmt.Errorf("gemini returned dimension %d, expected %d", len(v), c.dimension)
	}
	return v, nil
}
