package embedding

import "context"

// Embedder converts free text into a fixed-dimension numeric vector.
// EmbedBatch must return the same vectors as calling Embed per item.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
