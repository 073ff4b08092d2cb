// Package hashing provides the local embedding encoder: a deterministic
// signed feature-hashing model over word unigrams and bigrams. It needs no
// corpus preparation, so its output dimension is fixed at construction.
package hashing

import (
	"context"
	"math"

	"github.com/cespare/xxhash/v2"

	"docrag/internal/textutil"
)

// DefaultDimension matches the common small sentence-encoder size.
const DefaultDimension = 384

const bigramWeight = 0.5

// Encoder maps text to an L2-normalised hashed bag-of-words vector.
type Encoder struct {
	dimension int
}

// NewEncoder creates an encoder with the given output dimension.
func NewEncoder(dimension int) *Encoder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Encoder{dimension: dimension}
}

// Name returns the identifier of this embedder implementation.
func (e *Encoder) Name() string { return "local" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Encoder) Dimension() int { return e.dimension }

// Embed computes the embedding for text. Text without tokens maps to the zero vector.
func (e *Encoder) Embed(_ context.Context, text string) ([]float32, error) {
	return e.encode(text), nil
}

// EmbedBatch embeds every text in order.
func (e *Encoder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.encode(t)
	}
	return out, nil
}

func (e *Encoder) encode(text string) []float32 {
	acc := make([]float64, e.dimension)
	tokens := textutil.ContentTokens(text)
	if len(tokens) == 0 {
		tokens = textutil.Tokens(text)
	}
	for i, tok := range tokens {
		e.add(acc, tok, 1)
		if i > 0 {
			e.add(acc, tokens[i-1]+" "+tok, bigramWeight)
		}
	}
	norm := 0.0
	for _, v := range acc {
		norm += v * v
	}
	vec := make([]float32, e.dimension)
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

func (e *Encoder) add(acc []float64, feature string, weight float64) {
	h := xxhash.Sum64String(feature)
	idx := int(h % uint64(e.dimension))
	if h>>63 == 1 {
		weight = -weight
	}
	acc[idx] += weight
}
