package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

func chunk(doc string, seq int, vec ...float32) domain.Chunk {
	return domain.Chunk{
		ID:         fmt.Sprintf("%s_chunk_%d", doc, seq),
		Text:       fmt.Sprintf("text %s %d", doc, seq),
		Provenance: domain.Provenance{DocumentID: doc, Sequence: seq},
		Embedding:  vec,
	}
}

func TestStorage_SearchOrdersByCosine(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Insert(ctx, []domain.Chunk{
		chunk("A", 0, 1, 0),
		chunk("A", 1, 0, 1),
		chunk("B", 0, 1, 1),
	}))

	hits, err := s.Search(ctx, []float32{1, 0}, 10, "")
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "A_chunk_0", hits[0].Chunk.ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.Equal(t, "B_chunk_0", hits[1].Chunk.ID)
	assert.Equal(t, "A_chunk_1", hits[2].Chunk.ID)
}

func TestStorage_TopKAlwaysFilled(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Insert(ctx, []domain.Chunk{chunk("A", 0, 0, 1), chunk("A", 1, 0, 1)}))

	hits, err := s.Search(ctx, []float32{1, 0}, 5, "")
	require.NoError(t, err)
	assert.Len(t, hits, 2)
	assert.Equal(t, 0.0, hits[0].Score)
}

func TestStorage_TiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	var chunks []domain.Chunk
	for i := 0; i < 20; i++ {
		chunks = append(chunks, chunk("A", i, 1, 1))
	}
	require.NoError(t, s.Insert(ctx, chunks))

	hits, err := s.Search(ctx, []float32{1, 1}, 20, "")
	require.NoError(t, err)
	for i, h := range hits {
		assert.Equal(t, fmt.Sprintf("A_chunk_%d", i), h.Chunk.ID)
	}
}

func TestStorage_Scope(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Insert(ctx, []domain.Chunk{chunk("A", 0, 1, 0), chunk("B", 0, 1, 0)}))

	hits, err := s.Search(ctx, []float32{1, 0}, 5, "B")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "B", hits[0].Chunk.Provenance.DocumentID)

	hits, err = s.Search(ctx, []float32{1, 0}, 5, "missing")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestStorage_DeleteDocument(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Insert(ctx, []domain.Chunk{chunk("A", 0, 1, 0), chunk("A", 1, 0, 1), chunk("B", 0, 1, 1)}))

	n, err := s.DeleteDocument(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	size, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	hits, err := s.Search(ctx, []float32{1, 0}, 5, "")
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "A", h.Chunk.Provenance.DocumentID)
	}

	n, err = s.DeleteDocument(ctx, "A")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStorage_DimensionFixedByFirstInsert(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Insert(ctx, []domain.Chunk{chunk("A", 0, 1, 0)}))

	err := s.Insert(ctx, []domain.Chunk{chunk("B", 0, 1, 0, 0)})
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))

	_, err = s.Search(ctx, []float32{1, 0, 0}, 1, "")
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))

	count, err := s.CountDocument(ctx, "B")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStorage_InsertRequiresEmbedding(t *testing.T) {
	assert.Error(t, NewStorage().Insert(context.Background(), []domain.Chunk{chunk("A", 0)}))
}

func TestStorage_EmptySearch(t *testing.T) {
	hits, err := NewStorage().Search(context.Background(), []float32{1}, 3, "")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestStorage_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		doc := fmt.Sprintf("D%d", i)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Insert(ctx, []domain.Chunk{chunk(doc, 0, 1, 0), chunk(doc, 1, 0, 1)}))
		}()
		go func() {
			defer wg.Done()
			_, err := s.Search(ctx, []float32{1, 0}, 3, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	size, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 16, size)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{2, 0}, []float32{5, 0}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 0}))
}
