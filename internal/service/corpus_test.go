package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/answer"
	"docrag/internal/corpus"
	"docrag/internal/domain"
	"docrag/internal/embedding/hashing"
	"docrag/internal/ranking"
)

func newCorpus(t *testing.T, indexDir string, dim int) *Corpus {
	t.Helper()
	emb := hashing.NewEncoder(dim)
	idx := corpus.New(emb, nil, corpus.Options{IndexDir: indexDir, ChunkSize: 200, Overlap: 20, MinLength: 20, BatchSize: 4, Workers: 2}, nil, nil)
	synth := answer.NewSynthesizer(nil, answer.Options{}, nil, nil)
	return NewCorpus(idx, emb, ranking.DefaultScorer(), synth, CorpusOptions{}, nil, nil)
}

func writeDocs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "aml_policy.txt"),
		[]byte("Money laundering is the process of disguising the origin of illegal funds. Banks must report suspicious transfers to the authorities."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "travel.md"),
		[]byte("Employees book travel through the approved agency and keep every receipt for expense claims."), 0o644))
	return dir
}

func TestExpandQuery(t *testing.T) {
	assert.Equal(t, "What is AML?"+definitionExpansion, ExpandQuery("What is AML?"))
	assert.Equal(t, "Çfarë është AML?"+definitionExpansion, ExpandQuery("Çfarë është AML?"))
	assert.Equal(t, "How are receipts kept?", ExpandQuery("How are receipts kept?"))
}

func TestCorpus_BuildThenQuery(t *testing.T) {
	ctx := context.Background()
	c := newCorpus(t, t.TempDir(), 128)

	res, err := c.Build(ctx, writeDocs(t))
	require.NoError(t, err)
	assert.Equal(t, 2, res.NumDocuments)

	resp, err := c.Query(ctx, "What is money laundering?", 0, "")
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "aml_policy.txt", resp.Results[0].Source)
	assert.LessOrEqual(t, len(resp.Results), 8)
	assert.NotEmpty(t, resp.Answer)
	assert.NotEqual(t, answer.NoInformation, resp.Answer)

	scoped, err := c.Query(ctx, "What is money laundering?", 0, "travel.md")
	require.NoError(t, err)
	for _, r := range scoped.Results {
		assert.Equal(t, "travel.md", r.Source)
	}
}

func TestCorpus_NotIndexed(t *testing.T) {
	c := newCorpus(t, t.TempDir(), 64)
	_, err := c.Query(context.Background(), "anything", 0, "")
	assert.True(t, errors.Is(err, domain.ErrNotIndexed))
	assert.False(t, c.Status(context.Background()).Indexed)
}

func TestCorpus_LoadsPersistedIndexLazily(t *testing.T) {
	ctx := context.Background()
	indexDir := t.TempDir()
	_, err := newCorpus(t, indexDir, 64).Build(ctx, writeDocs(t))
	require.NoError(t, err)

	fresh := newCorpus(t, indexDir, 64)
	st := fresh.Status(ctx)
	assert.True(t, st.Indexed)
	assert.Equal(t, 2, st.NumDocuments)

	resp, err := fresh.Query(ctx, "Where do employees book travel?", 0, "")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Results)
}

func TestCorpus_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	indexDir := t.TempDir()
	_, err := newCorpus(t, indexDir, 64).Build(ctx, writeDocs(t))
	require.NoError(t, err)

	_, err = newCorpus(t, indexDir, 32).Query(ctx, "What is money laundering?", 0, "")
	var dm *domain.DimensionMismatchError
	require.True(t, errors.As(err, &dm))
	assert.Equal(t, 64, dm.Index)
	assert.Equal(t, 32, dm.Query)
}
