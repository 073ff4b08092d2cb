package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/config"
	"docrag/internal/domain"
)

func hit(id, doc, text string, score float64) domain.Hit {
	return domain.Hit{
		Chunk: domain.Chunk{ID: id, Text: text, Provenance: domain.Provenance{DocumentID: doc, Paragraph: 1, Page: 3}},
		Score: score,
	}
}

func TestScorer_Base(t *testing.T) {
	s := DefaultScorer()
	assert.Equal(t, 0.42, s.Base(0.42, Cosine))
	assert.InDelta(t, 0.75, s.Base(2.5, L2), 1e-9)
	assert.Equal(t, 0.0, s.Base(25, L2))
}

func TestScorer_KeywordBoostCapped(t *testing.T) {
	s := DefaultScorer()
	terms := []string{"revenue", "costs", "margin", "growth"}
	got := s.Score(terms, "revenue costs margin growth", 0.1, Cosine)
	assert.Equal(t, 0.4, got)
}

func TestScorer_DefinitionBoost(t *testing.T) {
	s := DefaultScorer()
	assert.Equal(t, 0.3, s.Score(nil, "KYC means know your customer", 0.1, Cosine))
	assert.Equal(t, 0.1, s.Score(nil, "this thesis discusses risk", 0.1, Cosine))
}

func TestScorer_ClampAndRound(t *testing.T) {
	s := DefaultScorer()
	assert.Equal(t, 1.0, s.Score([]string{"revenue"}, "revenue is up", 0.95, Cosine))
	assert.Equal(t, 0.0, s.Score(nil, "nothing", -0.4, Cosine))
	assert.Equal(t, 0.123, s.Score(nil, "nothing", 0.12345, Cosine))
}

func TestRank_StableAndTruncated(t *testing.T) {
	s := DefaultScorer()
	hits := []domain.Hit{
		hit("a", "doc", "alpha", 0.5),
		hit("b", "doc", "beta", 0.7),
		hit("c", "doc", "gamma", 0.5),
		hit("d", "doc", "delta", 0.1),
	}
	got := s.Rank("unrelated", hits, Cosine, 3)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{got[0].Chunk.ID, got[1].Chunk.ID, got[2].Chunk.ID})
	assert.Equal(t, 0.5, got[1].Similarity)
	assert.Equal(t, "doc (Paragraph 1)", got[0].Source)
}

func TestRank_L2KeepsRawSource(t *testing.T) {
	s := DefaultScorer()
	got := s.Rank("customer", []domain.Hit{hit("x", "aml_policy.pdf", "customer due diligence", 5)}, L2, 8)
	require.Len(t, got, 1)
	assert.Equal(t, 0.6, got[0].Score)
	assert.Equal(t, "aml_policy.pdf", got[0].Source)
	assert.Equal(t, 3, got[0].Page)
}

func TestRank_KeywordLiftsLowerSimilarity(t *testing.T) {
	s := DefaultScorer()
	hits := []domain.Hit{
		hit("a", "doc", "costs fell sharply", 0.3),
		hit("b", "doc", "revenue grew twelve percent", 0.25),
	}
	got := s.Rank("revenue", hits, Cosine, 0)
	assert.Equal(t, "b", got[0].Chunk.ID)
}

func TestNewScorer_FromConfig(t *testing.T) {
	s := NewScorer(config.RankingConfig{L2Scale: 4})
	assert.Equal(t, 4.0, s.L2Scale)
	assert.Equal(t, 0.1, s.KeywordBoost)
	assert.Equal(t, 3, s.KeywordCap)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "bank policy (Paragraph 4)", Label("docs/bank_policy.pdf", 4))
	assert.Equal(t, "notes", Label("notes.txt", 0))
	assert.Equal(t, "A", Label("A", 0))
}
