// Package ranking turns raw similarities and distances into bounded, boosted
// relevance scores.
package ranking

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"docrag/internal/config"
	"docrag/internal/domain"
	"docrag/internal/textutil"
)

// Metric says how a hit's raw score should be read.
type Metric int

const (
	// Cosine scores are similarities; higher is better.
	Cosine Metric = iota
	// L2 scores are squared distances; lower is better.
	L2
)

func (m Metric) String() string {
	if m == L2 {
		return "l2"
	}
	return "cosine"
}

// Scorer holds the ranking constants.
type Scorer struct {
	L2Scale         float64
	KeywordBoost    float64
	KeywordCap      int
	DefinitionBoost float64
}

func DefaultScorer() Scorer {
	return Scorer{L2Scale: 10, KeywordBoost: 0.1, KeywordCap: 3, DefinitionBoost: 0.2}
}

func NewScorer(cfg config.RankingConfig) Scorer {
	s := DefaultScorer()
	if cfg.L2Scale > 0 {
		s.L2Scale = cfg.L2Scale
	}
	if cfg.KeywordBoost > 0 {
		s.KeywordBoost = cfg.KeywordBoost
	}
	if cfg.KeywordCap > 0 {
		s.KeywordCap = cfg.KeywordCap
	}
	if cfg.DefinitionBoost > 0 {
		s.DefinitionBoost = cfg.DefinitionBoost
	}
	return s
}

// Base maps a raw hit score onto a relevance base.
func (s Scorer) Base(raw float64, m Metric) float64 {
	if m == L2 {
		return math.Max(0, 1-raw/s.L2Scale)
	}
	return raw
}

// Score applies the keyword and definition boosts, then clamps to [0,1]
// and rounds to three decimals.
func (s Scorer) Score(terms []string, text string, raw float64, m Metric) float64 {
	score := s.Base(raw, m)
	if n := textutil.CountMatches(terms, text); n > 0 {
		score += s.KeywordBoost * float64(min(n, s.KeywordCap))
	}
	if textutil.HasDefinition(text) {
		score += s.DefinitionBoost
	}
	score = math.Min(1, math.Max(0, score))
	return math.Round(score*1000) / 1000
}

// Rank scores hits against query, sorts by descending score keeping
// retrieval order among ties, and keeps at most limit results.
func (s Scorer) Rank(query string, hits []domain.Hit, m Metric, limit int) []domain.Result {
	terms := textutil.QueryTerms(query)
	results := make([]domain.Result, len(hits))
	for i, h := range hits {
		results[i] = domain.Result{
			Chunk:      h.Chunk,
			Score:      s.Score(terms, h.Chunk.Text, h.Score, m),
			Similarity: h.Score,
			Page:       h.Chunk.Provenance.Page,
			Paragraph:  h.Chunk.Provenance.Paragraph,
		}
		if m == L2 {
			results[i].Source = h.Chunk.Provenance.DocumentID
		} else {
			results[i].Source = Label(h.Chunk.Provenance.DocumentID, h.Chunk.Provenance.Paragraph)
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Label is the human-readable source of a session chunk, e.g. "Q3 report (Paragraph 2)".
func Label(documentID string, paragraph int) string {
	name := DisplayName(documentID)
	if paragraph > 0 {
		return fmt.Sprintf("%s (Paragraph %d)", name, paragraph)
	}
	return name
}

// DisplayName strips directories and a document extension and turns
// underscores into spaces.
func DisplayName(source string) string {
	name := filepath.Base(source)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf", ".txt", ".md":
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	name = strings.ReplaceAll(name, "_", " ")
	if name == "" || name == "." {
		return source
	}
	return name
}
