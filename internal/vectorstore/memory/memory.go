package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"docrag/internal/domain"
)

type entry struct {
	chunk domain.Chunk
	seq   uint64
}

// Storage is an in-memory vector store using brute-force cosine similarity.
// Writers take the lock exclusively so readers never see a half-inserted batch.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	entries   map[string]*entry
	byDoc     map[string][]string
	seq       uint64
}

func NewStorage() *Storage {
	return &Storage{
		entries: make(map[string]*entry),
		byDoc:   make(map[string][]string),
	}
}

func (s *Storage) Insert(_ context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dim := s.dimension
	for _, c := range chunks {
		if c.ID == "" {
			return errors.New("chunk without id")
		}
		if len(c.Embedding) == 0 {
			return errors.New("chunk " + c.ID + " has no embedding")
		}
		if dim == 0 {
			dim = len(c.Embedding)
		}
		if len(c.Embedding) != dim {
			return &domain.DimensionMismatchError{Index: dim, Query: len(c.Embedding)}
		}
	}
	s.dimension = dim
	for _, c := range chunks {
		doc := c.Provenance.DocumentID
		if old, ok := s.entries[c.ID]; ok {
			s.unlink(old.chunk.Provenance.DocumentID, c.ID)
		}
		s.seq++
		s.entries[c.ID] = &entry{chunk: c, seq: s.seq}
		s.byDoc[doc] = append(s.byDoc[doc], c.ID)
	}
	return nil
}

func (s *Storage) DeleteDocument(_ context.Context, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.byDoc[documentID]
	for _, id := range ids {
		delete(s.entries, id)
	}
	delete(s.byDoc, documentID)
	if len(s.entries) == 0 {
		s.dimension = 0
	}
	return len(ids), nil
}

func (s *Storage) Search(_ context.Context, vector []float32, topK int, scope string) ([]domain.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return nil, nil
	}
	if len(vector) != s.dimension {
		return nil, &domain.DimensionMismatchError{Index: s.dimension, Query: len(vector)}
	}
	if topK <= 0 {
		topK = 5
	}
	type scored struct {
		e     *entry
		score float64
	}
	var candidates []scored
	if scope != "" {
		for _, id := range s.byDoc[scope] {
			e := s.entries[id]
			candidates = append(candidates, scored{e, Cosine(vector, e.chunk.Embedding)})
		}
	} else {
		candidates = make([]scored, 0, len(s.entries))
		for _, e := range s.entries {
			candidates = append(candidates, scored{e, Cosine(vector, e.chunk.Embedding)})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].e.seq < candidates[j].e.seq
	})
	if topK > len(candidates) {
		topK = len(candidates)
	}
	hits := make([]domain.Hit, topK)
	for i := 0; i < topK; i++ {
		hits[i] = domain.Hit{Chunk: candidates[i].e.chunk, Score: candidates[i].score}
	}
	return hits, nil
}

func (s *Storage) CountDocument(_ context.Context, documentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byDoc[documentID]), nil
}

func (s *Storage) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *Storage) unlink(documentID, id string) {
	ids := s.byDoc[documentID]
	for i, v := range ids {
		if v == id {
			s.byDoc[documentID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(s.byDoc[documentID]) == 0 {
		delete(s.byDoc, documentID)
	}
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a zero vector.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
