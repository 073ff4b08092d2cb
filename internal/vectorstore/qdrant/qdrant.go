package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"docrag/internal/domain"
)

// Storage is a minimal REST client to Qdrant.
// It assumes cosine distance and creates the collection on first insert.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	mu        sync.Mutex
	dimension int
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

var errNotFound = errors.New("qdrant: not found")

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "docrag"
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// PointID maps a chunk id to the stable UUID Qdrant stores it under.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("docrag:"+chunkID)).String()
}

func (s *Storage) ensureCollection(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != 0 {
		if s.dimension != dimension {
			return &domain.DimensionMismatchError{Index: s.dimension, Query: dimension}
		}
		return nil
	}
	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil, &info)
	switch {
	case err == nil:
		size := info.Result.Config.Params.Vectors.Size
		if size != 0 && size != dimension {
			return &domain.DimensionMismatchError{Index: size, Query: dimension}
		}
	case errors.Is(err, errNotFound):
		body := map[string]any{
			"vectors": map[string]any{
				"size":     dimension,
				"distance": "Cosine",
			},
		}
		if err := s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil); err != nil {
			return err
		}
	default:
		return err
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Insert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	dim := len(chunks[0].Embedding)
	if dim == 0 {
		return errors.New("chunk " + chunks[0].ID + " has no embedding")
	}
	points := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		if len(c.Embedding) != dim {
			return &domain.DimensionMismatchError{Index: dim, Query: len(c.Embedding)}
		}
		points[i] = map[string]any{
			"id":     PointID(c.ID),
			"vector": c.Embedding,
			"payload": map[string]any{
				"document_id": c.Provenance.DocumentID,
				"chunk_id":    c.ID,
				"sequence":    c.Provenance.Sequence,
				"paragraph":   c.Provenance.Paragraph,
				"page":        c.Provenance.Page,
				"span_start":  c.Span.Start,
				"span_end":    c.Span.End,
				"text":        c.Text,
			},
		}
	}
	if err := s.ensureCollection(ctx, dim); err != nil {
		return err
	}
	body := map[string]any{"points": points}
	return s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), body, nil)
}

func (s *Storage) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	n, err := s.CountDocument(ctx, documentID)
	if err != nil || n == 0 {
		return 0, err
	}
	body := map[string]any{"filter": documentFilter(documentID)}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/delete?wait=true"), body, nil); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int, scope string) ([]domain.Hit, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if scope != "" {
		req["filter"] = documentFilter(scope)
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload payload `json:"payload"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	hits := make([]domain.Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, domain.Hit{Chunk: r.Payload.chunk(), Score: r.Score})
	}
	return hits, nil
}

func (s *Storage) CountDocument(ctx context.Context, documentID string) (int, error) {
	return s.count(ctx, documentFilter(documentID))
}

func (s *Storage) Len(ctx context.Context) (int, error) {
	return s.count(ctx, nil)
}

func (s *Storage) count(ctx context.Context, filter map[string]any) (int, error) {
	req := map[string]any{"exact": true}
	if filter != nil {
		req["filter"] = filter
	}
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionURL("/points/count"), req, &resp)
	if errors.Is(err, errNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

type payload struct {
	DocumentID string `json:"document_id"`
	ChunkID    string `json:"chunk_id"`
	Sequence   int    `json:"sequence"`
	Paragraph  int    `json:"paragraph"`
	Page       int    `json:"page"`
	SpanStart  int    `json:"span_start"`
	SpanEnd    int    `json:"span_end"`
	Text       string `json:"text"`
}

func (p payload) chunk() domain.Chunk {
	return domain.Chunk{
		ID:   p.ChunkID,
		Text: p.Text,
		Provenance: domain.Provenance{
			DocumentID: p.DocumentID,
			Page:       p.Page,
			Paragraph:  p.Paragraph,
			Sequence:   p.Sequence,
		},
		Span: domain.Span{Start: p.SpanStart, End: p.SpanEnd},
	}
}

func documentFilter(documentID string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{"key": "document_id", "match": map[string]any{"value": documentID}},
		},
	}
}

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

func (s *Storage) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, url, errors.Join(domain.ErrBackendUnavailable, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
