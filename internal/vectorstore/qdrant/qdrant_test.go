package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

// fakeQdrant serves the handful of endpoints Storage uses.
type fakeQdrant struct {
	mu      sync.Mutex
	size    int
	points  map[string]map[string]any
	lastReq map[string]any
	apiKey  string
}

func newFake() *fakeQdrant { return &fakeQdrant{points: map[string]map[string]any{}} }

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKey = r.Header.Get("api-key")
	var body map[string]any
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	f.lastReq = body
	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && path == "/collections/test":
		if f.size == 0 {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, map[string]any{"result": map[string]any{"config": map[string]any{"params": map[string]any{"vectors": map[string]any{"size": f.size}}}}})
	case r.Method == http.MethodPut && path == "/collections/test":
		f.size = int(body["vectors"].(map[string]any)["size"].(float64))
		writeJSON(w, map[string]any{"result": true})
	case r.Method == http.MethodPut && path == "/collections/test/points":
		for _, p := range body["points"].([]any) {
			pt := p.(map[string]any)
			f.points[pt["id"].(string)] = pt
		}
		writeJSON(w, map[string]any{"result": map[string]any{"status": "completed"}})
	case f.size == 0:
		http.NotFound(w, r)
	case r.Method == http.MethodPost && path == "/collections/test/points/count":
		writeJSON(w, map[string]any{"result": map[string]any{"count": len(f.match(body))}})
	case r.Method == http.MethodPost && path == "/collections/test/points/delete":
		for _, id := range f.match(body) {
			delete(f.points, id)
		}
		writeJSON(w, map[string]any{"result": map[string]any{"status": "completed"}})
	case r.Method == http.MethodPost && path == "/collections/test/points/search":
		var result []map[string]any
		for _, id := range f.match(body) {
			result = append(result, map[string]any{"id": id, "score": 0.5, "payload": f.points[id]["payload"]})
		}
		writeJSON(w, map[string]any{"result": result})
	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusBadRequest)
	}
}

func (f *fakeQdrant) match(body map[string]any) []string {
	want := ""
	if filter, ok := body["filter"].(map[string]any); ok {
		must := filter["must"].([]any)[0].(map[string]any)
		want = must["match"].(map[string]any)["value"].(string)
	}
	var ids []string
	for id, p := range f.points {
		doc := p["payload"].(map[string]any)["document_id"].(string)
		if want == "" || doc == want {
			ids = append(ids, id)
		}
	}
	return ids
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func testChunk(doc, id string, paragraph int) domain.Chunk {
	return domain.Chunk{
		ID:         id,
		Text:       "text of " + id,
		Provenance: domain.Provenance{DocumentID: doc, Paragraph: paragraph},
		Embedding:  []float32{1, 0, 0},
	}
}

func TestStorage_RoundTrip(t *testing.T) {
	fake := newFake()
	srv := httptest.NewServer(fake)
	defer srv.Close()
	ctx := context.Background()
	s := NewStorage(Config{URL: srv.URL, APIKey: "secret", Collection: "test"})

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.Insert(ctx, []domain.Chunk{
		testChunk("A", "A_chunk_0", 1),
		testChunk("A", "A_chunk_1", 2),
		testChunk("B", "B_chunk_0", 1),
	}))
	assert.Equal(t, 3, fake.size)
	assert.Equal(t, "secret", fake.apiKey)

	n, err = s.CountDocument(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hits, err := s.Search(ctx, []float32{1, 0, 0}, 5, "B")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "B_chunk_0", hits[0].Chunk.ID)
	assert.Equal(t, "B", hits[0].Chunk.Provenance.DocumentID)
	assert.Equal(t, 1, hits[0].Chunk.Provenance.Paragraph)
	assert.Equal(t, "text of B_chunk_0", hits[0].Chunk.Text)

	removed, err := s.DeleteDocument(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	n, err = s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStorage_SearchMissingCollection(t *testing.T) {
	srv := httptest.NewServer(newFake())
	defer srv.Close()
	s := NewStorage(Config{URL: srv.URL, Collection: "test"})

	hits, err := s.Search(context.Background(), []float32{1}, 3, "")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestStorage_ExistingCollectionDimensionMismatch(t *testing.T) {
	fake := newFake()
	fake.size = 8
	srv := httptest.NewServer(fake)
	defer srv.Close()
	s := NewStorage(Config{URL: srv.URL, Collection: "test"})

	err := s.Insert(context.Background(), []domain.Chunk{testChunk("A", "A_chunk_0", 1)})
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))
}

func TestStorage_Unreachable(t *testing.T) {
	srv := httptest.NewServer(newFake())
	url := srv.URL
	srv.Close()
	s := NewStorage(Config{URL: url, Collection: "test"})

	_, err := s.Len(context.Background())
	assert.True(t, errors.Is(err, domain.ErrBackendUnavailable))
}

func TestPointIDStable(t *testing.T) {
	assert.Equal(t, PointID("A_chunk_0"), PointID("A_chunk_0"))
	assert.NotEqual(t, PointID("A_chunk_0"), PointID("A_chunk_1"))
}
