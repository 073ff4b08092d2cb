package domain

// Document represents a single text document handed to a pipeline.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Provenance records where a chunk came from.
// Page and Paragraph are 1-based; zero means unknown.
type Provenance struct {
	DocumentID string
	Page       int
	Paragraph  int
	Sequence   int
}

// Span is a best-effort character range into the originating paragraph or page.
// It is advisory only once overlap text has been injected.
type Span struct {
	Start int
	End   int
}

// Chunk is a semantically meaningful part of a document used for indexing.
type Chunk struct {
	ID         string
	Text       string
	Snippet    string
	Provenance Provenance
	Span       Span
	Embedding  []float32
}

// Hit is a raw match returned by a vector store before ranking.
// Score holds a cosine similarity or a squared L2 distance depending on the store.
type Hit struct {
	Chunk Chunk
	Score float64
}

// Result is a ranked chunk with a bounded relevance score in [0,1].
type Result struct {
	Chunk      Chunk
	Score      float64
	Similarity float64
	Source     string
	Page       int
	Paragraph  int
}

// Status describes the indexed state of a pipeline.
type Status struct {
	Indexed      bool `json:"indexed"`
	NumDocuments int  `json:"num_documents"`
	NumChunks    int  `json:"num_chunks"`
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}
