package vectorstore

import (
	"context"

	"docrag/internal/domain"
)

// Storage is a mutable vector store keyed by chunk id.
// Every chunk handed to Insert must carry its embedding.
type Storage interface {
	// Insert adds chunks. The first insert fixes the store's dimension.
	Insert(ctx context.Context, chunks []domain.Chunk) error
	// DeleteDocument removes every chunk owned by documentID and reports how many went.
	DeleteDocument(ctx context.Context, documentID string) (int, error)
	// Search returns up to topK hits by descending cosine similarity.
	// A non-empty scope restricts the search to that document's chunks.
	Search(ctx context.Context, vector []float32, topK int, scope string) ([]domain.Hit, error)
	// CountDocument returns how many chunks documentID currently owns.
	CountDocument(ctx context.Context, documentID string) (int, error)
	// Len returns the total number of chunks held.
	Len(ctx context.Context) (int, error)
}
