package service

import (
	"context"
	"errors"

	"docrag/internal/domain"
)

// Response is what a query hands back to the caller.
type Response struct {
	Answer  string
	Results []domain.Result
	// LowConfidence is set when the best raw similarity is under the
	// configured minimum. Results are returned regardless.
	LowConfidence bool
}

// Retriever is the query surface shared by the session and corpus pipelines.
type Retriever interface {
	Query(ctx context.Context, text string, topK int, scope string) (Response, error)
	Status(ctx context.Context) domain.Status
}

// Message turns a pipeline error into text fit to show a user.
func Message(err error) string {
	var be *domain.BuildError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &be):
		return "Index build failed: " + be.Reason + "."
	case errors.Is(err, domain.ErrNotIndexed):
		return "No documents are indexed yet. Load documents or build the index first."
	case errors.Is(err, domain.ErrDimensionMismatch):
		return "The embedding backend changed since the index was built. Please rebuild the index."
	case errors.Is(err, domain.ErrCorruptArtifact):
		return "The saved index was unreadable and has been removed. Please rebuild the index."
	case errors.Is(err, domain.ErrBackendUnavailable):
		return "A remote service is unavailable. Please try again later."
	case errors.Is(err, domain.ErrEmptyInput):
		return "No usable text was found."
	default:
		return "Error processing your question: " + err.Error()
	}
}

var (
	_ Retriever = (*Session)(nil)
	_ Retriever = (*Corpus)(nil)
)
