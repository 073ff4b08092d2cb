package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotIndexed means no store or index has been built yet.
	ErrNotIndexed = errors.New("not indexed")
	// ErrDimensionMismatch means the embedding backend changed since the index was built.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrCorruptArtifact means a durable index artifact could not be read.
	ErrCorruptArtifact = errors.New("corrupt index artifact")
	// ErrBackendUnavailable means a remote embedding or generative service failed.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrEmptyInput means there was no usable text or no chunks.
	ErrEmptyInput = errors.New("empty input")
)

// DimensionMismatchError reports the dimensions that disagreed.
type DimensionMismatchError struct {
	Index int
	Query int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: index=%d query=%d, rebuild required", e.Index, e.Query)
}

func (e *DimensionMismatchError) Is(target error) bool { return target == ErrDimensionMismatch }

// BuildError is returned when a corpus build cannot produce an index.
type BuildError struct {
	Reason string
	Err    error
}

func (e *BuildError) Error() string { return "index build failed: " + e.Reason }

func (e *BuildError) Unwrap() error { return e.Err }
