package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexBuild signals that the catalog index could not be built.
	ErrIndexBuild = errors.New("index build failed")
	// ErrIndexNotFound signals missing persisted index state. Recoverable by rebuilding.
	ErrIndexNotFound = errors.New("index not found")
	// ErrEmptyIndex signals a query against an index with zero records.
	ErrEmptyIndex = errors.New("index is empty")
	// ErrEmptyCatalog signals a catalog snapshot with no valid products.
	ErrEmptyCatalog = errors.New("catalog is empty")
	// ErrParserUnavailable signals a missing or failed structured request parser.
	ErrParserUnavailable = errors.New("request parser unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrInvalidProduct signals a malformed catalog row.
	ErrInvalidProduct = errors.New("invalid product")
)

// IndexBuildError wraps ErrIndexBuild with the failing stage for diagnostics.
type IndexBuildError struct {
	Stage string
	Err   error
}

func (e *IndexBuildError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrIndexBuild.Error(), e.Stage, e.Err)
}

func (e *IndexBuildError) Unwrap() error { return ErrIndexBuild }

// NewIndexBuildError creates an index build error for the given stage.
func NewIndexBuildError(stage string, err error) error {
	return &IndexBuildError{Stage: stage, Err: err}
}
