package procura

import "github.com/stroysnab-cloud/procura/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrIndexNotFound          = domain.ErrIndexNotFound
	ErrEmptyIndex             = domain.ErrEmptyIndex
	ErrEmptyCatalog           = domain.ErrEmptyCatalog
	ErrParserUnavailable      = domain.ErrParserUnavailable
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrInvalidProduct         = domain.ErrInvalidProduct
)
