package quote

import (
	"context"

	"github.com/stroysnab-cloud/procura/internal/domain"
)

// Decomposer turns a free-text request into an ordered item list.
type Decomposer interface {
	Decompose(ctx context.Context, text string) []domain.ItemRequest
}

// Searcher answers per-item similarity queries against the catalog.
type Searcher interface {
	Search(ctx context.Context, queryText string, topK int, scoreThreshold float64) ([]domain.SearchHit, error)
}
