package search

import (
	"github.com/stroysnab-cloud/procura/internal/domain"
)

// Index is the nearest-neighbor structure contract served by the catalog index.
type Index interface {
	// Query returns the k nearest records by inner product, descending score.
	Query(vec []float32, k int) ([]domain.SearchHit, error)
	// Len returns the number of indexed records.
	Len() int
	// VectorOf returns the stored vector of a product by id.
	VectorOf(productID int64) ([]float32, bool)
}
