// Package index owns the vector representation of the product catalog and
// answers nearest-neighbor queries over it.
package index

import (
	"context"
	"fmt"
	"sort"

	"github.com/stroysnab-cloud/procura/internal/domain"
)

// CatalogIndex is a flat inner-product index over unit-norm product vectors.
// Vectors are L2-normalized at build time, so the inner product equals cosine
// similarity. Immutable after Build/Load; safe for concurrent reads.
type CatalogIndex struct {
	records []domain.ProductRecord
	vectors [][]float32
	dim     int
}

// Build embeds every catalog record and constructs the search structure.
// Records are embedded via their canonical search text ("{category}: {name}"),
// batched when the embedder supports it.
func Build(
	ctx context.Context,
	records []domain.ProductRecord,
	embedder domain.Embedder,
	batchSize int,
) (*CatalogIndex, error) {
	if len(records) == 0 {
		return nil, domain.NewIndexBuildError("catalog", domain.ErrEmptyCatalog)
	}
	if batchSize <= 0 {
		batchSize = 64
	}

	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.SearchText()
	}

	vectors := make([][]float32, 0, len(records))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := embedBatch(ctx, embedder, texts[start:end])
		if err != nil {
			return nil, domain.NewIndexBuildError("embed", err)
		}
		vectors = append(vectors, batch...)
	}

	// Embedder contract: one vector per record. Checked here so a misbehaving
	// provider fails the build instead of corrupting query results.
	if len(vectors) != len(records) {
		return nil, domain.NewIndexBuildError("embed",
			fmt.Errorf("embedder returned %d vectors for %d records", len(vectors), len(records)))
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, domain.NewIndexBuildError("embed",
				fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim))
		}
		domain.Normalize(v)
	}

	return &CatalogIndex{records: records, vectors: vectors, dim: dim}, nil
}

func embedBatch(ctx context.Context, e domain.Embedder, texts []string) ([][]float32, error) {
	if be, ok := e.(domain.BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("batch embed: %w", err)
		}
		return res.Embeddings, nil
	}
	res, err := domain.BatchFallback(ctx, e, texts)
	if err != nil {
		return nil, err
	}
	return res.Embeddings, nil
}

// Len returns the number of indexed records.
func (x *CatalogIndex) Len() int { return len(x.records) }

// Dim returns the embedding dimension.
func (x *CatalogIndex) Dim() int { return x.dim }

// Records returns the indexed records in catalog insertion order.
func (x *CatalogIndex) Records() []domain.ProductRecord { return x.records }

// Query returns the k nearest records by inner product, in descending score
// order. Ties keep catalog insertion order. Deterministic for identical inputs.
func (x *CatalogIndex) Query(vec []float32, k int) ([]domain.SearchHit, error) {
	if x.Len() == 0 {
		return nil, domain.ErrEmptyIndex
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(vec) != x.dim {
		return nil, fmt.Errorf("query vector has dimension %d, want %d", len(vec), x.dim)
	}
	if k > x.Len() {
		k = x.Len()
	}

	order := make([]int, len(x.vectors))
	scores := make([]float64, len(x.vectors))
	for i, v := range x.vectors {
		order[i] = i
		scores[i] = dot(v, vec)
	}

	// Stable sort keeps insertion order on equal scores.
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	hits := make([]domain.SearchHit, k)
	for i := 0; i < k; i++ {
		idx := order[i]
		hits[i] = domain.SearchHit{Product: x.records[idx], Score: scores[idx]}
	}
	return hits, nil
}

// VectorOf returns the stored vector of a product by id.
func (x *CatalogIndex) VectorOf(productID int64) ([]float32, bool) {
	for i, r := range x.records {
		if r.ID == productID {
			return x.vectors[i], true
		}
	}
	return nil, false
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
