// Package search is the public similarity search API over the catalog index.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stroysnab-cloud/procura/internal/domain"
	"github.com/stroysnab-cloud/procura/internal/metrics"
)

// Service answers top-K nearest-neighbor queries. It hides the
// embedding/index coupling from callers.
type Service struct {
	index Index
	embed domain.Embedder
}

// New creates a search service.
func New(index Index, embed domain.Embedder) *Service {
	return &Service{index: index, embed: embed}
}

// Search embeds queryText, queries the index for topK neighbors and filters
// hits below scoreThreshold. "No results" is an empty slice, never an error;
// errors mean the index or the embedding provider is unusable.
func (s *Service) Search(
	ctx context.Context, queryText string, topK int, scoreThreshold float64,
) ([]domain.SearchHit, error) {
	if topK < 1 {
		return nil, fmt.Errorf("topK must be >= 1, got %d", topK)
	}

	start := time.Now()

	emb, err := s.embed.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	hits, err := s.index.Query(domain.Normalize(emb.Embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	metrics.SearchRequestDuration.Observe(time.Since(start).Seconds())

	filtered := hits[:0]
	for _, h := range hits {
		if h.Score >= scoreThreshold {
			filtered = append(filtered, h)
		}
	}
	return filtered, nil
}

// SearchByCategory fetches topK*3 raw hits and keeps the ones whose category
// contains category (case-insensitive), truncated to topK. Known limitation:
// when fewer than topK hits survive the filter, fewer are returned — there is
// no backfill.
func (s *Service) SearchByCategory(
	ctx context.Context, queryText, category string, topK int,
) ([]domain.SearchHit, error) {
	hits, err := s.Search(ctx, queryText, topK*3, 0)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(category)
	filtered := hits[:0]
	for _, h := range hits {
		if strings.Contains(strings.ToLower(h.Product.Category), needle) {
			filtered = append(filtered, h)
		}
	}
	if len(filtered) > topK {
		filtered = filtered[:topK]
	}
	return filtered, nil
}

// GetSimilar finds products similar to a known catalog product by its stored
// vector, excluding the product itself. An unknown id yields no hits.
func (s *Service) GetSimilar(
	_ context.Context, productID int64, topK int,
) ([]domain.SearchHit, error) {
	if topK < 1 {
		return nil, fmt.Errorf("topK must be >= 1, got %d", topK)
	}

	vec, ok := s.index.VectorOf(productID)
	if !ok {
		return nil, nil
	}

	// +1 because the product itself is its own nearest neighbor.
	hits, err := s.index.Query(vec, topK+1)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	similar := make([]domain.SearchHit, 0, topK)
	for _, h := range hits {
		if h.Product.ID == productID {
			continue
		}
		similar = append(similar, h)
		if len(similar) == topK {
			break
		}
	}
	return similar, nil
}
