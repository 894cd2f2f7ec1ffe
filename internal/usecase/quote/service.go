// Package quote runs the full request pipeline: decompose the query, search
// the catalog per item, pick matches and roll the cost up.
package quote

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/stroysnab-cloud/procura/internal/domain"
	"github.com/stroysnab-cloud/procura/internal/metrics"
)

// maxAlternatives caps the alternatives attached to one quote line.
const maxAlternatives = 2

// Service is the quote aggregator.
type Service struct {
	decomposer     Decomposer
	searcher       Searcher
	scoreThreshold float64
	logger         *zap.Logger
}

// New creates a quote service. scoreThreshold applies to every per-item search.
func New(decomposer Decomposer, searcher Searcher, scoreThreshold float64, logger *zap.Logger) *Service {
	return &Service{
		decomposer:     decomposer,
		searcher:       searcher,
		scoreThreshold: scoreThreshold,
		logger:         logger,
	}
}

// ProcessRequest handles one free-text procurement request end to end. Lines
// keep the decomposition order. A line without a match is reported, not
// failed; only an unusable index aborts the whole request.
func (s *Service) ProcessRequest(ctx context.Context, query string) (domain.QuoteResult, error) {
	items := s.decomposer.Decompose(ctx, query)

	result := domain.QuoteResult{
		Query:      query,
		Lines:      make([]domain.LineResult, 0, len(items)),
		TotalItems: len(items),
	}

	for _, item := range items {
		line, err := s.processItem(ctx, item)
		if err != nil {
			metrics.QuoteRequestsTotal.WithLabelValues("error").Inc()
			return domain.QuoteResult{}, fmt.Errorf("process item %q: %w", item.Text, err)
		}

		if line.Found() {
			result.FoundItems++
			result.TotalCost += line.TotalPrice
			metrics.QuoteLinesTotal.WithLabelValues("found").Inc()
		} else {
			metrics.QuoteLinesTotal.WithLabelValues("not_found").Inc()
		}
		result.Lines = append(result.Lines, line)
	}

	result.Products = dedupProducts(result.Lines)

	metrics.QuoteRequestsTotal.WithLabelValues("ok").Inc()
	return result, nil
}

// processItem searches the catalog for one item and builds its line. Search
// failures other than an unusable index degrade to a not-found line.
func (s *Service) processItem(ctx context.Context, item domain.ItemRequest) (domain.LineResult, error) {
	line := domain.LineResult{
		RequestedText: item.Text,
		Quantity:      item.Quantity,
		Specification: item.Specification,
	}

	hits, err := s.searcher.Search(ctx, item.Text, item.CandidateCount, s.scoreThreshold)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyIndex) {
			return domain.LineResult{}, err
		}
		s.logger.Warn("Item search failed, reporting line as not found",
			zap.String("item", item.Text), zap.Error(err))
		return line, nil
	}
	if len(hits) == 0 {
		return line, nil
	}

	best := hits[0]
	line.Product = &best.Product
	line.Score = best.Score
	line.UnitPrice = best.Product.UnitCost
	line.TotalPrice = best.Product.UnitCost * float64(item.Quantity)
	line.Alternatives = alternativesOf(hits)

	return line, nil
}

// alternativesOf returns the runner-up hits, at most maxAlternatives.
func alternativesOf(hits []domain.SearchHit) []domain.SearchHit {
	if len(hits) < 2 {
		return nil
	}
	end := len(hits)
	if end > 1+maxAlternatives {
		end = 1 + maxAlternatives
	}
	return hits[1:end]
}

// dedupProducts flattens the selected products, first occurrence per id wins.
func dedupProducts(lines []domain.LineResult) []domain.ProductRecord {
	seen := make(map[int64]struct{}, len(lines))
	products := make([]domain.ProductRecord, 0, len(lines))
	for _, l := range lines {
		if l.Product == nil {
			continue
		}
		if _, ok := seen[l.Product.ID]; ok {
			continue
		}
		seen[l.Product.ID] = struct{}{}
		products = append(products, *l.Product)
	}
	return products
}
