// Package decompose turns one free-text procurement request into an ordered
// list of item requests.
package decompose

import (
	"context"

	"go.uber.org/zap"

	"github.com/stroysnab-cloud/procura/internal/domain"
	"github.com/stroysnab-cloud/procura/internal/metrics"
)

// Strategy names the decomposition layer that produced the items.
type Strategy string

const (
	// StrategyParser means the structured NL parser output was used.
	StrategyParser Strategy = "parser"
	// StrategyRules means the rule-based heuristics were used.
	StrategyRules Strategy = "rules"
	// StrategyIdentity means the request passed through as a single item.
	StrategyIdentity Strategy = "identity"
)

// Service layers three decomposition strategies: structured parser,
// rule-based heuristics, identity fallback. First success wins.
type Service struct {
	parser RequestParser // nil = parser unavailable
	logger *zap.Logger
}

// New creates a decomposer. parser may be nil.
func New(parser RequestParser, logger *zap.Logger) *Service {
	return &Service{parser: parser, logger: logger}
}

// Decompose converts a request into an ordered item list. Never fails and
// never returns an empty list: the worst case is the identity item.
func (s *Service) Decompose(ctx context.Context, text string) []domain.ItemRequest {
	if items, ok := s.tryParser(ctx, text); ok {
		metrics.QuoteDecompositionTotal.WithLabelValues(string(StrategyParser)).Inc()
		return items
	}

	if items := decomposeRules(text); len(items) > 0 {
		metrics.QuoteDecompositionTotal.WithLabelValues(string(StrategyRules)).Inc()
		return items
	}

	metrics.QuoteDecompositionTotal.WithLabelValues(string(StrategyIdentity)).Inc()
	return []domain.ItemRequest{{
		Text:           text,
		Quantity:       1,
		CandidateCount: domain.DefaultCandidates,
	}}
}

// tryParser runs the structured parser and validates its output. A crashed or
// malformed parser is absorbed: the caller proceeds to the rule-based layer.
func (s *Service) tryParser(ctx context.Context, text string) ([]domain.ItemRequest, bool) {
	if s.parser == nil {
		return nil, false
	}

	parsed, err := s.parser.ParseRequest(ctx, text)
	if err != nil {
		s.logger.Warn("Structured parser failed, falling back to rules",
			zap.String("query", text), zap.Error(err))
		return nil, false
	}

	items, ok := itemsFromParsed(parsed)
	if !ok {
		s.logger.Warn("Structured parser returned invalid items, falling back to rules",
			zap.String("query", text), zap.Int("items", len(parsed.Items)))
	}
	return items, ok
}

// itemsFromParsed validates the parser output: every item needs a non-empty
// name and a positive quantity. The candidate count is clamped to [1, 10].
func itemsFromParsed(parsed domain.ParsedRequest) ([]domain.ItemRequest, bool) {
	if len(parsed.Items) == 0 {
		return nil, false
	}

	items := make([]domain.ItemRequest, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		if it.Name == "" || it.Quantity <= 0 {
			return nil, false
		}
		items = append(items, domain.ItemRequest{
			Text:           it.Name,
			Quantity:       it.Quantity,
			Specification:  it.Specification,
			CandidateCount: domain.ClampCandidates(it.CandidateCount),
		})
	}
	return items, true
}
