package decompose

import (
	"context"

	"github.com/stroysnab-cloud/procura/internal/domain"
)

// RequestParser is the structured natural-language parser capability.
// Optional: a nil parser degrades the decomposer to rule-based parsing.
type RequestParser interface {
	ParseRequest(ctx context.Context, text string) (domain.ParsedRequest, error)
}
