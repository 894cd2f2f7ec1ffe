package procura

import (
	"context"

	"github.com/stroysnab-cloud/procura/internal/domain"
)

// Embedder turns text into a vector. Implement it to plug in your own
// embedding provider; WithOpenAIEmbedder covers the common case.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder is an optional Embedder capability: one call for many texts.
// Index builds use it when available.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// EmbeddingResult is a vector with provider token usage.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult holds vectors in input order with summed usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// Product is one catalog position.
type Product struct {
	ID       int64
	Name     string
	Category string
	UnitCost float64
}

// SearchHit is a product with its similarity score, higher is better.
type SearchHit struct {
	Product Product
	Score   float64
}

// QuoteLine is the result for one requested item. Product is nil when
// nothing matched.
type QuoteLine struct {
	RequestedText string
	Quantity      int
	Specification string
	Product       *Product
	Score         float64
	UnitPrice     float64
	TotalPrice    float64
	Alternatives  []SearchHit
}

// Quote is the aggregated answer for one free-text request.
type Quote struct {
	Query              string
	Lines              []QuoteLine
	Products           []Product
	TotalItems         int
	FoundItems         int
	TotalCost          float64
	TotalCostFormatted string
}

func fromProduct(p domain.ProductRecord) Product {
	return Product{ID: p.ID, Name: p.Name, Category: p.Category, UnitCost: p.UnitCost}
}

func fromHits(hits []domain.SearchHit) []SearchHit {
	if len(hits) == 0 {
		return nil
	}
	out := make([]SearchHit, len(hits))
	for i, h := range hits {
		out[i] = SearchHit{Product: fromProduct(h.Product), Score: h.Score}
	}
	return out
}

func fromQuote(q domain.QuoteResult) Quote {
	out := Quote{
		Query:              q.Query,
		TotalItems:         q.TotalItems,
		FoundItems:         q.FoundItems,
		TotalCost:          q.TotalCost,
		TotalCostFormatted: domain.FormatPrice(q.TotalCost),
	}
	for _, l := range q.Lines {
		line := QuoteLine{
			RequestedText: l.RequestedText,
			Quantity:      l.Quantity,
			Specification: l.Specification,
			Score:         l.Score,
			UnitPrice:     l.UnitPrice,
			TotalPrice:    l.TotalPrice,
			Alternatives:  fromHits(l.Alternatives),
		}
		if l.Product != nil {
			p := fromProduct(*l.Product)
			line.Product = &p
		}
		out.Lines = append(out.Lines, line)
	}
	for _, p := range q.Products {
		out.Products = append(out.Products, fromProduct(p))
	}
	return out
}
