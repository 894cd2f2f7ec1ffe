package domain

// Candidate count bounds for a single item request.
const (
	MinCandidates     = 1
	MaxCandidates     = 10
	DefaultCandidates = 3
)

// ItemRequest is one decomposed unit of the original query. Produced by the
// decomposer, consumed once by the aggregator.
type ItemRequest struct {
	Text           string // search string, non-empty
	Quantity       int    // positive, default 1
	Specification  string // free-text annotation, may be empty
	CandidateCount int    // how many alternatives to retrieve, 1-10
}

// ClampCandidates returns n forced into the [MinCandidates, MaxCandidates]
// domain, defaulting when n is unset.
func ClampCandidates(n int) int {
	if n <= 0 {
		return DefaultCandidates
	}
	if n > MaxCandidates {
		return MaxCandidates
	}
	return n
}

// SearchHit is the result of one similarity query: a catalog product and its
// cosine score in [-1, 1].
type SearchHit struct {
	Product ProductRecord
	Score   float64
}

// LineResult is the aggregator output for one ItemRequest. Product is nil
// when nothing was found; a missing product is data, never an error.
type LineResult struct {
	RequestedText string
	Quantity      int
	Specification string
	Product       *ProductRecord
	Score         float64
	UnitPrice     float64
	TotalPrice    float64
	Alternatives  []SearchHit
}

// Found reports whether a product was selected for this line.
func (l LineResult) Found() bool { return l.Product != nil }

// QuoteResult is the top-level pipeline output.
type QuoteResult struct {
	Query      string
	Lines      []LineResult
	TotalItems int
	FoundItems int
	TotalCost  float64

	// Products is a flattened view of the selected products, deduplicated by
	// id (first occurrence wins). Presentation concern: per-line detail in
	// Lines keeps duplicates.
	Products []ProductRecord
}

// ParsedItem is one item returned by the structured request parser.
type ParsedItem struct {
	Name           string
	Quantity       int
	Specification  string
	CandidateCount int
}

// ParsedRequest is the structured parser output for one request.
type ParsedRequest struct {
	Items      []ParsedItem
	Confidence float64
	Analysis   string
}
