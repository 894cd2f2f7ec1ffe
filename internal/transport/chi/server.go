// Package chi is the HTTP transport: routing, request decoding, error
// envelope and the sentinel-to-status mapping.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/stroysnab-cloud/procura/internal/domain"
	logpkg "github.com/stroysnab-cloud/procura/internal/logger"
	healthuc "github.com/stroysnab-cloud/procura/internal/usecase/health"
	quoteuc "github.com/stroysnab-cloud/procura/internal/usecase/quote"
	searchuc "github.com/stroysnab-cloud/procura/internal/usecase/search"
)

// Error envelope codes.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeIndexNotReady    = "index_not_ready"
	codeEmbeddingError   = "embedding_provider_error"
	codeInternalError    = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the quote pipeline over HTTP.
type Server struct {
	quote         *quoteuc.Service
	search        *searchuc.Service
	health        *healthuc.Service
	defaultTopK   int
	maxTopK       int
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	quote *quoteuc.Service,
	search *searchuc.Service,
	health *healthuc.Service,
	defaultTopK, maxTopK int,
	logger *zap.Logger,
) *Server {
	s := &Server{
		quote:       quote,
		search:      search,
		health:      health,
		defaultTopK: defaultTopK,
		maxTopK:     maxTopK,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEmptyIndex, http.StatusServiceUnavailable, codeIndexNotReady),
		sentinelHandler(domain.ErrIndexNotFound, http.StatusServiceUnavailable, codeIndexNotReady),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingError),
		sentinelHandler(domain.ErrInvalidProduct, http.StatusBadRequest, codeValidationFailed),
	}
	return s
}

// Routes mounts all handlers on a router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/quote", s.CreateQuote)
	r.Post("/v1/search", s.SearchProducts)
	r.Get("/v1/products/{id}/similar", s.SimilarProducts)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type quoteRequest struct {
	Query string `json:"query"`
}

type productResponse struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category,omitempty"`
	UnitCost float64 `json:"unit_cost"`
}

type hitResponse struct {
	Product productResponse `json:"product"`
	Score   float64         `json:"score"`
}

type quoteLineResponse struct {
	RequestedText string           `json:"requested_text"`
	Quantity      int              `json:"quantity"`
	Specification string           `json:"specification,omitempty"`
	Found         bool             `json:"found"`
	Product       *productResponse `json:"product,omitempty"`
	Score         float64          `json:"score,omitempty"`
	UnitPrice     float64          `json:"unit_price,omitempty"`
	TotalPrice    float64          `json:"total_price,omitempty"`
	Alternatives  []hitResponse    `json:"alternatives,omitempty"`
}

type quoteResponse struct {
	Query              string              `json:"query"`
	Lines              []quoteLineResponse `json:"lines"`
	TotalItems         int                 `json:"total_items"`
	FoundItems         int                 `json:"found_items"`
	TotalCost          float64             `json:"total_cost"`
	TotalCostFormatted string              `json:"total_cost_formatted"`
	Products           []productResponse   `json:"products"`
}

// CreateQuote handles POST /v1/quote.
func (s *Server) CreateQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "query is required")
		return
	}

	result, err := s.quote.ProcessRequest(r.Context(), req.Query)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, quoteToResponse(result))
}

type searchRequest struct {
	Query    string `json:"query"`
	TopK     int    `json:"top_k"`
	Category string `json:"category"`
}

type searchResponse struct {
	Items []hitResponse `json:"items"`
	Total int           `json:"total"`
}

// SearchProducts handles POST /v1/search.
func (s *Server) SearchProducts(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "query is required")
		return
	}

	topK := req.TopK
	if topK == 0 {
		topK = s.defaultTopK
	}
	if topK < 1 || topK > s.maxTopK {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			"top_k must be between 1 and "+strconv.Itoa(s.maxTopK))
		return
	}

	var hits []domain.SearchHit
	var err error
	if req.Category != "" {
		hits, err = s.search.SearchByCategory(r.Context(), req.Query, req.Category, topK)
	} else {
		hits, err = s.search.Search(r.Context(), req.Query, topK, 0)
	}
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Items: hitsToResponse(hits),
		Total: len(hits),
	})
}

// SimilarProducts handles GET /v1/products/{id}/similar.
func (s *Server) SimilarProducts(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "product id must be an integer")
		return
	}

	topK := s.defaultTopK
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		topK, err = strconv.Atoi(raw)
		if err != nil || topK < 1 || topK > s.maxTopK {
			writeError(w, http.StatusBadRequest, codeValidationFailed,
				"top_k must be between 1 and "+strconv.Itoa(s.maxTopK))
			return
		}
	}

	hits, err := s.search.GetSimilar(r.Context(), id, topK)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Items: hitsToResponse(hits),
		Total: len(hits),
	})
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func quoteToResponse(q domain.QuoteResult) quoteResponse {
	lines := make([]quoteLineResponse, len(q.Lines))
	for i, l := range q.Lines {
		lines[i] = quoteLineResponse{
			RequestedText: l.RequestedText,
			Quantity:      l.Quantity,
			Specification: l.Specification,
			Found:         l.Found(),
			Score:         l.Score,
			UnitPrice:     l.UnitPrice,
			TotalPrice:    l.TotalPrice,
			Alternatives:  hitsToResponse(l.Alternatives),
		}
		if l.Product != nil {
			p := productToResponse(*l.Product)
			lines[i].Product = &p
		}
	}

	products := make([]productResponse, len(q.Products))
	for i, p := range q.Products {
		products[i] = productToResponse(p)
	}

	return quoteResponse{
		Query:              q.Query,
		Lines:              lines,
		TotalItems:         q.TotalItems,
		FoundItems:         q.FoundItems,
		TotalCost:          q.TotalCost,
		TotalCostFormatted: domain.FormatPrice(q.TotalCost),
		Products:           products,
	}
}

func hitsToResponse(hits []domain.SearchHit) []hitResponse {
	if len(hits) == 0 {
		return nil
	}
	out := make([]hitResponse, len(hits))
	for i, h := range hits {
		out[i] = hitResponse{Product: productToResponse(h.Product), Score: h.Score}
	}
	return out
}

func productToResponse(p domain.ProductRecord) productResponse {
	return productResponse{
		ID:       p.ID,
		Name:     p.Name,
		Category: p.Category,
		UnitCost: p.UnitCost,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrEmptyIndex,
		domain.ErrIndexNotFound,
		domain.ErrEmptyCatalog,
		domain.ErrEmbeddingProviderError,
		domain.ErrInvalidProduct,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	// Request-scoped logger carries request_id when the middleware is mounted.
	log := logpkg.FromContext(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
