package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gochi "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/stroysnab-cloud/procura/internal/domain"
	healthuc "github.com/stroysnab-cloud/procura/internal/usecase/health"
	quoteuc "github.com/stroysnab-cloud/procura/internal/usecase/quote"
	searchuc "github.com/stroysnab-cloud/procura/internal/usecase/search"
)

// --- Fakes wired through the real usecase services ---

type fakeIndex struct {
	hits []domain.SearchHit
	err  error
}

func (f *fakeIndex) Query(_ []float32, k int) ([]domain.SearchHit, error) {
	if f.err != nil {
		return nil, f.err
	}
	if k > len(f.hits) {
		k = len(f.hits)
	}
	return f.hits[:k], nil
}

func (f *fakeIndex) Len() int { return len(f.hits) }

func (f *fakeIndex) VectorOf(_ int64) ([]float32, bool) { return nil, false }

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: []float32{1, 0}}, nil
}

type fakeDecomposer struct{}

func (fakeDecomposer) Decompose(_ context.Context, text string) []domain.ItemRequest {
	return []domain.ItemRequest{{Text: text, Quantity: 2, CandidateCount: 3}}
}

type fakePinger struct{}

func (fakePinger) Ping(_ context.Context) error { return nil }

func newTestServer(idx *fakeIndex) http.Handler {
	searchSvc := searchuc.New(idx, fakeEmbedder{})
	quoteSvc := quoteuc.New(fakeDecomposer{}, searchSvc, 0, zap.NewNop())
	healthSvc := healthuc.New(fakePinger{}, nil, idx)

	server := NewServer(quoteSvc, searchSvc, healthSvc, 10, 50, zap.NewNop())
	r := gochi.NewRouter()
	server.Routes(r)
	return r
}

func catalogHits() []domain.SearchHit {
	return []domain.SearchHit{
		{Product: domain.ProductRecord{ID: 1, Name: "Короб 200x200", Category: "Короба", UnitCost: 1500}, Score: 0.95},
		{Product: domain.ProductRecord{ID: 2, Name: "Короб 200x100", Category: "Короба", UnitCost: 1200}, Score: 0.85},
	}
}

func TestCreateQuote(t *testing.T) {
	h := newTestServer(&fakeIndex{hits: catalogHits()})

	req := httptest.NewRequest("POST", "/v1/quote", strings.NewReader(`{"query":"короб"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	var resp quoteResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.TotalItems != 1 || resp.FoundItems != 1 {
		t.Errorf("totals = %d/%d, want 1/1", resp.TotalItems, resp.FoundItems)
	}
	if resp.TotalCost != 3000 {
		t.Errorf("TotalCost = %g, want 3000 (qty 2 x 1500)", resp.TotalCost)
	}
	if resp.TotalCostFormatted != "3 000 руб." {
		t.Errorf("TotalCostFormatted = %q", resp.TotalCostFormatted)
	}
	if len(resp.Lines) != 1 || !resp.Lines[0].Found {
		t.Fatalf("lines = %+v", resp.Lines)
	}
	if len(resp.Lines[0].Alternatives) != 1 {
		t.Errorf("alternatives = %+v", resp.Lines[0].Alternatives)
	}
	if len(resp.Products) != 1 || resp.Products[0].ID != 1 {
		t.Errorf("products = %+v", resp.Products)
	}
}

func TestCreateQuote_EmptyQuery(t *testing.T) {
	h := newTestServer(&fakeIndex{hits: catalogHits()})

	req := httptest.NewRequest("POST", "/v1/quote", strings.NewReader(`{"query":""}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestCreateQuote_EmptyIndex503(t *testing.T) {
	h := newTestServer(&fakeIndex{err: domain.ErrEmptyIndex})

	req := httptest.NewRequest("POST", "/v1/quote", strings.NewReader(`{"query":"короб"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}

	var errResp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != codeIndexNotReady {
		t.Errorf("error code = %q, want %q", errResp.Code, codeIndexNotReady)
	}
}

func TestSearchProducts(t *testing.T) {
	h := newTestServer(&fakeIndex{hits: catalogHits()})

	req := httptest.NewRequest("POST", "/v1/search", strings.NewReader(`{"query":"короб","top_k":2}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	var resp searchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 2 || len(resp.Items) != 2 {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Items[0].Product.ID != 1 {
		t.Errorf("first hit = %+v", resp.Items[0])
	}
}

func TestSearchProducts_TopKOutOfRange(t *testing.T) {
	h := newTestServer(&fakeIndex{hits: catalogHits()})

	req := httptest.NewRequest("POST", "/v1/search", strings.NewReader(`{"query":"короб","top_k":1000}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestSimilarProducts_BadID(t *testing.T) {
	h := newTestServer(&fakeIndex{hits: catalogHits()})

	req := httptest.NewRequest("GET", "/v1/products/abc/similar", http.NoBody)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestHealth_Degraded503(t *testing.T) {
	h := newTestServer(&fakeIndex{}) // пустой индекс — index check красный

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}

	var resp healthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "degraded" || resp.Checks["index"] != "error" {
		t.Errorf("resp = %+v", resp)
	}
}
