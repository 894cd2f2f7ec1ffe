package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stroysnab-cloud/procura/internal/domain"
)

type mockIndex struct {
	hits    []domain.SearchHit
	err     error
	vectors map[int64][]float32
	lastK   int
}

func (m *mockIndex) Query(_ []float32, k int) ([]domain.SearchHit, error) {
	m.lastK = k
	if m.err != nil {
		return nil, m.err
	}
	if k > len(m.hits) {
		k = len(m.hits)
	}
	return m.hits[:k], nil
}

func (m *mockIndex) Len() int { return len(m.hits) }

func (m *mockIndex) VectorOf(id int64) ([]float32, bool) {
	v, ok := m.vectors[id]
	return v, ok
}

type mockEmbedder struct {
	err error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0}}, nil
}

func hit(id int64, category string, score float64) domain.SearchHit {
	return domain.SearchHit{
		Product: domain.ProductRecord{ID: id, Name: "p", Category: category, UnitCost: 10},
		Score:   score,
	}
}

func TestSearch_FiltersBelowThreshold(t *testing.T) {
	idx := &mockIndex{hits: []domain.SearchHit{
		hit(1, "Короба", 0.9),
		hit(2, "Короба", 0.4),
		hit(3, "Короба", -0.2),
	}}
	svc := New(idx, &mockEmbedder{})

	hits, err := svc.Search(context.Background(), "короб", 3, 0.5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].Product.ID != 1 {
		t.Errorf("hits = %+v, want only the 0.9 hit", hits)
	}
}

func TestSearch_ZeroThresholdDropsNegativeScores(t *testing.T) {
	idx := &mockIndex{hits: []domain.SearchHit{
		hit(1, "", 0.3),
		hit(2, "", 0),
		hit(3, "", -0.1),
	}}
	svc := New(idx, &mockEmbedder{})

	hits, err := svc.Search(context.Background(), "q", 3, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("expected 2 hits (score >= 0), got %d", len(hits))
	}
}

func TestSearch_InvalidTopK(t *testing.T) {
	svc := New(&mockIndex{}, &mockEmbedder{})
	if _, err := svc.Search(context.Background(), "q", 0, 0); err == nil {
		t.Error("expected error for topK=0")
	}
}

func TestSearch_EmbedderError(t *testing.T) {
	wantErr := errors.New("provider down")
	svc := New(&mockIndex{hits: []domain.SearchHit{hit(1, "", 1)}}, &mockEmbedder{err: wantErr})

	_, err := svc.Search(context.Background(), "q", 1, 0)
	if !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped embedder error, got %v", err)
	}
}

func TestSearch_EmptyIndexPropagates(t *testing.T) {
	svc := New(&mockIndex{err: domain.ErrEmptyIndex}, &mockEmbedder{})

	_, err := svc.Search(context.Background(), "q", 1, 0)
	if !errors.Is(err, domain.ErrEmptyIndex) {
		t.Errorf("expected ErrEmptyIndex, got %v", err)
	}
}

func TestSearchByCategory(t *testing.T) {
	idx := &mockIndex{hits: []domain.SearchHit{
		hit(1, "Короба", 0.9),
		hit(2, "Крепеж", 0.8),
		hit(3, "Короба стальные", 0.7),
		hit(4, "Лотки", 0.6),
	}}
	svc := New(idx, &mockEmbedder{})

	hits, err := svc.SearchByCategory(context.Background(), "короб", "короба", 2)
	if err != nil {
		t.Fatalf("SearchByCategory failed: %v", err)
	}

	// Выборка с запасом topK*3.
	if idx.lastK != 6 {
		t.Errorf("raw query k = %d, want 6", idx.lastK)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Product.ID != 1 || hits[1].Product.ID != 3 {
		t.Errorf("hits = %+v", hits)
	}
}

func TestSearchByCategory_NoBackfill(t *testing.T) {
	idx := &mockIndex{hits: []domain.SearchHit{
		hit(1, "Короба", 0.9),
		hit(2, "Лотки", 0.8),
	}}
	svc := New(idx, &mockEmbedder{})

	hits, err := svc.SearchByCategory(context.Background(), "q", "короба", 2)
	if err != nil {
		t.Fatalf("SearchByCategory failed: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("expected 1 hit without backfill, got %d", len(hits))
	}
}

func TestGetSimilar_ExcludesSelf(t *testing.T) {
	idx := &mockIndex{
		hits: []domain.SearchHit{
			hit(1, "", 1.0), // сам товар — ближайший сосед самому себе
			hit(2, "", 0.8),
			hit(3, "", 0.7),
		},
		vectors: map[int64][]float32{1: {1, 0}},
	}
	svc := New(idx, &mockEmbedder{})

	hits, err := svc.GetSimilar(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("GetSimilar failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	for _, h := range hits {
		if h.Product.ID == 1 {
			t.Errorf("self product in similar hits: %+v", hits)
		}
	}
}

func TestGetSimilar_UnknownProduct(t *testing.T) {
	svc := New(&mockIndex{hits: []domain.SearchHit{hit(1, "", 1)}}, &mockEmbedder{})

	hits, err := svc.GetSimilar(context.Background(), 99, 2)
	if err != nil {
		t.Fatalf("GetSimilar failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits for unknown id, got %+v", hits)
	}
}
