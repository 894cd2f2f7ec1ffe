package embcache

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/stroysnab-cloud/procura/internal/db"
	"github.com/stroysnab-cloud/procura/internal/domain"
)

type mockEmbedder struct {
	result     domain.EmbeddingResult
	err        error
	calls      int
	batchCalls int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	return m.result, m.err
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchCalls++
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = m.result.Embedding
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: m.result.PromptTokens * len(texts),
		TotalTokens:  m.result.TotalTokens * len(texts),
	}, nil
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	data map[string][]byte
}

func newMockKVStore() *mockKVStore {
	return &mockKVStore{data: make(map[string][]byte)}
}

func (m *mockKVStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKVStore) Set(_ context.Context, key string, value []byte) error {
	m.data[key] = value
	return nil
}

func TestEmbed_MissThenHit(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding: []float32{0.1, 0.2, 0.3}, PromptTokens: 5, TotalTokens: 5,
	}}
	store := newMockKVStore()
	ce := New(inner, store, nil, zap.NewNop())

	// Первый вызов — промах, уходит в провайдер.
	first, err := ce.Embed(context.Background(), "короб")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d, want 1", inner.calls)
	}
	if first.TotalTokens != 5 {
		t.Errorf("miss TotalTokens = %d, want 5", first.TotalTokens)
	}

	// Второй вызов — попадание, провайдер не трогаем, токены нулевые.
	second, err := ce.Embed(context.Background(), "короб")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d after hit, want 1", inner.calls)
	}
	if second.TotalTokens != 0 {
		t.Errorf("hit TotalTokens = %d, want 0", second.TotalTokens)
	}
	if len(second.Embedding) != 3 || second.Embedding[1] != 0.2 {
		t.Errorf("cached embedding = %v", second.Embedding)
	}
}

func TestEmbed_DifferentTextsDifferentKeys(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	store := newMockKVStore()
	ce := New(inner, store, nil, zap.NewNop())

	_, _ = ce.Embed(context.Background(), "a")
	_, _ = ce.Embed(context.Background(), "b")

	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2", inner.calls)
	}
	if len(store.data) != 2 {
		t.Errorf("cached entries = %d, want 2", len(store.data))
	}
}

func TestEmbed_InnerError(t *testing.T) {
	wantErr := errors.New("provider down")
	ce := New(&mockEmbedder{err: wantErr}, newMockKVStore(), nil, zap.NewNop())

	_, err := ce.Embed(context.Background(), "короб")
	if !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestEmbed_CorruptCacheFallsThrough(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 2}}}
	store := newMockKVStore()
	ce := New(inner, store, nil, zap.NewNop())

	// Кладём мусор нечётной длины под ключ текста.
	store.data[ce.cacheKey("короб")] = []byte{1, 2, 3}

	res, err := ce.Embed(context.Background(), "короб")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1 (corrupt entry ignored)", inner.calls)
	}
	if len(res.Embedding) != 2 {
		t.Errorf("embedding = %v", res.Embedding)
	}
}

func TestBatchEmbed_PartialHits(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding: []float32{0.5}, PromptTokens: 1, TotalTokens: 1,
	}}
	store := newMockKVStore()
	ce := New(inner, store, nil, zap.NewNop())

	// Прогреваем кеш одним текстом.
	if _, err := ce.Embed(context.Background(), "b"); err != nil {
		t.Fatalf("warmup failed: %v", err)
	}
	inner.calls = 0

	res, err := ce.BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("BatchEmbed failed: %v", err)
	}

	if len(res.Embeddings) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(res.Embeddings))
	}
	for i, e := range res.Embeddings {
		if len(e) != 1 {
			t.Errorf("embedding %d = %v", i, e)
		}
	}
	// В провайдер ушли только промахи, одним batch-вызовом.
	if inner.batchCalls != 1 {
		t.Errorf("batch calls = %d, want 1", inner.batchCalls)
	}
	// Токены считаются только по промахам (a и c).
	if res.TotalTokens != 2 {
		t.Errorf("TotalTokens = %d, want 2", res.TotalTokens)
	}
}

func TestBatchEmbed_AllHits(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	store := newMockKVStore()
	ce := New(inner, store, nil, zap.NewNop())

	_, _ = ce.Embed(context.Background(), "a")
	inner.calls, inner.batchCalls = 0, 0

	res, err := ce.BatchEmbed(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("BatchEmbed failed: %v", err)
	}
	if inner.batchCalls != 0 || inner.calls != 0 {
		t.Errorf("inner touched on full cache hit: %d/%d", inner.calls, inner.batchCalls)
	}
	if res.TotalTokens != 0 {
		t.Errorf("TotalTokens = %d, want 0", res.TotalTokens)
	}
}

func TestVectorRoundTrip(t *testing.T) {
	vec := []float32{0.1, -2.5, 3.75}
	got, err := bytesToVector(vectorToCacheBytes(vec))
	if err != nil {
		t.Fatalf("bytesToVector failed: %v", err)
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("v[%d] = %f, want %f", i, got[i], vec[i])
		}
	}
}
