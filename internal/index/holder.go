package index

import (
	"sync"

	"github.com/stroysnab-cloud/procura/internal/domain"
)

// Holder publishes a CatalogIndex to concurrent readers. Rebuilds swap the
// whole index at once, so in-flight queries never observe a partially built
// structure.
type Holder struct {
	mu  sync.RWMutex
	idx *CatalogIndex
}

// NewHolder creates a holder, optionally seeded with an index.
func NewHolder(idx *CatalogIndex) *Holder {
	return &Holder{idx: idx}
}

// Swap atomically replaces the published index.
func (h *Holder) Swap(idx *CatalogIndex) {
	h.mu.Lock()
	h.idx = idx
	h.mu.Unlock()
}

func (h *Holder) current() *CatalogIndex {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.idx
}

// Query delegates to the published index.
func (h *Holder) Query(vec []float32, k int) ([]domain.SearchHit, error) {
	idx := h.current()
	if idx == nil {
		return nil, domain.ErrEmptyIndex
	}
	return idx.Query(vec, k)
}

// Len returns the published index size, 0 when nothing is published.
func (h *Holder) Len() int {
	idx := h.current()
	if idx == nil {
		return 0
	}
	return idx.Len()
}

// VectorOf returns the stored vector of a product by id.
func (h *Holder) VectorOf(productID int64) ([]float32, bool) {
	idx := h.current()
	if idx == nil {
		return nil, false
	}
	return idx.VectorOf(productID)
}
