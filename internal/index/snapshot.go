package index

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/stroysnab-cloud/procura/internal/db"
	"github.com/stroysnab-cloud/procura/internal/domain"
)

// snapshot is the persisted index layout. Internal contract between Persist
// and Load only; record order is preserved so a restored index ranks
// identically to the one it was saved from.
type snapshot struct {
	Records []domain.ProductRecord
	Vectors [][]float32
	Dim     int
}

// Persist serializes the index to the store under a single logical key.
func (x *CatalogIndex) Persist(ctx context.Context, store db.Store, key string) error {
	var buf bytes.Buffer
	snap := snapshot{Records: x.records, Vectors: x.vectors, Dim: x.dim}
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("encode index snapshot: %w", err)
	}

	if err := store.Set(ctx, key, buf.Bytes()); err != nil {
		return fmt.Errorf("persist index snapshot: %w", err)
	}
	return nil
}

// Load restores a previously persisted index. Returns domain.ErrIndexNotFound
// when no valid snapshot exists; callers must treat that as "must rebuild".
func Load(ctx context.Context, store db.Store, key string) (*CatalogIndex, error) {
	data, err := store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, domain.ErrIndexNotFound
		}
		return nil, fmt.Errorf("load index snapshot: %w", err)
	}

	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: corrupt snapshot: %v", domain.ErrIndexNotFound, err)
	}

	if len(snap.Records) == 0 || len(snap.Records) != len(snap.Vectors) {
		return nil, fmt.Errorf("%w: inconsistent snapshot (%d records, %d vectors)",
			domain.ErrIndexNotFound, len(snap.Records), len(snap.Vectors))
	}
	for i, v := range snap.Vectors {
		if len(v) != snap.Dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d",
				domain.ErrIndexNotFound, i, len(v), snap.Dim)
		}
	}

	return &CatalogIndex{records: snap.Records, vectors: snap.Vectors, dim: snap.Dim}, nil
}
