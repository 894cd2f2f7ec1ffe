// Package db defines the key-value storage contract shared by the embedding
// cache and the index snapshot store.
package db

import (
	"context"
	"time"
)

// Store is the key-value storage contract. Implemented by the Redis store
// (rueidis) and the local file store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	WaitForReady(ctx context.Context, timeout time.Duration) error
	Close()
}
