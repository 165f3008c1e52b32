package repository

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned (wrapped) by every KeyValueStore when a key is absent.
var ErrKeyNotFound = errors.New("key not found")

// KeyValueStore is the flat id -> JSON namespace holding photo records.
// Implementations give per-key atomicity only.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// Delete is idempotent: removing an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists every key in the store's enumeration order.
	Keys(ctx context.Context) ([]string, error)
	Close() error
}
