// Package storage persists small client-state documents such as sessions and the
// notification feed under string keys.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key holds no value.
var ErrNotFound = errors.New("key not found")

// UpdateFunc receives the current value of a key, nil when absent, and returns the value to store.
// Returning a nil value deletes the key.
type UpdateFunc func(current []byte) ([]byte, error)

// Store is a key/value store for client state.
type Store interface {
	// Get returns the value stored under key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Update runs a read-modify-write of key in one transaction.
	Update(ctx context.Context, key string, fn UpdateFunc) error
	// Ping checks that the store is usable.
	Ping(ctx context.Context) error
	// Close releases the underlying resources.
	Close() error
}
