package kv

import (
	"context"
	"errors"
)

// Store is the durable key-value collaborator the cart persists into.
// Consumers define this interface, not the backends.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete is a no-op for a missing key.
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

var ErrNotFound = errors.New("key not found")
