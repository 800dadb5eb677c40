// Package kv reads and writes small string values in a namespaced key-value
// store. The uploader keeps its active-database pointer there.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("kv: key not found")

// Store is a namespaced string key-value store.
type Store interface {
	// Get returns the value at key, or ErrNotFound.
	Get(ctx context.Context, namespace, key string) (string, error)

	// Put sets key to value, replacing any previous value.
	Put(ctx context.Context, namespace, key, value string) error
}
