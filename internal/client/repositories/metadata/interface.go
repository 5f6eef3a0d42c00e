// Package metadata is a small key/value store over the local "metadata"
// table. The credential store keeps the bearer token and user snapshot here.
package metadata

import (
	"context"
)

type Repository interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
