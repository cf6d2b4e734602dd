package storage

import (
	"context"
	"encoding/json"
	"time"
)

// Cache persists per-repository commit data between runs.
type Cache interface {
	// Get returns the payload stored under key if it has not expired.
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)

	// Put upserts the payload stored under key and refreshes its timestamp.
	Put(ctx context.Context, key string, payload any) error

	// LastModified returns when key was last written.
	LastModified(ctx context.Context, key string) (time.Time, bool, error)

	// Clear drops every entry of the cache owner.
	Clear(ctx context.Context) error

	Close() error
}
