// Package docstore loads and saves the document that carries the report
// section.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wakareadme/internal/config"
)

// ErrNotFound is returned by Load when the document does not exist.
var ErrNotFound = errors.New("document not found")

// Store reads and writes whole documents by path.
type Store interface {
	Load(ctx context.Context, path string) (string, error)
	Save(ctx context.Context, path, content string) error
}

// Driver names accepted by Open.
const (
	DriverFS     = "fs"
	DriverMemory = "memory"
	DriverS3     = "s3"
)

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.Store) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverFS:
		return NewFSStore(cfg.Root), nil
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverS3:
		return NewS3Store(ctx, S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			Prefix:    cfg.S3Prefix,
			PathStyle: cfg.PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
