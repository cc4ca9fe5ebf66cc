package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rickgao/predictit-etl/internal/config"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("object not found")

// Metadata keys attached to landed objects.
const (
	MetaUploadTimestamp = "upload_timestamp"
	MetaSourceFile      = "source_file"
)

// ObjectStore is a flat key/value object store.
type ObjectStore interface {
	// Put writes data under key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte, meta map[string]string) error

	// Get returns the object stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns every key that starts with prefix, in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Open returns the backend selected by cfg.Backend. For S3 the bucket is
// created first when cfg.CreateBucket is set.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (ObjectStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case "s3":
		store, err := NewS3Store(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if cfg.CreateBucket {
			if err := store.EnsureBucket(ctx); err != nil {
				return nil, err
			}
		}
		return store, nil
	case "file":
		return NewFileStore(cfg.LocalDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
