// Package extract fetches the market feed and lands it in object storage.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/rickgao/predictit-etl/internal/api"
	"github.com/rickgao/predictit-etl/internal/model"
	"github.com/rickgao/predictit-etl/internal/storage"
	"github.com/rickgao/predictit-etl/internal/version"
)

// Fetcher downloads the raw feed body.
type Fetcher interface {
	FetchMarketData(ctx context.Context) (json.RawMessage, error)
	BaseURL() string
}

// Config controls where and how documents are landed.
type Config struct {
	Prefix      string // Key prefix, e.g. "predictit/raw"
	FilePrefix  string // Object name prefix, e.g. "predictit_markets"
	Compression string // "none" or "zstd"
}

// Landed describes one landed object.
type Landed struct {
	Key         string
	ExtractedAt time.Time
	Markets     int
	Bytes       int // Stored size after compression
}

// Extractor wraps the feed in an envelope and writes it to storage.
type Extractor struct {
	fetcher Fetcher
	store   storage.ObjectStore
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an Extractor. A nil logger uses slog.Default().
func New(fetcher Fetcher, store storage.ObjectStore, cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		fetcher: fetcher,
		store:   store,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Extract fetches the feed once and lands it under a new date-partitioned key.
func (e *Extractor) Extract(ctx context.Context) (Landed, error) {
	body, err := e.fetcher.FetchMarketData(ctx)
	if err != nil {
		return Landed{}, err
	}

	extractedAt := e.now().UTC()

	markets, err := api.CountMarkets(body)
	if err != nil {
		return Landed{}, err
	}
	if markets == 0 {
		e.logger.Warn("feed returned no markets", "source", e.fetcher.BaseURL())
	}

	doc, err := json.Marshal(model.Envelope{
		ExtractedAt: extractedAt.Format(time.RFC3339Nano),
		Source:      e.fetcher.BaseURL(),
		Data:        body,
	})
	if err != nil {
		return Landed{}, fmt.Errorf("encode envelope: %w", err)
	}

	encoded, err := storage.Encode(doc, e.cfg.Compression)
	if err != nil {
		return Landed{}, err
	}

	name := storage.ObjectName(e.cfg.FilePrefix, extractedAt, e.cfg.Compression)
	key := storage.PartitionKey(e.cfg.Prefix, extractedAt, name)

	meta := map[string]string{
		storage.MetaUploadTimestamp: extractedAt.Format(time.RFC3339),
		storage.MetaSourceFile:      path.Base(key),
		"extractor":                 version.Source(),
	}
	if err := e.store.Put(ctx, key, encoded, meta); err != nil {
		return Landed{}, fmt.Errorf("land feed: %w", err)
	}

	landed := Landed{
		Key:         key,
		ExtractedAt: extractedAt,
		Markets:     markets,
		Bytes:       len(encoded),
	}
	e.logger.Info("landed market data",
		"key", landed.Key,
		"markets", landed.Markets,
		"bytes", landed.Bytes,
		"raw_bytes", len(doc),
	)
	return landed, nil
}
