// Package loader moves landed objects from storage into the raw warehouse
// table.
//
// Objects are downloaded concurrently in windows of Concurrency keys; within
// a window they are normalized and appended one at a time in key order, so
// the warehouse only ever sees a single writer. Each object is appended in
// its own transaction together with its manifest row, which makes a load
// safe to repeat. Objects that cannot be decoded are recorded in the manifest
// as failed so later runs skip them; naming such a key explicitly retries it.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/predictit-etl/internal/ingest"
	"github.com/rickgao/predictit-etl/internal/storage"
	"github.com/rickgao/predictit-etl/internal/warehouse"
)

// Warehouse is the raw-table surface the loader writes to.
type Warehouse interface {
	LoadedKeys(ctx context.Context) (map[string]bool, error)
	AppendRaw(ctx context.Context, b warehouse.LoadBatch) (bool, error)
}

// Result summarizes one Load call.
type Result struct {
	Pending int // Keys selected for loading
	Loaded  int // Objects appended
	Skipped int // Objects already in the manifest
	Failed  int // Objects that were not decodable JSON, recorded as failed
	Rows    int // Raw rows appended
	Ingest  ingest.Report
}

// Loader loads landed objects into the warehouse.
type Loader struct {
	store       storage.ObjectStore
	wh          Warehouse
	normalizer  *ingest.Normalizer
	prefix      string
	concurrency int
	logger      *slog.Logger

	now   func() time.Time
	newID func() uuid.UUID
}

// New creates a Loader that discovers objects under prefix.
func New(store storage.ObjectStore, wh Warehouse, prefix string, concurrency int, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Loader{
		store:       store,
		wh:          wh,
		normalizer:  ingest.NewNormalizer(logger),
		prefix:      strings.TrimSuffix(prefix, "/") + "/",
		concurrency: concurrency,
		logger:      logger,
		now:         time.Now,
		newID:       uuid.New,
	}
}

// Load appends the given keys, or every unloaded object under the prefix
// when no keys are given.
func (l *Loader) Load(ctx context.Context, keys ...string) (Result, error) {
	var res Result

	pending, err := l.pendingKeys(ctx, keys)
	if err != nil {
		return res, err
	}
	res.Pending = len(pending)
	if len(pending) == 0 {
		l.logger.Info("no new objects to load", "prefix", l.prefix)
		return res, nil
	}

	for start := 0; start < len(pending); start += l.concurrency {
		end := min(start+l.concurrency, len(pending))
		window := pending[start:end]

		objects, err := l.fetch(ctx, window)
		if err != nil {
			return res, err
		}

		for i, key := range window {
			if err := l.loadOne(ctx, key, objects[i], &res); err != nil {
				return res, err
			}
		}
	}

	l.logger.Info("load complete",
		"pending", res.Pending,
		"loaded", res.Loaded,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"rows", res.Rows,
		"warnings", res.Ingest.Warnings(),
	)
	return res, nil
}

// pendingKeys returns the explicit keys, or lists the prefix and drops
// anything the manifest already holds.
func (l *Loader) pendingKeys(ctx context.Context, keys []string) ([]string, error) {
	if len(keys) > 0 {
		return keys, nil
	}

	listed, err := l.store.List(ctx, l.prefix)
	if err != nil {
		return nil, fmt.Errorf("list landed objects: %w", err)
	}

	loaded, err := l.wh.LoadedKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("read load manifest: %w", err)
	}

	var pending []string
	for _, k := range listed {
		if storage.IsDataKey(k) && !loaded[k] {
			pending = append(pending, k)
		}
	}
	sort.Strings(pending)
	return pending, nil
}

// fetched holds one downloaded object; decodeErr marks content that could
// not be decompressed.
type fetched struct {
	data      []byte
	decodeErr error
}

// fetch downloads keys concurrently. Storage errors abort the window.
func (l *Loader) fetch(ctx context.Context, keys []string) ([]fetched, error) {
	out := make([]fetched, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			raw, err := l.store.Get(gctx, key)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", key, err)
			}
			data, err := storage.Decode(key, raw)
			out[i] = fetched{data: data, decodeErr: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Loader) loadOne(ctx context.Context, key string, obj fetched, res *Result) error {
	if obj.decodeErr != nil {
		l.logger.Warn("skipping undecodable object", "key", key, "error", obj.decodeErr)
		return l.recordFailure(ctx, key, obj.decodeErr, res)
	}

	records, rep, err := l.normalizer.Normalize(obj.data, key)
	if err != nil {
		if errors.Is(err, ingest.ErrNoDocuments) {
			l.logger.Warn("skipping empty object", "key", key)
		} else {
			l.logger.Warn("skipping malformed object", "key", key, "error", err)
		}
		return l.recordFailure(ctx, key, err, res)
	}

	batch := warehouse.LoadBatch{
		Key:       key,
		LoadID:    l.newID(),
		LoadedAt:  l.now().UTC(),
		Documents: rep.Documents,
		Warnings:  rep.Warnings(),
		Records:   records,
	}
	for i := range batch.Records {
		batch.Records[i].LoadID = batch.LoadID
		batch.Records[i].LoadedAt = batch.LoadedAt
	}

	appended, err := l.wh.AppendRaw(ctx, batch)
	if err != nil {
		return fmt.Errorf("append %s: %w", key, err)
	}
	if !appended {
		res.Skipped++
		l.logger.Debug("object already loaded", "key", key)
		return nil
	}

	res.Loaded++
	res.Rows += len(records)
	res.Ingest.Add(rep)

	l.logger.Info("loaded object",
		"key", key,
		"load_id", batch.LoadID,
		"rows", len(records),
		"warnings", rep.Warnings(),
	)
	return nil
}

// recordFailure writes a failed manifest row for key so discovery skips it.
func (l *Loader) recordFailure(ctx context.Context, key string, cause error, res *Result) error {
	res.Failed++

	_, err := l.wh.AppendRaw(ctx, warehouse.LoadBatch{
		Key:      key,
		LoadID:   l.newID(),
		LoadedAt: l.now().UTC(),
		Err:      cause.Error(),
	})
	if err != nil {
		return fmt.Errorf("record failed %s: %w", key, err)
	}
	return nil
}
