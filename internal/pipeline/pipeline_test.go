package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/predictit-etl/internal/api"
	"github.com/rickgao/predictit-etl/internal/extract"
	"github.com/rickgao/predictit-etl/internal/loader"
	"github.com/rickgao/predictit-etl/internal/model"
	"github.com/rickgao/predictit-etl/internal/quality"
	"github.com/rickgao/predictit-etl/internal/storage"
	"github.com/rickgao/predictit-etl/internal/transform"
	"github.com/rickgao/predictit-etl/internal/warehouse"
)

const feed = `{"markets":[
 {"id":1,"name":"Who wins?","status":"Open","contracts":[
   {"id":10,"name":"Yes","lastTradePrice":0.45},
   {"id":11,"name":"No","lastTradePrice":null}]},
 {"id":2,"name":"","contracts":[{"contractId":20,"contractName":"Maybe","lastTradePrice":0.999}]}
]}`

// memWarehouse is an in-memory warehouse following the SQL store's rules.
type memWarehouse struct {
	mu        sync.Mutex
	nextID    int64
	manifest  map[string]string // key -> error text, "" when loaded
	raws      []model.RawRecord
	markets   map[int64]model.MarketSummary
	contracts map[int64]model.ContractDetail
	metrics   map[model.DailyMetricKey]model.DailyMetric
	migrated  bool
}

func newMemWarehouse() *memWarehouse {
	return &memWarehouse{
		manifest:  make(map[string]string),
		markets:   make(map[int64]model.MarketSummary),
		contracts: make(map[int64]model.ContractDetail),
		metrics:   make(map[model.DailyMetricKey]model.DailyMetric),
	}
}

func (w *memWarehouse) LoadedKeys(context.Context) (map[string]bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]bool, len(w.manifest))
	for k := range w.manifest {
		out[k] = true
	}
	return out, nil
}

func (w *memWarehouse) AppendRaw(_ context.Context, b warehouse.LoadBatch) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if errText, ok := w.manifest[b.Key]; ok && errText == "" {
		return false, nil
	}
	w.manifest[b.Key] = b.Err
	for _, r := range b.Records {
		w.nextID++
		r.RawID = w.nextID
		w.raws = append(w.raws, r)
	}
	return true, nil
}

func (w *memWarehouse) RawRecords(context.Context) ([]model.RawRecord, error) {
	return append([]model.RawRecord(nil), w.raws...), nil
}

func (w *memWarehouse) UpsertMarkets(_ context.Context, markets []model.MarketSummary) (int64, error) {
	var n int64
	for _, m := range markets {
		if cur, ok := w.markets[m.MarketID]; ok && cur.LastUpdated.After(m.LastUpdated) {
			continue
		}
		w.markets[m.MarketID] = m
		n++
	}
	return n, nil
}

func (w *memWarehouse) ReplaceContracts(_ context.Context, contracts []model.ContractDetail) (int64, int64, error) {
	var written int64
	keep := make(map[int64]bool, len(contracts))
	for _, c := range contracts {
		keep[c.ContractID] = true
		if cur, ok := w.contracts[c.ContractID]; ok && cur.LastUpdated.After(c.LastUpdated) {
			continue
		}
		w.contracts[c.ContractID] = c
		written++
	}
	var deleted int64
	for id := range w.contracts {
		if !keep[id] {
			delete(w.contracts, id)
			deleted++
		}
	}
	return written, deleted, nil
}

func (w *memWarehouse) MarketSummaries(context.Context) ([]model.MarketSummary, error) {
	out := make([]model.MarketSummary, 0, len(w.markets))
	for _, m := range w.markets {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarketID < out[j].MarketID })
	return out, nil
}

func (w *memWarehouse) ContractDetails(context.Context) ([]model.ContractDetail, error) {
	out := make([]model.ContractDetail, 0, len(w.contracts))
	for _, c := range w.contracts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContractID < out[j].ContractID })
	return out, nil
}

func (w *memWarehouse) UpsertDailyMetrics(_ context.Context, metrics []model.DailyMetric) (int64, error) {
	for _, m := range metrics {
		w.metrics[m.Key()] = m
	}
	return int64(len(metrics)), nil
}

func (w *memWarehouse) PruneRaw(context.Context) (int64, error) {
	latest := make(map[int64]model.RawRecord)
	for _, r := range w.raws {
		if cur, ok := latest[r.MarketID]; !ok || transform.Newer(r, cur) {
			latest[r.MarketID] = r
		}
	}
	var kept []model.RawRecord
	for _, r := range w.raws {
		if latest[r.MarketID].RawID == r.RawID {
			kept = append(kept, r)
		}
	}
	n := int64(len(w.raws) - len(kept))
	w.raws = kept
	return n, nil
}

func (w *memWarehouse) CountRaw(context.Context) (int64, error) {
	return int64(len(w.raws)), nil
}

func (w *memWarehouse) CountRawMissingNames(context.Context) (int64, error) {
	var n int64
	for _, r := range w.raws {
		if r.Name == "" {
			n++
		}
	}
	return n, nil
}

func (w *memWarehouse) SampleRaw(_ context.Context, limit int) ([]model.RawSample, error) {
	var out []model.RawSample
	for i := len(w.raws) - 1; i >= 0 && len(out) < limit; i-- {
		r := w.raws[i]
		out = append(out, model.RawSample{RawID: r.RawID, MarketID: r.MarketID, Name: r.Name, Status: r.Status, ExtractedAt: r.ExtractedAt})
	}
	return out, nil
}

// Metrics are keyed by (market, date) so the map cannot hold duplicates.
func (w *memWarehouse) CountDuplicateMetrics(context.Context) (int64, error) {
	return 0, nil
}

func (w *memWarehouse) Migrate(context.Context) error {
	w.migrated = true
	return nil
}

func (w *memWarehouse) Ping(context.Context) error { return nil }

func newTestPipeline(t *testing.T, handler http.HandlerFunc, pruneRaw bool) (*Pipeline, *memWarehouse) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	wh := newMemWarehouse()

	client := api.NewClient(server.URL, "", api.WithRetries(0, time.Millisecond), api.WithLogger(logger))
	ex := extract.New(client, store, extract.Config{Prefix: "predictit/raw", FilePrefix: "predictit_markets", Compression: "zstd"}, logger)
	ld := loader.New(store, wh, "predictit/raw", 2, logger)
	runner := transform.NewRunner(wh, transform.Options{}, logger)

	return New(ex, ld, runner, wh, pruneRaw, logger), wh
}

func serveFeed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(feed))
}

func TestPipelineRun(t *testing.T) {
	p, wh := newTestPipeline(t, serveFeed, true)
	ctx := context.Background()

	res, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Landed.Markets != 2 {
		t.Errorf("landed markets = %d, want 2", res.Landed.Markets)
	}
	if res.Load.Loaded != 1 || res.Load.Rows != 2 {
		t.Errorf("load = %+v, want one object with two rows", res.Load)
	}
	if res.Transform.Markets.Written != 2 || res.Transform.Contracts.Written != 3 || res.Transform.Metrics.Written != 2 {
		t.Errorf("transform = %+v", res.Transform)
	}
	if res.Quality.RawRows != 2 || res.Quality.MissingNames != 1 {
		t.Errorf("quality = %+v, want 2 raw rows with 1 unnamed", res.Quality)
	}

	m := wh.metrics[model.DailyMetricKey{MarketID: 1, MetricDate: res.Transform.MetricDate.Format(time.DateOnly)}]
	if m.TotalContracts != 2 || m.PricedContracts != 1 || m.AvgTradePrice.String() != "0.45" || !m.PriceVolatility.IsZero() {
		t.Errorf("market 1 metric = %+v", m)
	}
	if got := wh.contracts[20].LastTradePrice.Decimal.String(); got != "0.999" {
		t.Errorf("contract 20 price = %s, want 0.999", got)
	}

	t.Run("rerun keeps one metric per market and day", func(t *testing.T) {
		before, _ := wh.MarketSummaries(ctx)
		if _, err := p.Run(ctx); err != nil {
			t.Fatalf("second Run: %v", err)
		}
		after, _ := wh.MarketSummaries(ctx)

		if len(wh.metrics) != 2 {
			t.Errorf("metrics = %d, want 2", len(wh.metrics))
		}
		if len(after) != len(before) {
			t.Errorf("markets = %d, want %d", len(after), len(before))
		}
		// Pruning leaves one raw row per market.
		if len(wh.raws) != 2 {
			t.Errorf("raw rows = %d, want 2", len(wh.raws))
		}
	})
}

func TestPipelineStages(t *testing.T) {
	p, wh := newTestPipeline(t, serveFeed, false)
	ctx := context.Background()

	if err := p.Migrate(ctx); err != nil || !wh.migrated {
		t.Fatalf("Migrate: %v", err)
	}

	if _, err := p.Check(ctx); !errors.Is(err, quality.ErrNoRawRows) {
		t.Errorf("Check on empty warehouse = %v, want ErrNoRawRows", err)
	}

	landed, err := p.Extract(ctx)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(wh.raws) != 0 {
		t.Error("Extract wrote to the warehouse")
	}

	res, err := p.Load(ctx, landed.Key)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Loaded != 1 {
		t.Errorf("Loaded = %d, want 1", res.Loaded)
	}

	if _, err := p.Transform(ctx); err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if len(wh.markets) != 2 {
		t.Errorf("markets = %d, want 2", len(wh.markets))
	}

	n, err := p.Prune(ctx)
	if err != nil || n != 0 {
		t.Errorf("Prune = %d, %v; want nothing to prune", n, err)
	}
}

func TestPipelineRunStopsOnExtractError(t *testing.T) {
	p, wh := newTestPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}, true)

	_, err := p.Run(context.Background())
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Run error = %v, want APIError", err)
	}
	if len(wh.manifest) != 0 || len(wh.markets) != 0 {
		t.Error("failed extract still touched the warehouse")
	}
}

func TestPipelineRunFailsQualityOnEmptyFeed(t *testing.T) {
	p, _ := newTestPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"markets":[]}`))
	}, false)

	_, err := p.Run(context.Background())
	if !errors.Is(err, quality.ErrNoRawRows) {
		t.Errorf("Run error = %v, want ErrNoRawRows", err)
	}
}
