package warehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rickgao/predictit-etl/internal/model"
)

// LoadBatch is everything normalized from one storage object. A non-empty
// Err marks an object that could not be read; it is recorded in the manifest
// without rows.
type LoadBatch struct {
	Key       string
	LoadID    uuid.UUID
	LoadedAt  time.Time
	Documents int
	Warnings  int
	Records   []model.RawRecord
	Err       string
}

var rawColumns = []string{
	"market_id",
	"market_name",
	"short_name",
	"url",
	"status",
	"contract_data",
	"extraction_timestamp",
	"loaded_at",
	"load_id",
	"source_key",
}

// rawRow converts a record into COPY values in rawColumns order.
func rawRow(r model.RawRecord, loadID uuid.UUID, loadedAt time.Time, key string) ([]any, error) {
	contracts := r.Contracts
	if contracts == nil {
		contracts = []model.ContractRecord{}
	}
	data, err := json.Marshal(contracts)
	if err != nil {
		return nil, fmt.Errorf("encode contracts for market %d: %w", r.MarketID, err)
	}

	status := r.Status
	if status == "" {
		status = model.StatusUnknown
	}

	return []any{
		r.MarketID,
		nullText(r.Name),
		nullText(r.ShortName),
		nullText(r.URL),
		status,
		json.RawMessage(data),
		r.ExtractedAt,
		loadedAt,
		pgtype.UUID{Bytes: loadID, Valid: true},
		key,
	}, nil
}

// AppendRaw records b.Key in the manifest and copies its rows into the raw
// table in one transaction. It returns false without writing anything when
// the key was already loaded successfully; a key recorded as failed is
// overwritten by the new attempt.
func (s *Store) AppendRaw(ctx context.Context, b LoadBatch) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin load: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, s.q(`
		INSERT INTO {raw}.load_manifest AS m
			(object_key, load_id, loaded_at, documents, markets, warnings, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (object_key) DO UPDATE SET
			load_id   = EXCLUDED.load_id,
			loaded_at = EXCLUDED.loaded_at,
			documents = EXCLUDED.documents,
			markets   = EXCLUDED.markets,
			warnings  = EXCLUDED.warnings,
			error     = EXCLUDED.error
		WHERE m.error IS NOT NULL
	`), b.Key, pgtype.UUID{Bytes: b.LoadID, Valid: true}, b.LoadedAt, b.Documents, len(b.Records), b.Warnings, nullText(b.Err))
	if err != nil {
		return false, fmt.Errorf("insert manifest row: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return false, nil
	}

	if b.Err != "" {
		if err := tx.Commit(ctx); err != nil {
			return false, fmt.Errorf("commit failed load: %w", err)
		}
		s.logger.Debug("recorded failed object", "key", b.Key, "error", b.Err)
		return true, nil
	}

	rows := make([][]any, 0, len(b.Records))
	for _, r := range b.Records {
		row, err := rawRow(r, b.LoadID, b.LoadedAt, b.Key)
		if err != nil {
			return false, err
		}
		rows = append(rows, row)
	}

	copied, err := tx.CopyFrom(ctx, pgx.Identifier{s.rawSchema, rawTable}, rawColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return false, fmt.Errorf("copy raw rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit load: %w", err)
	}

	s.logger.Debug("appended raw rows", "key", b.Key, "rows", copied, "load_id", b.LoadID)
	return true, nil
}

// LoadedKeys returns every object key recorded in the manifest, including
// objects recorded as failed.
func (s *Store) LoadedKeys(ctx context.Context) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, s.q(`SELECT object_key FROM {raw}.load_manifest`))
	if err != nil {
		return nil, fmt.Errorf("query manifest: %w", err)
	}

	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan manifest: %w", err)
	}

	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out, nil
}

// RawRecords returns every raw row, oldest first.
func (s *Store) RawRecords(ctx context.Context) ([]model.RawRecord, error) {
	rows, err := s.pool.Query(ctx, s.q(`
		SELECT raw_id, market_id, market_name, short_name, url, status, contract_data,
		       extraction_timestamp, loaded_at, load_id, source_key
		FROM {raw}.predictit_raw
		ORDER BY raw_id
	`))
	if err != nil {
		return nil, fmt.Errorf("query raw records: %w", err)
	}
	defer rows.Close()

	var out []model.RawRecord
	for rows.Next() {
		var (
			r                    model.RawRecord
			name, shortName, url pgtype.Text
			data                 []byte
			loadID               pgtype.UUID
		)
		if err := rows.Scan(&r.RawID, &r.MarketID, &name, &shortName, &url, &r.Status, &data,
			&r.ExtractedAt, &r.LoadedAt, &loadID, &r.SourceKey); err != nil {
			return nil, fmt.Errorf("scan raw record: %w", err)
		}

		r.Name, r.ShortName, r.URL = name.String, shortName.String, url.String
		r.LoadID = uuid.UUID(loadID.Bytes)
		r.ExtractedAt = r.ExtractedAt.UTC()
		r.LoadedAt = r.LoadedAt.UTC()

		if err := json.Unmarshal(data, &r.Contracts); err != nil {
			return nil, fmt.Errorf("decode contracts of raw row %d: %w", r.RawID, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw records: %w", err)
	}

	return out, nil
}

// pruneRawSQL deletes every raw row except the newest per market_id, using
// the same recency order as the projections.
const pruneRawSQL = `
	DELETE FROM {raw}.predictit_raw r
	USING (
		SELECT raw_id,
		       ROW_NUMBER() OVER (
		           PARTITION BY market_id
		           ORDER BY extraction_timestamp DESC, loaded_at DESC, raw_id DESC
		       ) AS rn
		FROM {raw}.predictit_raw
	) ranked
	WHERE r.raw_id = ranked.raw_id
	  AND ranked.rn > 1
`

// PruneRaw keeps only the newest raw row per market and returns the number
// of rows deleted.
func (s *Store) PruneRaw(ctx context.Context) (int64, error) {
	ct, err := s.pool.Exec(ctx, s.q(pruneRawSQL))
	if err != nil {
		return 0, fmt.Errorf("prune raw: %w", err)
	}
	return ct.RowsAffected(), nil
}
