package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Table names inside the configured schemas.
const (
	rawTable      = "predictit_raw"
	manifestTable = "load_manifest"
	marketTable   = "market_summary"
	contractTable = "contract_details"
	metricsTable  = "daily_market_metrics"
)

// Store reads and writes the warehouse tables.
type Store struct {
	pool      *pgxpool.Pool
	rawSchema string
	anaSchema string
	sql       *strings.Replacer
	logger    *slog.Logger
}

// New creates a Store over pool. Schema names are quoted as identifiers.
func New(pool *pgxpool.Pool, rawSchema, analyticsSchema string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		pool:      pool,
		rawSchema: rawSchema,
		anaSchema: analyticsSchema,
		sql:       schemaReplacer(rawSchema, analyticsSchema),
		logger:    logger,
	}
}

// schemaReplacer substitutes {raw} and {analytics} with quoted identifiers.
func schemaReplacer(rawSchema, analyticsSchema string) *strings.Replacer {
	return strings.NewReplacer(
		"{raw}", pgx.Identifier{rawSchema}.Sanitize(),
		"{analytics}", pgx.Identifier{analyticsSchema}.Sanitize(),
	)
}

func (s *Store) q(query string) string {
	return s.sql.Replace(query)
}

// Ping checks the underlying pool.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping warehouse: %w", err)
	}
	return nil
}

// sendBatch runs batch inside tx and returns the summed RowsAffected.
func sendBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) (int64, error) {
	results := tx.SendBatch(ctx, batch)

	var affected int64
	for i := 0; i < batch.Len(); i++ {
		ct, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, fmt.Errorf("batch statement %d: %w", i, err)
		}
		affected += ct.RowsAffected()
	}

	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", err)
	}
	return affected, nil
}

// nullText maps "" to SQL NULL.
func nullText(s string) any {
	if s == "" {
		return nil
	}
	return s
}
