// Package store persists price and baseline snapshots to PostgreSQL via
// pgx.
package store

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a connection pool against connStr and verifies it with a
// ping.
func Connect(ctx context.Context, connStr string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	log.Println("store: connected to PostgreSQL")
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema applies the schemaSQL DDL below, which is idempotent (CREATE
// TABLE IF NOT EXISTS).
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("store: init schema: %w", err)
	}
	return nil
}

// SavePriceSnapshot records one rolling-window price estimate.
func (s *Store) SavePriceSnapshot(ctx context.Context, observedAt float64, priceUSD, confidence float64, windowTxCount int) error {
	const q = `
		INSERT INTO price_snapshot (observed_at, price_usd, confidence, window_tx_count)
		VALUES (to_timestamp($1), $2, $3, $4)
	`
	_, err := s.pool.Exec(ctx, q, observedAt, priceUSD, confidence, windowTxCount)
	if err != nil {
		return fmt.Errorf("store: save price snapshot: %w", err)
	}
	return nil
}

// SaveBaselineSnapshot records one baseline recomputation.
func (s *Store) SaveBaselineSnapshot(ctx context.Context, blockHeight int64, priceUSD, priceMin, priceMax, confidence float64, numTx int) error {
	const q = `
		INSERT INTO baseline_snapshot (block_height, price_usd, price_min, price_max, confidence, num_transactions, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (block_height) DO UPDATE
		SET price_usd = EXCLUDED.price_usd, price_min = EXCLUDED.price_min,
		    price_max = EXCLUDED.price_max, confidence = EXCLUDED.confidence,
		    num_transactions = EXCLUDED.num_transactions, computed_at = EXCLUDED.computed_at
	`
	_, err := s.pool.Exec(ctx, q, blockHeight, priceUSD, priceMin, priceMax, confidence, numTx)
	if err != nil {
		return fmt.Errorf("store: save baseline snapshot: %w", err)
	}
	return nil
}

// SaveBatchResult records one completed batch (historical date/range) run.
func (s *Store) SaveBatchResult(ctx context.Context, startHeight, endHeight int64, priceUSD, confidence float64, acceptedTxCount int) error {
	const q = `
		INSERT INTO batch_result (start_height, end_height, price_usd, confidence, accepted_tx_count, computed_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`
	_, err := s.pool.Exec(ctx, q, startHeight, endHeight, priceUSD, confidence, acceptedTxCount)
	if err != nil {
		return fmt.Errorf("store: save batch result: %w", err)
	}
	return nil
}

// RecentPriceSnapshots returns the most recent n price snapshots, newest
// first.
func (s *Store) RecentPriceSnapshots(ctx context.Context, n int) ([]PriceSnapshot, error) {
	const q = `
		SELECT extract(epoch from observed_at), price_usd, confidence, window_tx_count
		FROM price_snapshot
		ORDER BY observed_at DESC
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent price snapshots: %w", err)
	}
	defer rows.Close()
	return scanPriceSnapshots(rows)
}

// PriceSnapshotsSince returns every price snapshot observed at or after
// sinceUnix, oldest first. Backs the `GET /history?since=...` REST
// endpoint and the WS historical_request message.
func (s *Store) PriceSnapshotsSince(ctx context.Context, sinceUnix float64) ([]PriceSnapshot, error) {
	const q = `
		SELECT extract(epoch from observed_at), price_usd, confidence, window_tx_count
		FROM price_snapshot
		WHERE observed_at >= to_timestamp($1)
		ORDER BY observed_at ASC
	`
	rows, err := s.pool.Query(ctx, q, sinceUnix)
	if err != nil {
		return nil, fmt.Errorf("store: price snapshots since: %w", err)
	}
	defer rows.Close()
	return scanPriceSnapshots(rows)
}

func scanPriceSnapshots(rows pgx.Rows) ([]PriceSnapshot, error) {
	var out []PriceSnapshot
	for rows.Next() {
		var snap PriceSnapshot
		if err := rows.Scan(&snap.ObservedAt, &snap.PriceUSD, &snap.Confidence, &snap.WindowTxCount); err != nil {
			return nil, fmt.Errorf("store: scan price snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// PriceSnapshot is one row of price_snapshot.
type PriceSnapshot struct {
	ObservedAt    float64
	PriceUSD      float64
	Confidence    float64
	WindowTxCount int
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS price_snapshot (
	id              BIGSERIAL PRIMARY KEY,
	observed_at     TIMESTAMPTZ NOT NULL,
	price_usd       DOUBLE PRECISION NOT NULL,
	confidence      DOUBLE PRECISION NOT NULL,
	window_tx_count INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_price_snapshot_observed_at ON price_snapshot (observed_at DESC);

CREATE TABLE IF NOT EXISTS baseline_snapshot (
	block_height     BIGINT PRIMARY KEY,
	price_usd        DOUBLE PRECISION NOT NULL,
	price_min        DOUBLE PRECISION NOT NULL,
	price_max        DOUBLE PRECISION NOT NULL,
	confidence       DOUBLE PRECISION NOT NULL,
	num_transactions INTEGER NOT NULL,
	computed_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS batch_result (
	id                BIGSERIAL PRIMARY KEY,
	start_height      BIGINT NOT NULL,
	end_height        BIGINT NOT NULL,
	price_usd         DOUBLE PRECISION NOT NULL,
	confidence        DOUBLE PRECISION NOT NULL,
	accepted_tx_count INTEGER NOT NULL,
	computed_at       TIMESTAMPTZ NOT NULL
);
`
