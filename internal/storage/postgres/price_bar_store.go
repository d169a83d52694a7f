package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"launchpad-indexer/internal/domain"
	"launchpad-indexer/internal/storage"
)

// PriceBarStore implements storage.PriceBarStore using PostgreSQL.
type PriceBarStore struct {
	q querier
}

// Compile-time interface check.
var _ storage.PriceBarStore = (*PriceBarStore)(nil)

const barColumns = `
	token_address, bar_interval, bucket_start,
	open::text, high::text, low::text, close::text, volume::text
`

// Get retrieves one bar. Returns ErrNotFound if not exists.
func (s *PriceBarStore) Get(ctx context.Context, token string, interval domain.Interval, bucketStart int64) (*domain.PriceBar, error) {
	query := `
		SELECT ` + barColumns + `
		FROM price_bars
		WHERE token_address = $1 AND bar_interval = $2 AND bucket_start = $3
	`

	row := s.q.QueryRow(ctx, query, token, string(interval), bucketStart)
	b, err := scanBar(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get price bar: %w", err)
	}
	return b, nil
}

// Upsert inserts or replaces the bar for its composite key.
func (s *PriceBarStore) Upsert(ctx context.Context, b *domain.PriceBar) error {
	query := `
		INSERT INTO price_bars (
			token_address, bar_interval, bucket_start,
			open, high, low, close, volume
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (token_address, bar_interval, bucket_start) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume
	`

	_, err := s.q.Exec(ctx, query,
		b.TokenAddress,
		string(b.Interval),
		b.BucketStart,
		bigArg(b.Open),
		bigArg(b.High),
		bigArg(b.Low),
		bigArg(b.Close),
		bigArg(b.Volume),
	)
	if err != nil {
		return fmt.Errorf("upsert price bar: %w", err)
	}
	return nil
}

// Series retrieves bars for [from, to] ordered by bucket_start ASC.
func (s *PriceBarStore) Series(ctx context.Context, token string, interval domain.Interval, from, to int64) ([]*domain.PriceBar, error) {
	query := `
		SELECT ` + barColumns + `
		FROM price_bars
		WHERE token_address = $1 AND bar_interval = $2
		  AND bucket_start >= $3 AND bucket_start <= $4
		ORDER BY bucket_start ASC
	`

	rows, err := s.q.Query(ctx, query, token, string(interval), from, to)
	if err != nil {
		return nil, fmt.Errorf("query bar series: %w", err)
	}
	defer rows.Close()

	var bars []*domain.PriceBar
	for rows.Next() {
		b, err := scanBar(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}
	return bars, nil
}

// PruneBefore deletes bars of the interval older than cutoff.
func (s *PriceBarStore) PruneBefore(ctx context.Context, interval domain.Interval, cutoff int64) (int64, error) {
	tag, err := s.q.Exec(ctx,
		`DELETE FROM price_bars WHERE bar_interval = $1 AND bucket_start < $2`,
		string(interval), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("prune price bars: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanBar scans a single row into a PriceBar.
func scanBar(row pgx.Row) (*domain.PriceBar, error) {
	var (
		b        domain.PriceBar
		interval string
		ohlcv    [5]string
	)

	err := row.Scan(
		&b.TokenAddress,
		&interval,
		&b.BucketStart,
		&ohlcv[0],
		&ohlcv[1],
		&ohlcv[2],
		&ohlcv[3],
		&ohlcv[4],
	)
	if err != nil {
		return nil, err
	}
	b.Interval = domain.Interval(interval)

	if b.Open, err = parseBig(ohlcv[0]); err != nil {
		return nil, err
	}
	if b.High, err = parseBig(ohlcv[1]); err != nil {
		return nil, err
	}
	if b.Low, err = parseBig(ohlcv[2]); err != nil {
		return nil, err
	}
	if b.Close, err = parseBig(ohlcv[3]); err != nil {
		return nil, err
	}
	if b.Volume, err = parseBig(ohlcv[4]); err != nil {
		return nil, err
	}
	return &b, nil
}
