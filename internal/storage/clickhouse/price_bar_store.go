package clickhouse

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"launchpad-indexer/internal/domain"
	"launchpad-indexer/internal/storage"
)

// PriceBarStore implements storage.PriceBarStore on ClickHouse. Bars
// are written as new ReplacingMergeTree versions; reads collapse them
// with FINAL. Quantities are stored as decimal strings so 256-bit
// values survive the round trip.
type PriceBarStore struct {
	conn *Conn
}

// NewPriceBarStore creates a new PriceBarStore.
func NewPriceBarStore(conn *Conn) *PriceBarStore {
	return &PriceBarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceBarStore = (*PriceBarStore)(nil)

// Get retrieves one bar. Returns ErrNotFound if not exists.
func (s *PriceBarStore) Get(ctx context.Context, token string, interval domain.Interval, bucketStart int64) (*domain.PriceBar, error) {
	query := `
		SELECT token_address, bar_interval, bucket_start, open, high, low, close, volume
		FROM price_bars FINAL
		WHERE token_address = ? AND bar_interval = ? AND bucket_start = ?
	`

	rows, err := s.conn.Query(ctx, query, token, string(interval), bucketStart)
	if err != nil {
		return nil, fmt.Errorf("get price bar: %w", err)
	}
	defer rows.Close()

	bars, err := scanBars(rows)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, storage.ErrNotFound
	}
	return bars[0], nil
}

// Upsert writes the bar as a fresh version for its composite key.
func (s *PriceBarStore) Upsert(ctx context.Context, b *domain.PriceBar) error {
	query := `
		INSERT INTO price_bars (
			token_address, bar_interval, bucket_start,
			open, high, low, close, volume, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query,
		b.TokenAddress,
		string(b.Interval),
		b.BucketStart,
		barString(b.Open),
		barString(b.High),
		barString(b.Low),
		barString(b.Close),
		barString(b.Volume),
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert price bar: %w", err)
	}
	return nil
}

// Series retrieves bars for [from, to] ordered by bucket_start ASC.
func (s *PriceBarStore) Series(ctx context.Context, token string, interval domain.Interval, from, to int64) ([]*domain.PriceBar, error) {
	query := `
		SELECT token_address, bar_interval, bucket_start, open, high, low, close, volume
		FROM price_bars FINAL
		WHERE token_address = ? AND bar_interval = ?
		  AND bucket_start >= ? AND bucket_start <= ?
		ORDER BY bucket_start ASC
	`

	rows, err := s.conn.Query(ctx, query, token, string(interval), from, to)
	if err != nil {
		return nil, fmt.Errorf("query bar series: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// PruneBefore deletes bars of the interval older than cutoff via a
// lightweight delete mutation.
func (s *PriceBarStore) PruneBefore(ctx context.Context, interval domain.Interval, cutoff int64) (int64, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count(*) FROM price_bars FINAL WHERE bar_interval = ? AND bucket_start < ?`,
		string(interval), cutoff,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count prunable bars: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	err = s.conn.Exec(ctx,
		`DELETE FROM price_bars WHERE bar_interval = ? AND bucket_start < ?`,
		string(interval), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("prune price bars: %w", err)
	}
	return int64(count), nil
}

func barString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// scanBars scans multiple rows into a slice of PriceBar.
func scanBars(rows driver.Rows) ([]*domain.PriceBar, error) {
	var bars []*domain.PriceBar

	for rows.Next() {
		var (
			b        domain.PriceBar
			interval string
			ohlcv    [5]string
		)
		err := rows.Scan(
			&b.TokenAddress, &interval, &b.BucketStart,
			&ohlcv[0], &ohlcv[1], &ohlcv[2], &ohlcv[3], &ohlcv[4],
		)
		if err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}
		b.Interval = domain.Interval(interval)

		fields := []**big.Int{&b.Open, &b.High, &b.Low, &b.Close, &b.Volume}
		for i, raw := range ohlcv {
			v, ok := new(big.Int).SetString(raw, 10)
			if !ok {
				return nil, fmt.Errorf("parse bar value %q", raw)
			}
			*fields[i] = v
		}
		bars = append(bars, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}

	return bars, nil
}
