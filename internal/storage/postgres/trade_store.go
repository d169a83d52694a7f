package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"

	"launchpad-indexer/internal/domain"
	"launchpad-indexer/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL. Trades are
// append-only; there is no update path.
type TradeStore struct {
	q querier
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	tx_hash, log_index, token_address, trader, side,
	amount_in::text, amount_out::text, price::text, fee_amount::text,
	block_number, block_hash, ts
`

// Insert adds a new trade. Returns ErrDuplicateKey if
// (tx_hash, log_index) exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	query := `
		INSERT INTO trades (
			tx_hash, log_index, token_address, trader, side,
			amount_in, amount_out, price, fee_amount,
			block_number, block_hash, ts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.q.Exec(ctx, query,
		t.TxHash,
		t.LogIndex,
		t.TokenAddress,
		t.Trader,
		t.Side,
		bigArg(t.AmountIn),
		bigArg(t.AmountOut),
		bigArg(t.Price),
		bigArg(t.FeeAmount),
		t.BlockNumber,
		t.BlockHash,
		t.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// Exists reports whether a trade with the idempotency key exists.
func (s *TradeStore) Exists(ctx context.Context, txHash string, logIndex uint32) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM trades WHERE tx_hash = $1 AND log_index = $2)`,
		txHash, logIndex,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check trade exists: %w", err)
	}
	return exists, nil
}

// ListByToken retrieves trades for a token ordered by
// (ts DESC, log_index DESC) with pagination.
func (s *TradeStore) ListByToken(ctx context.Context, token string, limit, offset int) ([]*domain.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE token_address = $1
		ORDER BY ts DESC, log_index DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.q.Query(ctx, query, token, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list trades by token: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// SumVolumeSince returns the sum of absolute ETH-equivalent trade
// magnitudes for a token with timestamp >= since.
func (s *TradeStore) SumVolumeSince(ctx context.Context, token string, since int64) (*big.Int, error) {
	query := `
		SELECT COALESCE(SUM(
			CASE WHEN side = 'buy' THEN amount_in ELSE amount_out END
		), 0)::text
		FROM trades
		WHERE token_address = $1 AND ts >= $2
	`

	var sum string
	if err := s.q.QueryRow(ctx, query, token, since).Scan(&sum); err != nil {
		return nil, fmt.Errorf("sum volume since: %w", err)
	}
	return parseBig(sum)
}

// scanTrade scans a single row into a Trade.
func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var (
		t                               domain.Trade
		amountIn, amountOut, price, fee string
	)

	err := row.Scan(
		&t.TxHash,
		&t.LogIndex,
		&t.TokenAddress,
		&t.Trader,
		&t.Side,
		&amountIn,
		&amountOut,
		&price,
		&fee,
		&t.BlockNumber,
		&t.BlockHash,
		&t.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	if t.AmountIn, err = parseBig(amountIn); err != nil {
		return nil, err
	}
	if t.AmountOut, err = parseBig(amountOut); err != nil {
		return nil, err
	}
	if t.Price, err = parseBig(price); err != nil {
		return nil, err
	}
	if t.FeeAmount, err = parseBig(fee); err != nil {
		return nil, err
	}
	return &t, nil
}

// scanTrades scans multiple rows into a slice of Trade.
func scanTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}
