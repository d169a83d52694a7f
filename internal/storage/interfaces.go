package storage

import (
	"context"
	"math/big"

	"launchpad-indexer/internal/domain"
)

// TokenStore provides access to tokens storage.
type TokenStore interface {
	// Insert adds a new token. Returns ErrDuplicateKey if the address exists.
	Insert(ctx context.Context, t *domain.Token) error

	// Get retrieves a token by address. Returns ErrNotFound if not exists.
	Get(ctx context.Context, address string) (*domain.Token, error)

	// Update replaces the mutable fields of an existing token.
	// Returns ErrNotFound if the address does not exist.
	Update(ctx context.Context, t *domain.Token) error

	// List retrieves tokens ordered by created_at DESC with pagination.
	List(ctx context.Context, limit, offset int) ([]*domain.Token, error)

	// ListUnmigrated retrieves all tokens still trading on their curve.
	ListUnmigrated(ctx context.Context) ([]*domain.Token, error)

	// Count returns the total number of tokens.
	Count(ctx context.Context) (int64, error)
}

// TradeStore provides access to trades storage. Trades are append-only.
type TradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if
	// (tx_hash, log_index) exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// Exists reports whether a trade with the idempotency key exists.
	Exists(ctx context.Context, txHash string, logIndex uint32) (bool, error)

	// ListByToken retrieves trades for a token ordered by
	// (timestamp DESC, log_index DESC) with pagination.
	ListByToken(ctx context.Context, token string, limit, offset int) ([]*domain.Trade, error)

	// SumVolumeSince returns the sum of absolute ETH-equivalent trade
	// magnitudes for a token with timestamp >= since. Never negative.
	SumVolumeSince(ctx context.Context, token string, since int64) (*big.Int, error)
}

// HolderStore provides access to holders storage.
type HolderStore interface {
	// Get retrieves a holder row. Returns ErrNotFound if not exists.
	Get(ctx context.Context, token, wallet string) (*domain.Holder, error)

	// Upsert inserts or replaces the holder row for (token, wallet).
	Upsert(ctx context.Context, h *domain.Holder) error

	// Delete removes the holder row. Deleting a missing row is a no-op.
	Delete(ctx context.Context, token, wallet string) error

	// CountByToken returns the number of holder rows for a token.
	// All stored rows have balance > 0.
	CountByToken(ctx context.Context, token string) (int64, error)

	// ListByToken retrieves holders ordered by balance DESC.
	ListByToken(ctx context.Context, token string, limit int) ([]*domain.Holder, error)

	// SumBalances returns the sum of holder balances for a token.
	SumBalances(ctx context.Context, token string) (*big.Int, error)
}

// PriceBarStore provides access to OHLCV bar storage.
type PriceBarStore interface {
	// Get retrieves one bar. Returns ErrNotFound if not exists.
	Get(ctx context.Context, token string, interval domain.Interval, bucketStart int64) (*domain.PriceBar, error)

	// Upsert inserts or replaces the bar for its composite key.
	Upsert(ctx context.Context, b *domain.PriceBar) error

	// Series retrieves bars for [from, to] ordered by bucket_start ASC.
	Series(ctx context.Context, token string, interval domain.Interval, from, to int64) ([]*domain.PriceBar, error)

	// PruneBefore deletes bars of the interval older than cutoff and
	// returns the number removed. Retention only; trades are never pruned.
	PruneBefore(ctx context.Context, interval domain.Interval, cutoff int64) (int64, error)
}

// WatermarkStore provides the per-source sync cursor.
type WatermarkStore interface {
	// Get retrieves the watermark for a source. Returns ErrNotFound if
	// the source has never synced.
	Get(ctx context.Context, source string) (*domain.Watermark, error)

	// Save upserts the watermark. The stored last_block never moves
	// backwards: saving a lower block than the current value is a no-op.
	Save(ctx context.Context, w *domain.Watermark) error

	// Reset forces the watermark to a specific block, allowing it to
	// move backwards. Administrative resync only.
	Reset(ctx context.Context, source string, block uint64) error
}

// Store aggregates all stores plus transactional composition. WithTx
// runs fn against a store view bound to a single transaction; every
// mutation made through that view commits or rolls back atomically.
// Calling WithTx on a view already inside a transaction joins the
// enclosing transaction.
type Store interface {
	Tokens() TokenStore
	Trades() TradeStore
	Holders() HolderStore
	PriceBars() PriceBarStore
	Watermarks() WatermarkStore

	WithTx(ctx context.Context, fn func(tx Store) error) error
}
