package postgres

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchpad-indexer/internal/domain"
	"launchpad-indexer/internal/storage"
)

const (
	testToken  = "0x1111111111111111111111111111111111111111"
	testWallet = "0x3333333333333333333333333333333333333333"
)

// big256 returns a value wider than 64 bits to exercise the NUMERIC
// round trip.
func big256() *big.Int {
	v, _ := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457", 10)
	return v
}

func sampleToken(addr string) *domain.Token {
	return &domain.Token{
		Address:      addr,
		Name:         "Test Token",
		Symbol:       "TEST",
		Creator:      testWallet,
		BondingCurve: "0x2222222222222222222222222222222222222222",
		TotalSupply:  big256(),
		CurveSupply:  big.NewInt(800),
		SoldSupply:   big.NewInt(0),
		MarketCap:    big.NewInt(0),
		Volume24h:    big.NewInt(0),
		Volume7d:     big.NewInt(0),
		VolumeTotal:  big.NewInt(0),
		CreatedAt:    1000,
		UpdatedAt:    1000,
	}
}

func sampleTrade(txHash string, logIndex uint32, side string, ts int64) *domain.Trade {
	t := &domain.Trade{
		TxHash:       txHash,
		LogIndex:     logIndex,
		TokenAddress: testToken,
		Trader:       testWallet,
		Side:         side,
		AmountIn:     big.NewInt(500),
		AmountOut:    big.NewInt(1000),
		Price:        big.NewInt(42),
		FeeAmount:    big.NewInt(1),
		BlockNumber:  10,
		BlockHash:    "0xb10c",
		Timestamp:    ts,
	}
	if side == domain.TradeSideSell {
		t.AmountIn, t.AmountOut = t.AmountOut, t.AmountIn
	}
	return t
}

func TestTokenStoreRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStore(pool)

	token := sampleToken(testToken)
	require.NoError(t, store.Tokens().Insert(ctx, token))

	// Duplicate insert maps to the sentinel.
	assert.ErrorIs(t, store.Tokens().Insert(ctx, sampleToken(testToken)), storage.ErrDuplicateKey)

	got, err := store.Tokens().Get(ctx, testToken)
	require.NoError(t, err)
	assert.Equal(t, token.Symbol, got.Symbol)
	assert.Equal(t, 0, token.TotalSupply.Cmp(got.TotalSupply), "256-bit supply survives NUMERIC round trip")

	// Mutable fields update.
	got.SoldSupply = big256()
	got.Migrated = true
	got.DexPair = "0xdex"
	got.UpdatedAt = 2000
	require.NoError(t, store.Tokens().Update(ctx, got))

	got2, err := store.Tokens().Get(ctx, testToken)
	require.NoError(t, err)
	assert.True(t, got2.Migrated)
	assert.Equal(t, 0, big256().Cmp(got2.SoldSupply))

	_, err = store.Tokens().Get(ctx, "0xmissing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenStoreListOrder(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStore(pool)

	for i, addr := range []string{"0xaa", "0xbb", "0xcc"} {
		tok := sampleToken(addr)
		tok.CreatedAt = int64(1000 + i)
		tok.Migrated = addr == "0xbb"
		require.NoError(t, store.Tokens().Insert(ctx, tok))
	}

	listed, err := store.Tokens().List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, "0xcc", listed[0].Address, "newest first")

	unmigrated, err := store.Tokens().ListUnmigrated(ctx)
	require.NoError(t, err)
	require.Len(t, unmigrated, 2)

	count, err := store.Tokens().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestTradeStoreIdempotencyKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStore(pool)

	trade := sampleTrade("0xaaa", 0, domain.TradeSideBuy, 1000)
	require.NoError(t, store.Trades().Insert(ctx, trade))

	assert.ErrorIs(t, store.Trades().Insert(ctx, trade), storage.ErrDuplicateKey)

	// Same hash, different log index is a distinct trade.
	require.NoError(t, store.Trades().Insert(ctx, sampleTrade("0xaaa", 1, domain.TradeSideSell, 2000)))

	exists, err := store.Trades().Exists(ctx, "0xaaa", 0)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = store.Trades().Exists(ctx, "0xaaa", 9)
	require.NoError(t, err)
	assert.False(t, exists)

	trades, err := store.Trades().ListByToken(ctx, testToken, 10, 0)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, uint32(1), trades[0].LogIndex, "newest first")
	assert.Equal(t, 0, big.NewInt(42).Cmp(trades[0].Price))
}

func TestTradeStoreSumVolumeSince(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStore(pool)

	// Buy counts amount_in, sell counts amount_out; both are 500 here.
	require.NoError(t, store.Trades().Insert(ctx, sampleTrade("0xaaa", 0, domain.TradeSideBuy, 1000)))
	require.NoError(t, store.Trades().Insert(ctx, sampleTrade("0xbbb", 0, domain.TradeSideSell, 2000)))
	require.NoError(t, store.Trades().Insert(ctx, sampleTrade("0xccc", 0, domain.TradeSideBuy, 3000)))

	sum, err := store.Trades().SumVolumeSince(ctx, testToken, 2000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), sum.Int64(), "window excludes the first trade")

	sum, err = store.Trades().SumVolumeSince(ctx, testToken, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), sum.Int64())

	sum, err = store.Trades().SumVolumeSince(ctx, "0xmissing", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), sum.Int64(), "empty window sums to zero")
}

func TestHolderStoreLifecycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStore(pool)

	holder := &domain.Holder{
		TokenAddress:  testToken,
		Wallet:        testWallet,
		Balance:       big.NewInt(1000),
		TotalBought:   big.NewInt(1000),
		TotalSold:     big.NewInt(0),
		FirstBoughtAt: 1000,
		LastActivity:  1000,
	}
	require.NoError(t, store.Holders().Upsert(ctx, holder))

	// Upsert replaces in place.
	holder.Balance = big.NewInt(600)
	holder.TotalSold = big.NewInt(400)
	holder.LastActivity = 2000
	require.NoError(t, store.Holders().Upsert(ctx, holder))

	got, err := store.Holders().Get(ctx, testToken, testWallet)
	require.NoError(t, err)
	assert.Equal(t, int64(600), got.Balance.Int64())
	assert.Equal(t, int64(1000), got.FirstBoughtAt, "first buy timestamp is immutable")

	count, err := store.Holders().CountByToken(ctx, testToken)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	sum, err := store.Holders().SumBalances(ctx, testToken)
	require.NoError(t, err)
	assert.Equal(t, int64(600), sum.Int64())

	require.NoError(t, store.Holders().Delete(ctx, testToken, testWallet))
	_, err = store.Holders().Get(ctx, testToken, testWallet)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Deleting again is a no-op.
	require.NoError(t, store.Holders().Delete(ctx, testToken, testWallet))
}

func TestPriceBarStoreUpsertAndSeries(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStore(pool)

	bar := domain.NewPriceBar(testToken, domain.Interval1m, 60_000, big.NewInt(10), big.NewInt(5))
	require.NoError(t, store.PriceBars().Upsert(ctx, bar))

	bar.ApplyTrade(big.NewInt(20), big.NewInt(5))
	require.NoError(t, store.PriceBars().Upsert(ctx, bar))

	got, err := store.PriceBars().Get(ctx, testToken, domain.Interval1m, 60_000)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Open.Int64())
	assert.Equal(t, int64(20), got.High.Int64())
	assert.Equal(t, int64(20), got.Close.Int64())
	assert.Equal(t, int64(10), got.Volume.Int64())

	require.NoError(t, store.PriceBars().Upsert(ctx,
		domain.NewPriceBar(testToken, domain.Interval1m, 120_000, big.NewInt(30), big.NewInt(1))))
	require.NoError(t, store.PriceBars().Upsert(ctx,
		domain.NewPriceBar(testToken, domain.Interval1h, 0, big.NewInt(40), big.NewInt(1))))

	series, err := store.PriceBars().Series(ctx, testToken, domain.Interval1m, 0, 200_000)
	require.NoError(t, err)
	require.Len(t, series, 2, "other intervals excluded")
	assert.Equal(t, int64(60_000), series[0].BucketStart, "ascending bucket order")

	removed, err := store.PriceBars().PruneBefore(ctx, domain.Interval1m, 100_000)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestWatermarkStoreMonotonic(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStore(pool)

	_, err := store.Watermarks().Get(ctx, "LaunchFactory")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Watermarks().Save(ctx, &domain.Watermark{
		Source: "LaunchFactory", LastBlock: 100, SyncedAt: 1000,
	}))

	// A lower block never regresses the cursor.
	require.NoError(t, store.Watermarks().Save(ctx, &domain.Watermark{
		Source: "LaunchFactory", LastBlock: 50, SyncedAt: 2000,
	}))
	w, err := store.Watermarks().Get(ctx, "LaunchFactory")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), w.LastBlock)

	// Reset is the administrative override that may move backwards.
	require.NoError(t, store.Watermarks().Reset(ctx, "LaunchFactory", 10))
	w, err = store.Watermarks().Get(ctx, "LaunchFactory")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), w.LastBlock)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStore(pool)

	sentinel := errors.New("abort")
	err := store.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.Tokens().Insert(ctx, sampleToken(testToken)); err != nil {
			return err
		}
		if err := tx.Trades().Insert(ctx, sampleTrade("0xaaa", 0, domain.TradeSideBuy, 1000)); err != nil {
			return err
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	_, err = store.Tokens().Get(ctx, testToken)
	assert.ErrorIs(t, err, storage.ErrNotFound, "insert rolled back")
	exists, err := store.Trades().Exists(ctx, "0xaaa", 0)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWithTxCommitsAndJoinsNested(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStore(pool)

	err := store.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.Tokens().Insert(ctx, sampleToken(testToken)); err != nil {
			return err
		}
		// The nested call joins the open transaction: its writes are
		// visible to the outer scope and commit together.
		return tx.WithTx(ctx, func(inner storage.Store) error {
			return inner.Trades().Insert(ctx, sampleTrade("0xaaa", 0, domain.TradeSideBuy, 1000))
		})
	})
	require.NoError(t, err)

	_, err = store.Tokens().Get(ctx, testToken)
	require.NoError(t, err)
	exists, err := store.Trades().Exists(ctx, "0xaaa", 0)
	require.NoError(t, err)
	assert.True(t, exists)
}
