package domain

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketStartAlignment(t *testing.T) {
	// 2026-03-14 12:34:56.789 UTC
	ts := time.Date(2026, 3, 14, 12, 34, 56, 789_000_000, time.UTC).UnixMilli()

	cases := []struct {
		interval Interval
		want     time.Time
	}{
		{Interval1m, time.Date(2026, 3, 14, 12, 34, 0, 0, time.UTC)},
		{Interval5m, time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC)},
		{Interval15m, time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC)},
		{Interval1h, time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)},
		{Interval4h, time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)},
		{Interval1d, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want.UnixMilli(), tc.interval.BucketStart(ts), "interval %s", tc.interval)
	}
}

func TestBucketStartIsIdempotent(t *testing.T) {
	ts := time.Now().UnixMilli()
	for _, interval := range Intervals {
		b := interval.BucketStart(ts)
		assert.Equal(t, b, interval.BucketStart(b), "interval %s", interval)
	}
}

func TestIntervalValid(t *testing.T) {
	for _, interval := range Intervals {
		assert.True(t, interval.Valid())
	}
	assert.False(t, Interval("3m").Valid())
	assert.False(t, Interval("").Valid())
}

func TestNewPriceBarOpensAtTradePrice(t *testing.T) {
	b := NewPriceBar("0xtoken", Interval1m, 60_000, big.NewInt(100), big.NewInt(10))

	assert.Equal(t, "100", b.Open.String())
	assert.Equal(t, "100", b.High.String())
	assert.Equal(t, "100", b.Low.String())
	assert.Equal(t, "100", b.Close.String())
	assert.Equal(t, "10", b.Volume.String())
}

func TestApplyTradeFoldsOHLCV(t *testing.T) {
	b := NewPriceBar("0xtoken", Interval1m, 60_000, big.NewInt(100), big.NewInt(10))

	b.ApplyTrade(big.NewInt(150), big.NewInt(5))
	b.ApplyTrade(big.NewInt(80), big.NewInt(20))
	b.ApplyTrade(big.NewInt(120), big.NewInt(1))

	assert.Equal(t, "100", b.Open.String(), "open never moves")
	assert.Equal(t, "150", b.High.String())
	assert.Equal(t, "80", b.Low.String())
	assert.Equal(t, "120", b.Close.String(), "close is the last price")
	assert.Equal(t, "36", b.Volume.String())

	// OHLC invariant.
	assert.True(t, b.Low.Cmp(b.Open) <= 0 && b.Open.Cmp(b.High) <= 0)
	assert.True(t, b.Low.Cmp(b.Close) <= 0 && b.Close.Cmp(b.High) <= 0)
}

func TestPriceBarCloneIsDeep(t *testing.T) {
	b := NewPriceBar("0xtoken", Interval1m, 60_000, big.NewInt(100), big.NewInt(10))
	c := b.Clone()

	c.ApplyTrade(big.NewInt(999), big.NewInt(1))

	require.Equal(t, "100", b.High.String())
	assert.Equal(t, "999", c.High.String())
}
