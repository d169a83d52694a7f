package domain

import (
	"math/big"
	"time"
)

// Interval identifies one OHLCV aggregation granularity.
type Interval string

// Tracked candle intervals.
const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
	Interval1w  Interval = "1w"
)

// Intervals lists every tracked interval in ascending duration order.
var Intervals = []Interval{
	Interval1m, Interval5m, Interval15m,
	Interval1h, Interval4h, Interval1d, Interval1w,
}

var intervalDurations = map[Interval]time.Duration{
	Interval1m:  time.Minute,
	Interval5m:  5 * time.Minute,
	Interval15m: 15 * time.Minute,
	Interval1h:  time.Hour,
	Interval4h:  4 * time.Hour,
	Interval1d:  24 * time.Hour,
	Interval1w:  7 * 24 * time.Hour,
}

// Duration returns the interval's bucket width, or 0 for an unknown interval.
func (i Interval) Duration() time.Duration {
	return intervalDurations[i]
}

// Valid reports whether the interval is one of the tracked set.
func (i Interval) Valid() bool {
	_, ok := intervalDurations[i]
	return ok
}

// BucketStart truncates a unix-millisecond timestamp down to the start
// of its bucket for this interval.
func (i Interval) BucketStart(tsMs int64) int64 {
	width := int64(i.Duration() / time.Millisecond)
	if width <= 0 {
		return tsMs
	}
	return tsMs - tsMs%width
}

// PriceBar is one OHLCV aggregate, keyed by
// (token_address, interval, bucket_start). Upserted incrementally as
// trades arrive. Invariant: low <= open <= high and low <= close <= high.
type PriceBar struct {
	TokenAddress string
	Interval     Interval
	BucketStart  int64 // unix ms, bucket-aligned

	Open   *big.Int
	High   *big.Int
	Low    *big.Int
	Close  *big.Int
	Volume *big.Int // sum of absolute ETH-equivalent trade magnitudes
}

// ApplyTrade folds one trade price/magnitude into the bar using
// high=max, low=min, close=last, volume+=magnitude semantics.
func (b *PriceBar) ApplyTrade(price, ethMagnitude *big.Int) {
	if b.High == nil || price.Cmp(b.High) > 0 {
		b.High = new(big.Int).Set(price)
	}
	if b.Low == nil || price.Cmp(b.Low) < 0 {
		b.Low = new(big.Int).Set(price)
	}
	b.Close = new(big.Int).Set(price)
	if b.Volume == nil {
		b.Volume = new(big.Int)
	}
	b.Volume = new(big.Int).Add(b.Volume, ethMagnitude)
}

// NewPriceBar opens a fresh bar at the trade's price with open-on-create
// semantics.
func NewPriceBar(token string, interval Interval, bucketStart int64, price, ethMagnitude *big.Int) *PriceBar {
	return &PriceBar{
		TokenAddress: token,
		Interval:     interval,
		BucketStart:  bucketStart,
		Open:         new(big.Int).Set(price),
		High:         new(big.Int).Set(price),
		Low:          new(big.Int).Set(price),
		Close:        new(big.Int).Set(price),
		Volume:       new(big.Int).Set(ethMagnitude),
	}
}

// Clone returns a deep copy of the bar.
func (b *PriceBar) Clone() *PriceBar {
	c := *b
	c.Open = cloneBig(b.Open)
	c.High = cloneBig(b.High)
	c.Low = cloneBig(b.Low)
	c.Close = cloneBig(b.Close)
	c.Volume = cloneBig(b.Volume)
	return &c
}
