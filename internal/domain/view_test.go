package domain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTokenViewRendersDecimalStrings(t *testing.T) {
	sold, _ := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457", 10)
	tok := &Token{
		Address:     "0xt",
		Symbol:      "TST",
		TotalSupply: big.NewInt(1_000_000),
		SoldSupply:  sold,
	}

	v := NewTokenView(tok)
	assert.Equal(t, "1000000", v.TotalSupply)
	assert.Equal(t, sold.String(), v.SoldSupply)
	// Unset aggregates render as zero, not empty.
	assert.Equal(t, "0", v.MarketCap)
	assert.Equal(t, "0", v.Volume24h)
}

func TestNewHolderViewZeroBalance(t *testing.T) {
	h := &Holder{
		TokenAddress: "0xt",
		Wallet:       "0xw",
		Balance:      big.NewInt(0),
		TotalBought:  big.NewInt(100),
		TotalSold:    big.NewInt(100),
	}

	v := NewHolderView(h)
	assert.Equal(t, "0", v.Balance)
	assert.Equal(t, "100", v.TotalSold)
}

func TestNewPriceBarView(t *testing.T) {
	b := NewPriceBar("0xt", Interval5m, 300_000, big.NewInt(7), big.NewInt(3))

	v := NewPriceBarView(b)
	assert.Equal(t, "5m", v.Interval)
	assert.Equal(t, int64(300_000), v.BucketStart)
	assert.Equal(t, "7", v.Open)
	assert.Equal(t, "3", v.Volume)
}
