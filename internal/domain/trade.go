package domain

import "math/big"

// Trade is an immutable append-only row keyed by (tx_hash, log_index).
// That pair is the idempotency key: re-delivering the same chain event
// must not produce a second row.
type Trade struct {
	TxHash       string
	LogIndex     uint32
	TokenAddress string
	Trader       string
	Side         string // "buy" | "sell"

	AmountIn  *big.Int // wei for buys, tokens for sells
	AmountOut *big.Int // tokens for buys, wei for sells
	Price     *big.Int // wei per whole token, scaled by 1e18
	FeeAmount *big.Int

	BlockNumber uint64
	BlockHash   string
	Timestamp   int64 // unix ms
}

// Trade side constants
const (
	TradeSideBuy  = "buy"
	TradeSideSell = "sell"
)

// EthMagnitude returns the absolute ETH-equivalent size of the trade:
// amount in for buys, amount out for sells. Never negative.
func (t *Trade) EthMagnitude() *big.Int {
	if t.Side == TradeSideBuy {
		return cloneBig(t.AmountIn)
	}
	return cloneBig(t.AmountOut)
}

// Clone returns a deep copy of the trade.
func (t *Trade) Clone() *Trade {
	c := *t
	c.AmountIn = cloneBig(t.AmountIn)
	c.AmountOut = cloneBig(t.AmountOut)
	c.Price = cloneBig(t.Price)
	c.FeeAmount = cloneBig(t.FeeAmount)
	return &c
}
