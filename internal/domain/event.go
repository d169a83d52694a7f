package domain

import "math/big"

// EventRef identifies one chain event. (TxHash, LogIndex) is the
// idempotency key used to make re-delivery safe.
type EventRef struct {
	TxHash      string
	LogIndex    uint32
	BlockNumber uint64
	BlockHash   string
	Timestamp   int64 // unix ms, resolved from the containing block
}

// ChainEvent is one decoded launchpad event ready for projection.
type ChainEvent interface {
	Ref() EventRef
}

// TokenLaunched is emitted by the launch factory when a token and its
// bonding curve are deployed.
type TokenLaunched struct {
	EventRef

	Token        string
	Creator      string
	BondingCurve string
	Name         string
	Symbol       string
	TotalSupply  *big.Int
	CurveSupply  *big.Int
}

func (e *TokenLaunched) Ref() EventRef { return e.EventRef }

// TokensPurchased is emitted by a bonding curve on a buy.
type TokensPurchased struct {
	EventRef

	Token     string
	Buyer     string
	EthIn     *big.Int
	TokensOut *big.Int
	NewPrice  *big.Int // curve's posted price after the trade, 1e18-scaled
	Fee       *big.Int
}

func (e *TokensPurchased) Ref() EventRef { return e.EventRef }

// TokensSold is emitted by a bonding curve on a sell.
type TokensSold struct {
	EventRef

	Token    string
	Seller   string
	TokensIn *big.Int
	EthOut   *big.Int
	NewPrice *big.Int
	Fee      *big.Int
}

func (e *TokensSold) Ref() EventRef { return e.EventRef }

// TokenMigrated is emitted when a curve graduates its token to a DEX
// pair. The curve stops trading and is dropped from future sync polls.
type TokenMigrated struct {
	EventRef

	Token     string
	DexPair   string
	Liquidity *big.Int
}

func (e *TokenMigrated) Ref() EventRef { return e.EventRef }
