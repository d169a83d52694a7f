package domain

import "math/big"

// Views are the presentation-boundary shapes carried inside fanout
// envelopes and read-endpoint responses. On-chain quantities are
// rendered as decimal strings here and nowhere else; stored aggregates
// never leave integer arithmetic.

// TokenView is the wire shape of a token row.
type TokenView struct {
	Address      string `json:"address"`
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	Creator      string `json:"creator"`
	BondingCurve string `json:"bondingCurve"`
	TotalSupply  string `json:"totalSupply"`
	CurveSupply  string `json:"curveSupply"`
	SoldSupply   string `json:"soldSupply"`
	Migrated     bool   `json:"migrated"`
	MigratedAt   int64  `json:"migratedAt,omitempty"`
	DexPair      string `json:"dexPair,omitempty"`
	MarketCap    string `json:"marketCap"`
	Volume24h    string `json:"volume24h"`
	Volume7d     string `json:"volume7d"`
	VolumeTotal  string `json:"volumeTotal"`
	HolderCount  int64  `json:"holderCount"`
	CreatedAt    int64  `json:"createdAt"`
	UpdatedAt    int64  `json:"updatedAt"`
}

// NewTokenView converts a token row for presentation.
func NewTokenView(t *Token) TokenView {
	return TokenView{
		Address:      t.Address,
		Name:         t.Name,
		Symbol:       t.Symbol,
		Creator:      t.Creator,
		BondingCurve: t.BondingCurve,
		TotalSupply:  bigString(t.TotalSupply),
		CurveSupply:  bigString(t.CurveSupply),
		SoldSupply:   bigString(t.SoldSupply),
		Migrated:     t.Migrated,
		MigratedAt:   t.MigratedAt,
		DexPair:      t.DexPair,
		MarketCap:    bigString(t.MarketCap),
		Volume24h:    bigString(t.Volume24h),
		Volume7d:     bigString(t.Volume7d),
		VolumeTotal:  bigString(t.VolumeTotal),
		HolderCount:  t.HolderCount,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

// TradeView is the wire shape of a trade row.
type TradeView struct {
	TxHash       string `json:"txHash"`
	LogIndex     uint32 `json:"logIndex"`
	TokenAddress string `json:"tokenAddress"`
	Trader       string `json:"trader"`
	Side         string `json:"side"`
	AmountIn     string `json:"amountIn"`
	AmountOut    string `json:"amountOut"`
	Price        string `json:"price"`
	FeeAmount    string `json:"feeAmount"`
	BlockNumber  uint64 `json:"blockNumber"`
	Timestamp    int64  `json:"timestamp"`
}

// NewTradeView converts a trade row for presentation.
func NewTradeView(t *Trade) TradeView {
	return TradeView{
		TxHash:       t.TxHash,
		LogIndex:     t.LogIndex,
		TokenAddress: t.TokenAddress,
		Trader:       t.Trader,
		Side:         t.Side,
		AmountIn:     bigString(t.AmountIn),
		AmountOut:    bigString(t.AmountOut),
		Price:        bigString(t.Price),
		FeeAmount:    bigString(t.FeeAmount),
		BlockNumber:  t.BlockNumber,
		Timestamp:    t.Timestamp,
	}
}

// HolderView is the wire shape of a holder row.
type HolderView struct {
	TokenAddress  string `json:"tokenAddress"`
	Wallet        string `json:"wallet"`
	Balance       string `json:"balance"`
	TotalBought   string `json:"totalBought"`
	TotalSold     string `json:"totalSold"`
	FirstBoughtAt int64  `json:"firstBoughtAt"`
	LastActivity  int64  `json:"lastActivity"`
}

// NewHolderView converts a holder row for presentation. Exited holders
// (deleted rows) are rendered with a zero balance.
func NewHolderView(h *Holder) HolderView {
	return HolderView{
		TokenAddress:  h.TokenAddress,
		Wallet:        h.Wallet,
		Balance:       bigString(h.Balance),
		TotalBought:   bigString(h.TotalBought),
		TotalSold:     bigString(h.TotalSold),
		FirstBoughtAt: h.FirstBoughtAt,
		LastActivity:  h.LastActivity,
	}
}

// PriceBarView is the wire shape of one OHLCV bar.
type PriceBarView struct {
	TokenAddress string `json:"tokenAddress"`
	Interval     string `json:"interval"`
	BucketStart  int64  `json:"bucketStart"`
	Open         string `json:"open"`
	High         string `json:"high"`
	Low          string `json:"low"`
	Close        string `json:"close"`
	Volume       string `json:"volume"`
}

// NewPriceBarView converts a bar for presentation.
func NewPriceBarView(b *PriceBar) PriceBarView {
	return PriceBarView{
		TokenAddress: b.TokenAddress,
		Interval:     string(b.Interval),
		BucketStart:  b.BucketStart,
		Open:         bigString(b.Open),
		High:         bigString(b.High),
		Low:          bigString(b.Low),
		Close:        bigString(b.Close),
		Volume:       bigString(b.Volume),
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
