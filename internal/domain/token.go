package domain

import "math/big"

// Token represents one launched token and its derived aggregates.
// Corresponds to the tokens table in PostgreSQL.
// Created once on a launch event and mutated by every subsequent
// trade/migration event for the same address; never deleted.
type Token struct {
	Address      string // token contract address, unique key
	Name         string
	Symbol       string
	Creator      string
	BondingCurve string // bonding curve contract trading this token

	TotalSupply *big.Int
	CurveSupply *big.Int // portion of supply sellable through the curve
	SoldSupply  *big.Int // cumulative tokens sold by the curve; monotonically non-decreasing

	Migrated   bool
	MigratedAt int64  // unix ms, 0 until migrated
	DexPair    string // DEX pair address after migration

	MarketCap   *big.Int
	Volume24h   *big.Int
	Volume7d    *big.Int
	VolumeTotal *big.Int
	HolderCount int64

	CreatedAt int64 // unix ms
	UpdatedAt int64 // unix ms
}

// Clone returns a deep copy of the token.
func (t *Token) Clone() *Token {
	c := *t
	c.TotalSupply = cloneBig(t.TotalSupply)
	c.CurveSupply = cloneBig(t.CurveSupply)
	c.SoldSupply = cloneBig(t.SoldSupply)
	c.MarketCap = cloneBig(t.MarketCap)
	c.Volume24h = cloneBig(t.Volume24h)
	c.Volume7d = cloneBig(t.Volume7d)
	c.VolumeTotal = cloneBig(t.VolumeTotal)
	return &c
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
