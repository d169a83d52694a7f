package domain

import "math/big"

// Holder tracks one wallet's position in one token, keyed by
// (token_address, wallet). The row is created on the wallet's first buy
// and deleted when the balance reaches zero; a zero-balance holder row
// must never exist.
type Holder struct {
	TokenAddress string
	Wallet       string

	Balance     *big.Int // invariant: Balance = TotalBought - TotalSold, always >= 0
	TotalBought *big.Int
	TotalSold   *big.Int

	FirstBoughtAt int64 // unix ms
	LastActivity  int64 // unix ms
}

// Clone returns a deep copy of the holder.
func (h *Holder) Clone() *Holder {
	c := *h
	c.Balance = cloneBig(h.Balance)
	c.TotalBought = cloneBig(h.TotalBought)
	c.TotalSold = cloneBig(h.TotalSold)
	return &c
}
