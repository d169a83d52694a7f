package memory

import (
	"context"
	"math/big"
	"sort"

	"launchpad-indexer/internal/domain"
	"launchpad-indexer/internal/storage"
)

// tradeStore is the in-memory implementation of storage.TradeStore.
type tradeStore struct {
	s *Store
}

func (ts *tradeStore) Insert(_ context.Context, t *domain.Trade) error {
	if t == nil || t.TxHash == "" || t.TokenAddress == "" {
		return storage.ErrInvalidInput
	}

	ts.s.mu.Lock()
	defer ts.s.mu.Unlock()

	key := tradeKey(t.TxHash, t.LogIndex)
	if _, exists := ts.s.trades[key]; exists {
		return storage.ErrDuplicateKey
	}
	ts.s.trades[key] = t.Clone()
	return nil
}

func (ts *tradeStore) Exists(_ context.Context, txHash string, logIndex uint32) (bool, error) {
	ts.s.mu.RLock()
	defer ts.s.mu.RUnlock()

	_, ok := ts.s.trades[tradeKey(txHash, logIndex)]
	return ok, nil
}

func (ts *tradeStore) ListByToken(_ context.Context, token string, limit, offset int) ([]*domain.Trade, error) {
	ts.s.mu.RLock()
	defer ts.s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range ts.s.trades {
		if t.TokenAddress == token {
			result = append(result, t.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp > result[j].Timestamp
		}
		return result[i].LogIndex > result[j].LogIndex
	})

	return paginate(result, limit, offset), nil
}

func (ts *tradeStore) SumVolumeSince(_ context.Context, token string, since int64) (*big.Int, error) {
	ts.s.mu.RLock()
	defer ts.s.mu.RUnlock()

	sum := new(big.Int)
	for _, t := range ts.s.trades {
		if t.TokenAddress == token && t.Timestamp >= since {
			sum.Add(sum, t.EthMagnitude())
		}
	}
	return sum, nil
}

var _ storage.TradeStore = (*tradeStore)(nil)
