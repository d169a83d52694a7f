package memory

import (
	"context"
	"math/big"
	"sort"

	"launchpad-indexer/internal/domain"
	"launchpad-indexer/internal/storage"
)

// holderStore is the in-memory implementation of storage.HolderStore.
type holderStore struct {
	s *Store
}

func (hs *holderStore) Get(_ context.Context, token, wallet string) (*domain.Holder, error) {
	hs.s.mu.RLock()
	defer hs.s.mu.RUnlock()

	h, ok := hs.s.holders[holderKey(token, wallet)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return h.Clone(), nil
}

func (hs *holderStore) Upsert(_ context.Context, h *domain.Holder) error {
	if h == nil || h.TokenAddress == "" || h.Wallet == "" {
		return storage.ErrInvalidInput
	}

	hs.s.mu.Lock()
	defer hs.s.mu.Unlock()

	hs.s.holders[holderKey(h.TokenAddress, h.Wallet)] = h.Clone()
	return nil
}

func (hs *holderStore) Delete(_ context.Context, token, wallet string) error {
	hs.s.mu.Lock()
	defer hs.s.mu.Unlock()

	delete(hs.s.holders, holderKey(token, wallet))
	return nil
}

func (hs *holderStore) CountByToken(_ context.Context, token string) (int64, error) {
	hs.s.mu.RLock()
	defer hs.s.mu.RUnlock()

	var count int64
	for _, h := range hs.s.holders {
		if h.TokenAddress == token {
			count++
		}
	}
	return count, nil
}

func (hs *holderStore) ListByToken(_ context.Context, token string, limit int) ([]*domain.Holder, error) {
	hs.s.mu.RLock()
	defer hs.s.mu.RUnlock()

	var result []*domain.Holder
	for _, h := range hs.s.holders {
		if h.TokenAddress == token {
			result = append(result, h.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		cmp := result[i].Balance.Cmp(result[j].Balance)
		if cmp != 0 {
			return cmp > 0
		}
		return result[i].Wallet < result[j].Wallet
	})

	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (hs *holderStore) SumBalances(_ context.Context, token string) (*big.Int, error) {
	hs.s.mu.RLock()
	defer hs.s.mu.RUnlock()

	sum := new(big.Int)
	for _, h := range hs.s.holders {
		if h.TokenAddress == token && h.Balance != nil {
			sum.Add(sum, h.Balance)
		}
	}
	return sum, nil
}

var _ storage.HolderStore = (*holderStore)(nil)
