package memory

import (
	"context"
	"sort"

	"launchpad-indexer/internal/domain"
	"launchpad-indexer/internal/storage"
)

// priceBarStore is the in-memory implementation of storage.PriceBarStore.
type priceBarStore struct {
	s *Store
}

func (ps *priceBarStore) Get(_ context.Context, token string, interval domain.Interval, bucketStart int64) (*domain.PriceBar, error) {
	ps.s.mu.RLock()
	defer ps.s.mu.RUnlock()

	b, ok := ps.s.bars[barKey(token, interval, bucketStart)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return b.Clone(), nil
}

func (ps *priceBarStore) Upsert(_ context.Context, b *domain.PriceBar) error {
	if b == nil || b.TokenAddress == "" || !b.Interval.Valid() {
		return storage.ErrInvalidInput
	}

	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()

	ps.s.bars[barKey(b.TokenAddress, b.Interval, b.BucketStart)] = b.Clone()
	return nil
}

func (ps *priceBarStore) Series(_ context.Context, token string, interval domain.Interval, from, to int64) ([]*domain.PriceBar, error) {
	ps.s.mu.RLock()
	defer ps.s.mu.RUnlock()

	var result []*domain.PriceBar
	for _, b := range ps.s.bars {
		if b.TokenAddress == token && b.Interval == interval &&
			b.BucketStart >= from && b.BucketStart <= to {
			result = append(result, b.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].BucketStart < result[j].BucketStart
	})
	return result, nil
}

func (ps *priceBarStore) PruneBefore(_ context.Context, interval domain.Interval, cutoff int64) (int64, error) {
	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()

	var removed int64
	for key, b := range ps.s.bars {
		if b.Interval == interval && b.BucketStart < cutoff {
			delete(ps.s.bars, key)
			removed++
		}
	}
	return removed, nil
}

var _ storage.PriceBarStore = (*priceBarStore)(nil)
