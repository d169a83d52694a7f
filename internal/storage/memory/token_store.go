package memory

import (
	"context"
	"sort"

	"launchpad-indexer/internal/domain"
	"launchpad-indexer/internal/storage"
)

// tokenStore is the in-memory implementation of storage.TokenStore.
type tokenStore struct {
	s *Store
}

func (ts *tokenStore) Insert(_ context.Context, t *domain.Token) error {
	if t == nil || t.Address == "" {
		return storage.ErrInvalidInput
	}

	ts.s.mu.Lock()
	defer ts.s.mu.Unlock()

	if _, exists := ts.s.tokens[t.Address]; exists {
		return storage.ErrDuplicateKey
	}
	ts.s.tokens[t.Address] = t.Clone()
	return nil
}

func (ts *tokenStore) Get(_ context.Context, address string) (*domain.Token, error) {
	ts.s.mu.RLock()
	defer ts.s.mu.RUnlock()

	t, ok := ts.s.tokens[address]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return t.Clone(), nil
}

func (ts *tokenStore) Update(_ context.Context, t *domain.Token) error {
	if t == nil || t.Address == "" {
		return storage.ErrInvalidInput
	}

	ts.s.mu.Lock()
	defer ts.s.mu.Unlock()

	if _, exists := ts.s.tokens[t.Address]; !exists {
		return storage.ErrNotFound
	}
	ts.s.tokens[t.Address] = t.Clone()
	return nil
}

func (ts *tokenStore) List(_ context.Context, limit, offset int) ([]*domain.Token, error) {
	ts.s.mu.RLock()
	defer ts.s.mu.RUnlock()

	all := make([]*domain.Token, 0, len(ts.s.tokens))
	for _, t := range ts.s.tokens {
		all = append(all, t.Clone())
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt != all[j].CreatedAt {
			return all[i].CreatedAt > all[j].CreatedAt
		}
		return all[i].Address < all[j].Address
	})

	return paginate(all, limit, offset), nil
}

func (ts *tokenStore) ListUnmigrated(_ context.Context) ([]*domain.Token, error) {
	ts.s.mu.RLock()
	defer ts.s.mu.RUnlock()

	var result []*domain.Token
	for _, t := range ts.s.tokens {
		if !t.Migrated {
			result = append(result, t.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Address < result[j].Address
	})
	return result, nil
}

func (ts *tokenStore) Count(_ context.Context) (int64, error) {
	ts.s.mu.RLock()
	defer ts.s.mu.RUnlock()
	return int64(len(ts.s.tokens)), nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

var _ storage.TokenStore = (*tokenStore)(nil)
