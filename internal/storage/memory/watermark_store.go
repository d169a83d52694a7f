package memory

import (
	"context"
	"time"

	"launchpad-indexer/internal/domain"
	"launchpad-indexer/internal/storage"
)

// watermarkStore is the in-memory implementation of storage.WatermarkStore.
type watermarkStore struct {
	s *Store
}

func (ws *watermarkStore) Get(_ context.Context, source string) (*domain.Watermark, error) {
	ws.s.mu.RLock()
	defer ws.s.mu.RUnlock()

	w, ok := ws.s.watermarks[source]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *w
	return &c, nil
}

func (ws *watermarkStore) Save(_ context.Context, w *domain.Watermark) error {
	if w == nil || w.Source == "" {
		return storage.ErrInvalidInput
	}

	ws.s.mu.Lock()
	defer ws.s.mu.Unlock()

	// Watermarks never move backwards through Save.
	if cur, ok := ws.s.watermarks[w.Source]; ok && cur.LastBlock > w.LastBlock {
		return nil
	}
	c := *w
	ws.s.watermarks[w.Source] = &c
	return nil
}

func (ws *watermarkStore) Reset(_ context.Context, source string, block uint64) error {
	if source == "" {
		return storage.ErrInvalidInput
	}

	ws.s.mu.Lock()
	defer ws.s.mu.Unlock()

	ws.s.watermarks[source] = &domain.Watermark{
		Source:    source,
		LastBlock: block,
		SyncedAt:  time.Now().UnixMilli(),
	}
	return nil
}

var _ storage.WatermarkStore = (*watermarkStore)(nil)
