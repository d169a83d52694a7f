package postgres

import (
	"context"
	"fmt"
	"time"

	"launchpad-indexer/internal/domain"
	"launchpad-indexer/internal/storage"
)

// WatermarkStore implements storage.WatermarkStore using PostgreSQL.
type WatermarkStore struct {
	q querier
}

// Compile-time interface check.
var _ storage.WatermarkStore = (*WatermarkStore)(nil)

// Get retrieves the watermark for a source. Returns ErrNotFound if the
// source has never synced.
func (s *WatermarkStore) Get(ctx context.Context, source string) (*domain.Watermark, error) {
	var w domain.Watermark
	err := s.q.QueryRow(ctx,
		`SELECT source, last_block, synced_at FROM sync_watermarks WHERE source = $1`,
		source,
	).Scan(&w.Source, &w.LastBlock, &w.SyncedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get watermark: %w", err)
	}
	return &w, nil
}

// Save upserts the watermark. GREATEST keeps the stored cursor
// monotonic even if two writers race.
func (s *WatermarkStore) Save(ctx context.Context, w *domain.Watermark) error {
	query := `
		INSERT INTO sync_watermarks (source, last_block, synced_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (source) DO UPDATE SET
			last_block = GREATEST(sync_watermarks.last_block, EXCLUDED.last_block),
			synced_at = EXCLUDED.synced_at
	`

	_, err := s.q.Exec(ctx, query, w.Source, w.LastBlock, w.SyncedAt)
	if err != nil {
		return fmt.Errorf("save watermark: %w", err)
	}
	return nil
}

// Reset forces the watermark to a specific block, allowing it to move
// backwards. Administrative resync only.
func (s *WatermarkStore) Reset(ctx context.Context, source string, block uint64) error {
	query := `
		INSERT INTO sync_watermarks (source, last_block, synced_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (source) DO UPDATE SET
			last_block = EXCLUDED.last_block,
			synced_at = EXCLUDED.synced_at
	`

	_, err := s.q.Exec(ctx, query, source, block, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("reset watermark: %w", err)
	}
	return nil
}
