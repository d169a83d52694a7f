package syncer

import (
	"context"
	"log/slog"
	"time"

	"launchpad-indexer/internal/domain"
	"launchpad-indexer/internal/observability"
	"launchpad-indexer/internal/storage"
)

// Default retention horizons. Coarse intervals are kept forever; only
// the sub-hour bars are bounded.
var DefaultRetention = map[domain.Interval]time.Duration{
	domain.Interval1m:  7 * 24 * time.Hour,
	domain.Interval5m:  30 * 24 * time.Hour,
	domain.Interval15m: 90 * 24 * time.Hour,
}

// DefaultPruneInterval is how often retention runs.
const DefaultPruneInterval = time.Hour

// Pruner deletes price bars past their retention horizon on a slow
// tick. Trades are never pruned; bars are derivable and safe to drop.
type Pruner struct {
	bars      storage.PriceBarStore
	logger    *slog.Logger
	interval  time.Duration
	retention map[domain.Interval]time.Duration
	nowFn     func() time.Time
}

// NewPruner creates a pruner with the default horizons when retention
// is nil.
func NewPruner(bars storage.PriceBarStore, retention map[domain.Interval]time.Duration, interval time.Duration, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	if retention == nil {
		retention = DefaultRetention
	}
	if interval <= 0 {
		interval = DefaultPruneInterval
	}
	return &Pruner{
		bars:      bars,
		logger:    logger.With("component", "pruner"),
		interval:  interval,
		retention: retention,
		nowFn:     time.Now,
	}
}

// Run prunes on a slow ticker until the context is cancelled.
func (p *Pruner) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.PruneOnce(ctx)
		}
	}
}

// PruneOnce applies every retention horizon once.
func (p *Pruner) PruneOnce(ctx context.Context) {
	now := p.nowFn().UnixMilli()

	for interval, horizon := range p.retention {
		cutoff := now - horizon.Milliseconds()
		removed, err := p.bars.PruneBefore(ctx, interval, cutoff)
		if err != nil {
			p.logger.Error("prune bars failed",
				"interval", interval, "error", err)
			continue
		}
		if removed > 0 {
			observability.RecordBarsPruned(string(interval), removed)
			p.logger.Info("pruned bars",
				"interval", interval, "removed", removed)
		}
	}
}
