package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"launchpad-indexer/internal/decode"
	"launchpad-indexer/internal/domain"
	"launchpad-indexer/internal/evm"
	"launchpad-indexer/internal/observability"
	"launchpad-indexer/internal/projector"
	"launchpad-indexer/internal/storage"
)

// Default configuration values.
const (
	DefaultTickInterval  = 5 * time.Second
	DefaultBatchBlocks   = 1000
	DefaultConfirmations = 1
	DefaultMaxConcurrent = 8
)

// DecodeFunc turns one raw log into a typed event. Injected so tests
// can feed events without building ABI-encoded hex.
type DecodeFunc func(l evm.Log, timestampMs int64) (domain.ChainEvent, error)

// Applier projects one event and returns the notifications to fan out.
type Applier interface {
	Apply(ctx context.Context, ev domain.ChainEvent) ([]domain.Notification, error)
}

// NotificationSink receives projector notifications after each event
// commits.
type NotificationSink interface {
	Dispatch(ctx context.Context, notifications []domain.Notification)
}

// Options configures a Syncer.
type Options struct {
	Client   evm.Client
	Store    storage.Store
	Registry Registry
	Applier  Applier
	Sink     NotificationSink // optional
	Logger   *slog.Logger

	TickInterval  time.Duration
	BatchBlocks   uint64 // max blocks scanned per source per tick
	Confirmations uint64 // blocks held back from the head
	MaxConcurrent int    // concurrently synced sources
	Decode        DecodeFunc
}

// Syncer runs the per-source incremental sync loop.
type Syncer struct {
	client   evm.Client
	store    storage.Store
	registry Registry
	applier  Applier
	sink     NotificationSink
	logger   *slog.Logger

	tickInterval  time.Duration
	batchBlocks   uint64
	confirmations uint64
	maxConcurrent int
	decode        DecodeFunc
}

// New creates a syncer.
func New(opts Options) *Syncer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Syncer{
		client:        opts.Client,
		store:         opts.Store,
		registry:      opts.Registry,
		applier:       opts.Applier,
		sink:          opts.Sink,
		logger:        logger.With("component", "syncer"),
		tickInterval:  opts.TickInterval,
		batchBlocks:   opts.BatchBlocks,
		confirmations: opts.Confirmations,
		maxConcurrent: opts.MaxConcurrent,
		decode:        opts.Decode,
	}
	if s.tickInterval <= 0 {
		s.tickInterval = DefaultTickInterval
	}
	if s.batchBlocks == 0 {
		s.batchBlocks = DefaultBatchBlocks
	}
	if s.maxConcurrent <= 0 {
		s.maxConcurrent = DefaultMaxConcurrent
	}
	if s.decode == nil {
		s.decode = decode.Decode
	}
	return s
}

// Run ticks until the context is cancelled. The first tick fires
// immediately. Always returns nil on shutdown.
func (s *Syncer) Run(ctx context.Context) error {
	s.logger.Info("syncer started",
		"tick_interval", s.tickInterval,
		"batch_blocks", s.batchBlocks,
		"confirmations", s.confirmations)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		s.Tick(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("syncer stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick syncs every registered source once. Source failures are isolated:
// one failing source never blocks the others, it just leaves its
// watermark where the failure happened.
func (s *Syncer) Tick(ctx context.Context) {
	head, err := s.client.BlockNumber(ctx)
	if err != nil {
		s.logger.Error("fetch chain head", "error", err)
		return
	}
	observability.UpdateChainHead(head)

	if head < s.confirmations {
		return
	}
	safeHead := head - s.confirmations

	sources, err := s.registry.Sources(ctx)
	if err != nil {
		s.logger.Error("derive sources", "error", err)
		return
	}

	var failed atomic.Bool
	g := new(errgroup.Group)
	g.SetLimit(s.maxConcurrent)
	for _, src := range sources {
		src := src
		g.Go(func() error {
			if err := s.syncSource(ctx, src, safeHead); err != nil {
				failed.Store(true)
				observability.RecordSyncError(src.Kind)
				s.logger.Error("sync source failed",
					"source", src.Name, "error", err)
			}
			return nil
		})
	}
	g.Wait()

	if !failed.Load() {
		observability.RecordSyncSuccess(time.Now().Unix())
	}
}

// syncSource advances one source by at most one batch of blocks.
func (s *Syncer) syncSource(ctx context.Context, src Source, head uint64) error {
	started := time.Now()

	from := src.StartBlock
	wm, err := s.store.Watermarks().Get(ctx, src.Name)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		// first scan for this source
	case err != nil:
		return fmt.Errorf("load watermark: %w", err)
	default:
		from = wm.LastBlock + 1
	}

	if from > head {
		return nil
	}
	to := head
	if max := from + s.batchBlocks - 1; to > max {
		to = max
	}

	logs, err := s.client.GetLogs(ctx, evm.FilterQuery{
		Address:   src.Address,
		Topics:    src.Topics,
		FromBlock: from,
		ToBlock:   to,
	})
	if err != nil {
		return fmt.Errorf("get logs [%d, %d]: %w", from, to, err)
	}
	observability.RecordLogsFetched(src.Kind, len(logs))

	sortLogs(logs)

	// Block timestamps repeat across the batch; resolve each block once.
	timestamps := make(map[uint64]int64)

	for _, l := range logs {
		if l.Removed {
			continue
		}

		ts, ok := timestamps[l.BlockNumber]
		if !ok {
			ts, err = s.client.BlockTimestamp(ctx, l.BlockNumber)
			if err != nil {
				if l.BlockNumber > from {
					s.saveWatermark(ctx, src, l.BlockNumber-1)
				}
				return fmt.Errorf("block %d timestamp: %w", l.BlockNumber, err)
			}
			timestamps[l.BlockNumber] = ts
		}

		ev, err := s.decode(l, ts)
		if err != nil {
			observability.RecordMalformedLog()
			s.logger.Warn("skipping undecodable log",
				"source", src.Name, "tx_hash", l.TxHash,
				"log_index", l.LogIndex, "error", err)
			continue
		}

		applyStart := time.Now()
		notifications, err := s.applier.Apply(ctx, ev)
		switch {
		case errors.Is(err, projector.ErrInvariantViolation):
			// Quarantine: record and move on, the event will never
			// apply cleanly no matter how often it is retried.
			observability.RecordEventQuarantined(eventType(ev))
			s.logger.Error("event quarantined",
				"source", src.Name, "tx_hash", l.TxHash,
				"log_index", l.LogIndex, "error", err)
			continue
		case err != nil:
			// Transient failure. Advance the watermark over the fully
			// applied prefix so the retry resumes at the failed block.
			if l.BlockNumber > from {
				s.saveWatermark(ctx, src, l.BlockNumber-1)
			}
			return fmt.Errorf("project %s:%d: %w", l.TxHash, l.LogIndex, err)
		}

		if notifications == nil {
			observability.RecordDuplicateEvent()
			continue
		}
		observability.RecordEventProjected(eventType(ev), time.Since(applyStart).Seconds())

		if s.sink != nil {
			s.sink.Dispatch(ctx, notifications)
		}
	}

	s.saveWatermark(ctx, src, to)
	observability.UpdateWatermark(src.Kind, to)
	observability.RecordSyncBatch(src.Kind, time.Since(started).Seconds())
	return nil
}

// saveWatermark persists the last fully projected block for the source.
// The store keeps the cursor monotonic.
func (s *Syncer) saveWatermark(ctx context.Context, src Source, block uint64) {
	w := &domain.Watermark{
		Source:    src.Name,
		LastBlock: block,
		SyncedAt:  time.Now().UnixMilli(),
	}
	if err := s.store.Watermarks().Save(ctx, w); err != nil {
		s.logger.Error("save watermark",
			"source", src.Name, "block", block, "error", err)
	}
}

// sortLogs orders logs by (block, log index). Nodes return them ordered
// already; sorting keeps projection order deterministic regardless.
func sortLogs(logs []evm.Log) {
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].LogIndex < logs[j].LogIndex
	})
}

func eventType(ev domain.ChainEvent) string {
	switch ev.(type) {
	case *domain.TokenLaunched:
		return "token_launched"
	case *domain.TokensPurchased:
		return "tokens_purchased"
	case *domain.TokensSold:
		return "tokens_sold"
	case *domain.TokenMigrated:
		return "token_migrated"
	default:
		return "unknown"
	}
}
