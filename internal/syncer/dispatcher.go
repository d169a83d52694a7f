package syncer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"launchpad-indexer/internal/domain"
	"launchpad-indexer/internal/fanout"
	"launchpad-indexer/internal/observability"
)

// Publisher is the hub surface the dispatcher publishes through.
type Publisher interface {
	Publish(topic string, env fanout.Envelope)
	PublishToWallet(wallet string, env fanout.Envelope)
}

// Invalidator drops cached read results whose keys share a prefix.
type Invalidator interface {
	Invalidate(prefix string) int
}

// Dispatcher delivers projector notifications to the fanout hub and
// expires the cached reads they make stale. It is the only piece that
// knows both sides, keeping the projector free of socket and cache
// dependencies.
type Dispatcher struct {
	hub    Publisher
	cache  Invalidator
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher. Either sink may be nil.
func NewDispatcher(hub Publisher, cache Invalidator, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		hub:    hub,
		cache:  cache,
		logger: logger.With("component", "dispatcher"),
	}
}

// Compile-time interface check.
var _ NotificationSink = (*Dispatcher)(nil)

// Dispatch publishes the notifications in emission order, then
// invalidates the affected cache prefixes once per entity.
func (d *Dispatcher) Dispatch(_ context.Context, notifications []domain.Notification) {
	now := time.Now().UnixMilli()

	for _, n := range notifications {
		if d.hub != nil {
			env := fanout.Envelope{
				Type:      n.Type,
				Data:      n.Data,
				Timestamp: now,
			}
			if wallet, ok := strings.CutPrefix(n.Topic, "wallet:"); ok {
				d.hub.PublishToWallet(wallet, env)
			} else {
				d.hub.Publish(n.Topic, env)
			}
			observability.RecordPublish(topicKind(n.Topic), 1)
		}

		d.invalidate(n)
	}
}

// invalidate maps one notification to the cache key prefixes it makes
// stale. Listing and stats results aggregate across tokens, so entity
// mutations expire those too.
func (d *Dispatcher) invalidate(n domain.Notification) {
	if d.cache == nil {
		return
	}

	switch n.Type {
	case domain.NotifyTokenNew:
		d.cache.Invalidate("tokens:")
		d.cache.Invalidate("stats")
	case domain.NotifyTokenUpdate:
		d.cache.Invalidate("token:" + n.Entity)
		d.cache.Invalidate("tokens:")
		d.cache.Invalidate("stats")
	case domain.NotifyTradeNew:
		d.cache.Invalidate("trades:" + n.Entity)
	case domain.NotifyPriceUpdate:
		d.cache.Invalidate("ohlcv:" + n.Entity)
	case domain.NotifyHolderUpdate:
		d.cache.Invalidate("holders:" + n.Entity)
	}
}

// topicKind collapses a topic to a low-cardinality metric label.
func topicKind(topic string) string {
	switch {
	case strings.HasPrefix(topic, "token:"):
		return "token"
	case strings.HasPrefix(topic, "wallet:"):
		return "wallet"
	case strings.HasPrefix(topic, "platform:"):
		return "platform"
	default:
		return "other"
	}
}
