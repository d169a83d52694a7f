// Package projector converts decoded chain events into transactional
// storage mutations and outbound notifications. Projection is
// deterministic and idempotent: re-applying an already-projected event
// is a no-op.
package projector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"launchpad-indexer/internal/domain"
	"launchpad-indexer/internal/storage"
)

// ErrInvariantViolation marks an event whose application would corrupt
// a ledger invariant (e.g. negative holder balance). Such events are
// quarantined by the synchronizer, not retried.
var ErrInvariantViolation = errors.New("invariant violation")

// errDuplicateEvent aborts a projection transaction when the event
// turns out to be already applied. Treated as success by Apply.
var errDuplicateEvent = errors.New("event already projected")

// weiScale is the 1e18 fixed-point scale used for price arithmetic.
var weiScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Volume window widths.
const (
	window24h = 24 * time.Hour
	window7d  = 7 * 24 * time.Hour
)

// Options configures a Projector.
type Options struct {
	Store  storage.Store
	Logger *slog.Logger

	// Intervals overrides the tracked candle intervals. Defaults to
	// domain.Intervals.
	Intervals []domain.Interval

	// BarMirror, when set, receives best-effort copies of updated bars
	// after the projection transaction commits (analytics sink).
	BarMirror storage.PriceBarStore
}

// Projector applies chain events to storage.
type Projector struct {
	store     storage.Store
	logger    *slog.Logger
	intervals []domain.Interval
	barMirror storage.PriceBarStore
}

// New creates a projector.
func New(opts Options) *Projector {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	intervals := opts.Intervals
	if len(intervals) == 0 {
		intervals = domain.Intervals
	}
	return &Projector{
		store:     opts.Store,
		logger:    logger.With("component", "projector"),
		intervals: intervals,
		barMirror: opts.BarMirror,
	}
}

// Apply projects one event inside a single storage transaction and
// returns the notifications to fan out. A duplicate delivery returns
// (nil, nil). An ErrInvariantViolation-wrapped error means the event
// must be quarantined; any other error means the transaction rolled
// back and the event should be retried.
func (p *Projector) Apply(ctx context.Context, ev domain.ChainEvent) ([]domain.Notification, error) {
	switch e := ev.(type) {
	case *domain.TokenLaunched:
		return p.applyLaunch(ctx, e)
	case *domain.TokensPurchased:
		return p.applyTrade(ctx, tradeEvent{
			ref:         e.EventRef,
			token:       e.Token,
			wallet:      e.Buyer,
			side:        domain.TradeSideBuy,
			ethAmount:   e.EthIn,
			tokenAmount: e.TokensOut,
			newPrice:    e.NewPrice,
			fee:         e.Fee,
		})
	case *domain.TokensSold:
		return p.applyTrade(ctx, tradeEvent{
			ref:         e.EventRef,
			token:       e.Token,
			wallet:      e.Seller,
			side:        domain.TradeSideSell,
			ethAmount:   e.EthOut,
			tokenAmount: e.TokensIn,
			newPrice:    e.NewPrice,
			fee:         e.Fee,
		})
	case *domain.TokenMigrated:
		return p.applyMigration(ctx, e)
	default:
		return nil, fmt.Errorf("unsupported event type %T", ev)
	}
}

// applyLaunch creates the token row. A duplicate delivery is tolerated
// with a warning; launches carry no aggregates to double count.
func (p *Projector) applyLaunch(ctx context.Context, ev *domain.TokenLaunched) ([]domain.Notification, error) {
	token := &domain.Token{
		Address:      ev.Token,
		Name:         ev.Name,
		Symbol:       ev.Symbol,
		Creator:      ev.Creator,
		BondingCurve: ev.BondingCurve,
		TotalSupply:  bigOrZero(ev.TotalSupply),
		CurveSupply:  bigOrZero(ev.CurveSupply),
		SoldSupply:   new(big.Int),
		MarketCap:    new(big.Int),
		Volume24h:    new(big.Int),
		Volume7d:     new(big.Int),
		VolumeTotal:  new(big.Int),
		CreatedAt:    ev.Timestamp,
		UpdatedAt:    ev.Timestamp,
	}

	err := p.store.WithTx(ctx, func(tx storage.Store) error {
		return tx.Tokens().Insert(ctx, token)
	})
	if errors.Is(err, storage.ErrDuplicateKey) {
		p.logger.Warn("duplicate launch delivery ignored",
			"token", ev.Token, "tx_hash", ev.TxHash, "log_index", ev.LogIndex)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("project launch: %w", err)
	}

	view := domain.NewTokenView(token)
	return []domain.Notification{
		{Topic: domain.TopicPlatformTokens, Type: domain.NotifyTokenNew, Entity: token.Address, Data: view, Timestamp: ev.Timestamp},
		{Topic: domain.TokenTopic(token.Address), Type: domain.NotifyTokenNew, Entity: token.Address, Data: view, Timestamp: ev.Timestamp},
	}, nil
}

// tradeEvent is the side-normalized shape of a buy or sell.
type tradeEvent struct {
	ref         domain.EventRef
	token       string
	wallet      string
	side        string
	ethAmount   *big.Int // wei moved
	tokenAmount *big.Int // tokens moved
	newPrice    *big.Int // curve's posted price, may be zero
	fee         *big.Int
}

// priceUpdate is the payload of price:update notifications.
type priceUpdate struct {
	TokenAddress string `json:"tokenAddress"`
	Price        string `json:"price"`
	MarketCap    string `json:"marketCap"`
	Timestamp    int64  `json:"timestamp"`
}

func (p *Projector) applyTrade(ctx context.Context, ev tradeEvent) ([]domain.Notification, error) {
	if ev.tokenAmount == nil || ev.tokenAmount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: trade %s:%d has non-positive token amount",
			ErrInvariantViolation, ev.ref.TxHash, ev.ref.LogIndex)
	}

	var (
		token  *domain.Token
		trade  *domain.Trade
		holder *domain.Holder
		bars   []*domain.PriceBar
	)

	err := p.store.WithTx(ctx, func(tx storage.Store) error {
		// Idempotency gate: (tx_hash, log_index) already projected.
		exists, err := tx.Trades().Exists(ctx, ev.ref.TxHash, ev.ref.LogIndex)
		if err != nil {
			return fmt.Errorf("check trade exists: %w", err)
		}
		if exists {
			return errDuplicateEvent
		}

		token, err = tx.Tokens().Get(ctx, ev.token)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: trade %s:%d references unknown token %s",
				ErrInvariantViolation, ev.ref.TxHash, ev.ref.LogIndex, ev.token)
		}
		if err != nil {
			return fmt.Errorf("load token: %w", err)
		}

		// Per-token price in fixed point: eth * 1e18 / tokens. Integer
		// arithmetic keeps re-projection deterministic.
		price := new(big.Int).Mul(bigOrZero(ev.ethAmount), weiScale)
		price.Quo(price, ev.tokenAmount)

		trade = &domain.Trade{
			TxHash:       ev.ref.TxHash,
			LogIndex:     ev.ref.LogIndex,
			TokenAddress: ev.token,
			Trader:       ev.wallet,
			Side:         ev.side,
			Price:        price,
			FeeAmount:    bigOrZero(ev.fee),
			BlockNumber:  ev.ref.BlockNumber,
			BlockHash:    ev.ref.BlockHash,
			Timestamp:    ev.ref.Timestamp,
		}
		if ev.side == domain.TradeSideBuy {
			trade.AmountIn = bigOrZero(ev.ethAmount)
			trade.AmountOut = new(big.Int).Set(ev.tokenAmount)
		} else {
			trade.AmountIn = new(big.Int).Set(ev.tokenAmount)
			trade.AmountOut = bigOrZero(ev.ethAmount)
		}

		if err := tx.Trades().Insert(ctx, trade); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				return errDuplicateEvent
			}
			return fmt.Errorf("insert trade: %w", err)
		}

		holder, err = p.applyHolder(ctx, tx, ev)
		if err != nil {
			return err
		}

		if err := p.applyTokenAggregates(ctx, tx, token, trade); err != nil {
			return err
		}

		bars, err = p.applyPriceBars(ctx, tx, trade)
		return err
	})
	if errors.Is(err, errDuplicateEvent) {
		p.logger.Warn("duplicate trade delivery ignored",
			"tx_hash", ev.ref.TxHash, "log_index", ev.ref.LogIndex)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.mirrorBars(ctx, bars)

	tokenTopic := domain.TokenTopic(ev.token)
	tradeView := domain.NewTradeView(trade)
	tokenView := domain.NewTokenView(token)
	notifications := []domain.Notification{
		{Topic: tokenTopic, Type: domain.NotifyTradeNew, Entity: ev.token, Data: tradeView, Timestamp: ev.ref.Timestamp},
		{Topic: domain.TopicPlatformTrades, Type: domain.NotifyTradeNew, Entity: ev.token, Data: tradeView, Timestamp: ev.ref.Timestamp},
		{Topic: tokenTopic, Type: domain.NotifyTokenUpdate, Entity: ev.token, Data: tokenView, Timestamp: ev.ref.Timestamp},
		{Topic: domain.TopicPlatformTokens, Type: domain.NotifyTokenUpdate, Entity: ev.token, Data: tokenView, Timestamp: ev.ref.Timestamp},
		{Topic: tokenTopic, Type: domain.NotifyPriceUpdate, Entity: ev.token, Data: priceUpdate{
			TokenAddress: ev.token,
			Price:        trade.Price.String(),
			MarketCap:    token.MarketCap.String(),
			Timestamp:    ev.ref.Timestamp,
		}, Timestamp: ev.ref.Timestamp},
		{Topic: domain.WalletTopic(ev.wallet), Type: domain.NotifyHolderUpdate, Entity: ev.token, Data: domain.NewHolderView(holder), Timestamp: ev.ref.Timestamp},
	}
	return notifications, nil
}

// applyHolder folds the trade into the counterparty's position. Returns
// the resulting holder state; an exited holder is returned with zero
// balance but its row is deleted.
func (p *Projector) applyHolder(ctx context.Context, tx storage.Store, ev tradeEvent) (*domain.Holder, error) {
	holder, err := tx.Holders().Get(ctx, ev.token, ev.wallet)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if ev.side == domain.TradeSideSell {
			return nil, fmt.Errorf("%w: sell %s:%d from wallet %s with no position",
				ErrInvariantViolation, ev.ref.TxHash, ev.ref.LogIndex, ev.wallet)
		}
		holder = &domain.Holder{
			TokenAddress:  ev.token,
			Wallet:        ev.wallet,
			Balance:       new(big.Int),
			TotalBought:   new(big.Int),
			TotalSold:     new(big.Int),
			FirstBoughtAt: ev.ref.Timestamp,
		}
	case err != nil:
		return nil, fmt.Errorf("load holder: %w", err)
	}

	if ev.side == domain.TradeSideBuy {
		holder.Balance = new(big.Int).Add(holder.Balance, ev.tokenAmount)
		holder.TotalBought = new(big.Int).Add(holder.TotalBought, ev.tokenAmount)
	} else {
		holder.Balance = new(big.Int).Sub(holder.Balance, ev.tokenAmount)
		holder.TotalSold = new(big.Int).Add(holder.TotalSold, ev.tokenAmount)
	}
	holder.LastActivity = ev.ref.Timestamp

	if holder.Balance.Sign() < 0 {
		return nil, fmt.Errorf("%w: sell %s:%d would leave wallet %s with negative balance %s",
			ErrInvariantViolation, ev.ref.TxHash, ev.ref.LogIndex, ev.wallet, holder.Balance)
	}

	if holder.Balance.Sign() == 0 {
		// Exited holders are deleted, not zeroed.
		if err := tx.Holders().Delete(ctx, ev.token, ev.wallet); err != nil {
			return nil, fmt.Errorf("delete exited holder: %w", err)
		}
		return holder, nil
	}

	if err := tx.Holders().Upsert(ctx, holder); err != nil {
		return nil, fmt.Errorf("upsert holder: %w", err)
	}
	return holder, nil
}

// applyTokenAggregates recomputes the token's derived aggregates after
// the trade row is inserted, so window scans include it.
func (p *Projector) applyTokenAggregates(ctx context.Context, tx storage.Store, token *domain.Token, trade *domain.Trade) error {
	now := trade.Timestamp

	// soldSupply grows on buys only; sells return ETH, not curve
	// inventory, so the cumulative sold count is monotonic.
	if trade.Side == domain.TradeSideBuy {
		token.SoldSupply = new(big.Int).Add(token.SoldSupply, trade.AmountOut)
	}

	magnitude := trade.EthMagnitude()
	token.VolumeTotal = new(big.Int).Add(token.VolumeTotal, magnitude)

	vol24, err := tx.Trades().SumVolumeSince(ctx, token.Address, now-window24h.Milliseconds())
	if err != nil {
		return fmt.Errorf("sum 24h volume: %w", err)
	}
	vol7d, err := tx.Trades().SumVolumeSince(ctx, token.Address, now-window7d.Milliseconds())
	if err != nil {
		return fmt.Errorf("sum 7d volume: %w", err)
	}
	token.Volume24h = vol24
	token.Volume7d = vol7d

	// Market cap = price x sold supply, de-scaled by 1e18. Prefer the
	// curve's posted post-trade price when present.
	capPrice := trade.Price
	token.MarketCap = new(big.Int).Mul(capPrice, token.SoldSupply)
	token.MarketCap.Quo(token.MarketCap, weiScale)

	holderCount, err := tx.Holders().CountByToken(ctx, token.Address)
	if err != nil {
		return fmt.Errorf("count holders: %w", err)
	}
	token.HolderCount = holderCount
	token.UpdatedAt = now

	if err := tx.Tokens().Update(ctx, token); err != nil {
		return fmt.Errorf("update token aggregates: %w", err)
	}
	return nil
}

// applyPriceBars upserts the bar for every tracked interval.
func (p *Projector) applyPriceBars(ctx context.Context, tx storage.Store, trade *domain.Trade) ([]*domain.PriceBar, error) {
	magnitude := trade.EthMagnitude()
	bars := make([]*domain.PriceBar, 0, len(p.intervals))

	for _, interval := range p.intervals {
		bucket := interval.BucketStart(trade.Timestamp)

		bar, err := tx.PriceBars().Get(ctx, trade.TokenAddress, interval, bucket)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			bar = domain.NewPriceBar(trade.TokenAddress, interval, bucket, trade.Price, magnitude)
		case err != nil:
			return nil, fmt.Errorf("load %s bar: %w", interval, err)
		default:
			bar.ApplyTrade(trade.Price, magnitude)
		}

		if err := tx.PriceBars().Upsert(ctx, bar); err != nil {
			return nil, fmt.Errorf("upsert %s bar: %w", interval, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// mirrorBars copies updated bars to the analytics sink after commit.
// Best-effort: the sink is a read-path accelerator, not a ledger.
func (p *Projector) mirrorBars(ctx context.Context, bars []*domain.PriceBar) {
	if p.barMirror == nil {
		return
	}
	for _, bar := range bars {
		if err := p.barMirror.Upsert(ctx, bar); err != nil {
			p.logger.Warn("bar mirror write failed",
				"token", bar.TokenAddress, "interval", bar.Interval, "error", err)
		}
	}
}

func (p *Projector) applyMigration(ctx context.Context, ev *domain.TokenMigrated) ([]domain.Notification, error) {
	var token *domain.Token

	err := p.store.WithTx(ctx, func(tx storage.Store) error {
		var err error
		token, err = tx.Tokens().Get(ctx, ev.Token)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: migration %s:%d references unknown token %s",
				ErrInvariantViolation, ev.TxHash, ev.LogIndex, ev.Token)
		}
		if err != nil {
			return fmt.Errorf("load token: %w", err)
		}

		if token.Migrated {
			return errDuplicateEvent
		}

		token.Migrated = true
		token.MigratedAt = ev.Timestamp
		token.DexPair = ev.DexPair
		token.UpdatedAt = ev.Timestamp
		return tx.Tokens().Update(ctx, token)
	})
	if errors.Is(err, errDuplicateEvent) {
		p.logger.Warn("duplicate migration delivery ignored",
			"token", ev.Token, "tx_hash", ev.TxHash)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	view := domain.NewTokenView(token)
	return []domain.Notification{
		{Topic: domain.TokenTopic(token.Address), Type: domain.NotifyTokenUpdate, Entity: token.Address, Data: view, Timestamp: ev.Timestamp},
		{Topic: domain.TopicPlatformTokens, Type: domain.NotifyTokenUpdate, Entity: token.Address, Data: view, Timestamp: ev.Timestamp},
	}, nil
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
