// Package memory implements the storage port with mutex-guarded maps.
// It backs unit tests and the --use-memory development mode.
package memory

import (
	"context"
	"fmt"
	"sync"

	"launchpad-indexer/internal/domain"
	"launchpad-indexer/internal/storage"
)

// Store is an in-memory implementation of storage.Store.
type Store struct {
	mu sync.RWMutex

	// txMu serializes transactions; snapshot/restore is not safe to
	// interleave.
	txMu sync.Mutex

	tokens     map[string]*domain.Token
	trades     map[string]*domain.Trade
	holders    map[string]*domain.Holder
	bars       map[string]*domain.PriceBar
	watermarks map[string]*domain.Watermark
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		tokens:     make(map[string]*domain.Token),
		trades:     make(map[string]*domain.Trade),
		holders:    make(map[string]*domain.Holder),
		bars:       make(map[string]*domain.PriceBar),
		watermarks: make(map[string]*domain.Watermark),
	}
}

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

func (s *Store) Tokens() storage.TokenStore         { return &tokenStore{s} }
func (s *Store) Trades() storage.TradeStore         { return &tradeStore{s} }
func (s *Store) Holders() storage.HolderStore       { return &holderStore{s} }
func (s *Store) PriceBars() storage.PriceBarStore   { return &priceBarStore{s} }
func (s *Store) Watermarks() storage.WatermarkStore { return &watermarkStore{s} }

// WithTx runs fn with snapshot semantics: on error every mutation made
// through the store during fn is rolled back. Transactions are
// serialized against each other.
func (s *Store) WithTx(_ context.Context, fn func(tx storage.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()

	if err := fn(s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshotState struct {
	tokens     map[string]*domain.Token
	trades     map[string]*domain.Trade
	holders    map[string]*domain.Holder
	bars       map[string]*domain.PriceBar
	watermarks map[string]*domain.Watermark
}

func (s *Store) snapshot() *snapshotState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &snapshotState{
		tokens:     make(map[string]*domain.Token, len(s.tokens)),
		trades:     make(map[string]*domain.Trade, len(s.trades)),
		holders:    make(map[string]*domain.Holder, len(s.holders)),
		bars:       make(map[string]*domain.PriceBar, len(s.bars)),
		watermarks: make(map[string]*domain.Watermark, len(s.watermarks)),
	}
	for k, v := range s.tokens {
		snap.tokens[k] = v.Clone()
	}
	for k, v := range s.trades {
		snap.trades[k] = v.Clone()
	}
	for k, v := range s.holders {
		snap.holders[k] = v.Clone()
	}
	for k, v := range s.bars {
		snap.bars[k] = v.Clone()
	}
	for k, v := range s.watermarks {
		w := *v
		snap.watermarks[k] = &w
	}
	return snap
}

func (s *Store) restore(snap *snapshotState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens = snap.tokens
	s.trades = snap.trades
	s.holders = snap.holders
	s.bars = snap.bars
	s.watermarks = snap.watermarks
}

// Composite key helpers.

func tradeKey(txHash string, logIndex uint32) string {
	return fmt.Sprintf("%s|%d", txHash, logIndex)
}

func holderKey(token, wallet string) string {
	return fmt.Sprintf("%s|%s", token, wallet)
}

func barKey(token string, interval domain.Interval, bucketStart int64) string {
	return fmt.Sprintf("%s|%s|%d", token, interval, bucketStart)
}
