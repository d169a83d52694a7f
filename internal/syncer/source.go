// Package syncer drives the incremental log synchronization loop: it
// derives the set of tracked sources, pulls their logs batch by batch,
// projects the decoded events and advances per-source watermarks.
package syncer

import (
	"context"
	"fmt"

	"launchpad-indexer/internal/decode"
	"launchpad-indexer/internal/storage"
)

// Source kinds, used for metric labels so per-curve addresses never
// become label values.
const (
	KindFactory = "factory"
	KindCurve   = "curve"
)

// SourceFactory is the fixed name of the launch factory source.
const SourceFactory = "LaunchFactory"

// CurveSourceName returns the watermark source name for a bonding curve.
func CurveSourceName(addr string) string {
	return "BondingCurve_" + addr
}

// Source describes one log-emitting contract the syncer tracks.
type Source struct {
	Name       string
	Kind       string
	Address    string
	Topics     []string // any-of match on topic[0]
	StartBlock uint64   // first block to scan when no watermark exists
}

// Registry yields the current source set. It is consulted every tick so
// curve sources appear as soon as their token is projected and drop out
// once the token migrates.
type Registry interface {
	Sources(ctx context.Context) ([]Source, error)
}

// StoreRegistry derives the source set from configuration and the token
// store: the static factory source plus one curve source per
// non-migrated token.
type StoreRegistry struct {
	tokens         storage.TokenStore
	factoryAddress string
	startBlock     uint64
}

// NewStoreRegistry creates a registry over the token store.
func NewStoreRegistry(tokens storage.TokenStore, factoryAddress string, startBlock uint64) *StoreRegistry {
	return &StoreRegistry{
		tokens:         tokens,
		factoryAddress: factoryAddress,
		startBlock:     startBlock,
	}
}

// Compile-time interface check.
var _ Registry = (*StoreRegistry)(nil)

// Sources returns the factory source followed by one source per live
// bonding curve. Curve watermarks persist across migration flips, so a
// re-derived source resumes where it stopped.
func (r *StoreRegistry) Sources(ctx context.Context) ([]Source, error) {
	sources := []Source{{
		Name:       SourceFactory,
		Kind:       KindFactory,
		Address:    r.factoryAddress,
		Topics:     decode.FactoryTopics,
		StartBlock: r.startBlock,
	}}

	tokens, err := r.tokens.ListUnmigrated(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unmigrated tokens: %w", err)
	}
	for _, t := range tokens {
		if t.BondingCurve == "" {
			continue
		}
		sources = append(sources, Source{
			Name:       CurveSourceName(t.BondingCurve),
			Kind:       KindCurve,
			Address:    t.BondingCurve,
			Topics:     decode.CurveTopics,
			StartBlock: r.startBlock,
		})
	}
	return sources, nil
}
