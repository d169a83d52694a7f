// Package evm provides the chain port: a JSON-RPC client for an
// EVM-style node, limited to the calls the synchronizer needs.
package evm

import "context"

// Client defines the chain RPC interface consumed by the synchronizer.
type Client interface {
	// BlockNumber returns the current chain head.
	BlockNumber(ctx context.Context) (uint64, error)

	// GetLogs fetches logs matching the filter. The implementation
	// retries transient failures with bounded exponential backoff.
	GetLogs(ctx context.Context, q FilterQuery) ([]Log, error)

	// BlockTimestamp resolves a block's timestamp in unix milliseconds.
	BlockTimestamp(ctx context.Context, block uint64) (int64, error)
}

// FilterQuery selects logs by emitting address, first-position topics
// and an inclusive block range.
type FilterQuery struct {
	Address   string
	Topics    []string // any-of match on topic[0]
	FromBlock uint64
	ToBlock   uint64
}

// Log is one raw chain log as returned by eth_getLogs.
type Log struct {
	Address     string
	Topics      []string
	Data        string // 0x-prefixed hex
	BlockNumber uint64
	BlockHash   string
	TxHash      string
	LogIndex    uint32
	Removed     bool
}
