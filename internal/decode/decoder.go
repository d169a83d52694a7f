// Package decode turns raw chain logs into typed launchpad events.
// A log that fails to decode is reported as an error and skipped by the
// caller; it never aborts a sync batch.
package decode

import (
	"errors"
	"fmt"
	"strings"

	"launchpad-indexer/internal/domain"
	"launchpad-indexer/internal/evm"
)

// Event signature hashes (keccak-256 of the canonical signatures) as
// they appear in topic position 0.
const (
	// TokenLaunched(address,address,address,string,string,uint256,uint256)
	TopicTokenLaunched = "0x7a5e6b4f2f1d0c8a9b3e5d741c6f8a02d94b71ce350a8f6de12c03b9a45e7f18"

	// TokensPurchased(address,address,uint256,uint256,uint256,uint256)
	TopicTokensPurchased = "0x93b1fd2e07c54a86b40e1db3f8c25a17d6490cfe8b3a2751e98d04acb6f3521d"

	// TokensSold(address,address,uint256,uint256,uint256,uint256)
	TopicTokensSold = "0x4c8a01352efb93d07a25c9e8f4b6a2d15e08cd73614f9ba06827de1c53f4b902"

	// TokenMigrated(address,address,uint256)
	TopicTokenMigrated = "0xd1f07be28c953a6e4b0a92785c3ed16f2a84b057c9ef63d1205ba84fcd67a39e"
)

// FactoryTopics lists the events tracked on the launch factory.
var FactoryTopics = []string{TopicTokenLaunched}

// CurveTopics lists the events tracked on each bonding curve.
var CurveTopics = []string{TopicTokensPurchased, TopicTokensSold, TopicTokenMigrated}

// ErrUnknownEvent is returned for a log whose topic0 is not a tracked
// launchpad event.
var ErrUnknownEvent = errors.New("unknown event signature")

// Decode converts one raw log into a typed chain event. timestampMs is
// the containing block's timestamp, resolved by the caller.
func Decode(l evm.Log, timestampMs int64) (domain.ChainEvent, error) {
	if len(l.Topics) == 0 {
		return nil, fmt.Errorf("log %s:%d has no topics", l.TxHash, l.LogIndex)
	}

	ref := domain.EventRef{
		TxHash:      strings.ToLower(l.TxHash),
		LogIndex:    l.LogIndex,
		BlockNumber: l.BlockNumber,
		BlockHash:   strings.ToLower(l.BlockHash),
		Timestamp:   timestampMs,
	}

	switch strings.ToLower(l.Topics[0]) {
	case TopicTokenLaunched:
		return decodeTokenLaunched(l, ref)
	case TopicTokensPurchased:
		return decodeTokensPurchased(l, ref)
	case TopicTokensSold:
		return decodeTokensSold(l, ref)
	case TopicTokenMigrated:
		return decodeTokenMigrated(l, ref)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, l.Topics[0])
	}
}

func indexedAddresses(l evm.Log, want int) ([]string, error) {
	if len(l.Topics) != want+1 {
		return nil, fmt.Errorf("expected %d indexed params, got %d topics", want, len(l.Topics))
	}
	addrs := make([]string, want)
	for i := 0; i < want; i++ {
		a, err := evm.TopicToAddress(l.Topics[i+1])
		if err != nil {
			return nil, fmt.Errorf("indexed param %d: %w", i, err)
		}
		addrs[i] = a
	}
	return addrs, nil
}

func decodeTokenLaunched(l evm.Log, ref domain.EventRef) (domain.ChainEvent, error) {
	addrs, err := indexedAddresses(l, 2)
	if err != nil {
		return nil, fmt.Errorf("TokenLaunched: %w", err)
	}

	r, err := evm.NewWordReader(l.Data)
	if err != nil {
		return nil, fmt.Errorf("TokenLaunched: %w", err)
	}

	curve, err := r.Address(0)
	if err != nil {
		return nil, fmt.Errorf("TokenLaunched bondingCurve: %w", err)
	}
	name, err := r.String(1)
	if err != nil {
		return nil, fmt.Errorf("TokenLaunched name: %w", err)
	}
	symbol, err := r.String(2)
	if err != nil {
		return nil, fmt.Errorf("TokenLaunched symbol: %w", err)
	}
	totalSupply, err := r.Big(3)
	if err != nil {
		return nil, fmt.Errorf("TokenLaunched totalSupply: %w", err)
	}
	curveSupply, err := r.Big(4)
	if err != nil {
		return nil, fmt.Errorf("TokenLaunched curveSupply: %w", err)
	}

	return &domain.TokenLaunched{
		EventRef:     ref,
		Token:        addrs[0],
		Creator:      addrs[1],
		BondingCurve: curve,
		Name:         name,
		Symbol:       symbol,
		TotalSupply:  totalSupply,
		CurveSupply:  curveSupply,
	}, nil
}

func decodeTokensPurchased(l evm.Log, ref domain.EventRef) (domain.ChainEvent, error) {
	addrs, err := indexedAddresses(l, 2)
	if err != nil {
		return nil, fmt.Errorf("TokensPurchased: %w", err)
	}

	r, err := evm.NewWordReader(l.Data)
	if err != nil {
		return nil, fmt.Errorf("TokensPurchased: %w", err)
	}
	if r.Words() < 4 {
		return nil, fmt.Errorf("TokensPurchased: expected 4 data words, got %d", r.Words())
	}

	ethIn, _ := r.Big(0)
	tokensOut, _ := r.Big(1)
	newPrice, _ := r.Big(2)
	fee, _ := r.Big(3)

	if tokensOut.Sign() == 0 {
		return nil, fmt.Errorf("TokensPurchased: zero tokensOut")
	}

	return &domain.TokensPurchased{
		EventRef:  ref,
		Token:     addrs[0],
		Buyer:     addrs[1],
		EthIn:     ethIn,
		TokensOut: tokensOut,
		NewPrice:  newPrice,
		Fee:       fee,
	}, nil
}

func decodeTokensSold(l evm.Log, ref domain.EventRef) (domain.ChainEvent, error) {
	addrs, err := indexedAddresses(l, 2)
	if err != nil {
		return nil, fmt.Errorf("TokensSold: %w", err)
	}

	r, err := evm.NewWordReader(l.Data)
	if err != nil {
		return nil, fmt.Errorf("TokensSold: %w", err)
	}
	if r.Words() < 4 {
		return nil, fmt.Errorf("TokensSold: expected 4 data words, got %d", r.Words())
	}

	tokensIn, _ := r.Big(0)
	ethOut, _ := r.Big(1)
	newPrice, _ := r.Big(2)
	fee, _ := r.Big(3)

	if tokensIn.Sign() == 0 {
		return nil, fmt.Errorf("TokensSold: zero tokensIn")
	}

	return &domain.TokensSold{
		EventRef: ref,
		Token:    addrs[0],
		Seller:   addrs[1],
		TokensIn: tokensIn,
		EthOut:   ethOut,
		NewPrice: newPrice,
		Fee:      fee,
	}, nil
}

func decodeTokenMigrated(l evm.Log, ref domain.EventRef) (domain.ChainEvent, error) {
	addrs, err := indexedAddresses(l, 2)
	if err != nil {
		return nil, fmt.Errorf("TokenMigrated: %w", err)
	}

	r, err := evm.NewWordReader(l.Data)
	if err != nil {
		return nil, fmt.Errorf("TokenMigrated: %w", err)
	}
	if r.Words() < 1 {
		return nil, fmt.Errorf("TokenMigrated: expected 1 data word, got %d", r.Words())
	}

	liquidity, _ := r.Big(0)

	return &domain.TokenMigrated{
		EventRef:  ref,
		Token:     addrs[0],
		DexPair:   addrs[1],
		Liquidity: liquidity,
	}, nil
}
