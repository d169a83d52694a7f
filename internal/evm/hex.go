package evm

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// HexToUint64 parses a 0x-prefixed hex quantity.
func HexToUint64(s string) (uint64, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	if trimmed == "" {
		return 0, fmt.Errorf("empty hex quantity")
	}
	v, err := strconv.ParseUint(trimmed, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hex quantity %q: %w", s, err)
	}
	return v, nil
}

// HexToBig parses a 0x-prefixed hex quantity of arbitrary width.
func HexToBig(s string) (*big.Int, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	if trimmed == "" {
		return nil, fmt.Errorf("empty hex quantity")
	}
	v, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return nil, fmt.Errorf("parse hex quantity %q", s)
	}
	return v, nil
}

// Uint64ToHex renders a block number as a 0x-prefixed hex quantity.
func Uint64ToHex(v uint64) string {
	return "0x" + strconv.FormatUint(v, 16)
}

// TopicToAddress extracts the address from a 32-byte indexed topic.
func TopicToAddress(topic string) (string, error) {
	trimmed := strings.TrimPrefix(topic, "0x")
	if len(trimmed) != 64 {
		return "", fmt.Errorf("topic %q is not a 32-byte word", topic)
	}
	return "0x" + strings.ToLower(trimmed[24:]), nil
}
