package evm

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// WordReader decodes ABI-encoded event data as a sequence of 32-byte
// head words with offset-addressed dynamic tails. It covers the small
// set of types the launchpad events use: uint256, address, string.
type WordReader struct {
	data []byte
}

// NewWordReader parses 0x-prefixed hex event data.
func NewWordReader(hexData string) (*WordReader, error) {
	trimmed := strings.TrimPrefix(hexData, "0x")
	data, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("decode event data: %w", err)
	}
	if len(data)%32 != 0 {
		return nil, fmt.Errorf("event data length %d is not word-aligned", len(data))
	}
	return &WordReader{data: data}, nil
}

// Words returns the number of 32-byte words in the data.
func (r *WordReader) Words() int {
	return len(r.data) / 32
}

func (r *WordReader) word(i int) ([]byte, error) {
	off := i * 32
	if off < 0 || off+32 > len(r.data) {
		return nil, fmt.Errorf("word %d out of range (%d words)", i, r.Words())
	}
	return r.data[off : off+32], nil
}

// Big reads head word i as an unsigned big integer.
func (r *WordReader) Big(i int) (*big.Int, error) {
	w, err := r.word(i)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(w), nil
}

// Address reads head word i as a right-aligned 20-byte address.
func (r *WordReader) Address(i int) (string, error) {
	w, err := r.word(i)
	if err != nil {
		return "", err
	}
	for _, b := range w[:12] {
		if b != 0 {
			return "", fmt.Errorf("word %d is not a clean address", i)
		}
	}
	return "0x" + hex.EncodeToString(w[12:]), nil
}

// String reads head word i as an offset into the dynamic tail and
// decodes the length-prefixed UTF-8 bytes found there.
func (r *WordReader) String(i int) (string, error) {
	offBig, err := r.Big(i)
	if err != nil {
		return "", err
	}
	if !offBig.IsInt64() {
		return "", fmt.Errorf("word %d: string offset overflows", i)
	}
	off := int(offBig.Int64())
	if off < 0 || off+32 > len(r.data) {
		return "", fmt.Errorf("word %d: string offset %d out of range", i, off)
	}

	lenBig := new(big.Int).SetBytes(r.data[off : off+32])
	if !lenBig.IsInt64() {
		return "", fmt.Errorf("word %d: string length overflows", i)
	}
	strLen := int(lenBig.Int64())
	if strLen < 0 || off+32+strLen > len(r.data) {
		return "", fmt.Errorf("word %d: string length %d out of range", i, strLen)
	}

	return string(r.data[off+32 : off+32+strLen]), nil
}
