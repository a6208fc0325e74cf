// Package fingerprint computes content digests and request-derived seeds.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	mt "github.com/txaty/go-merkletree"
)

// SeedModulus bounds Seed to [0, SeedModulus).
const SeedModulus = 100_000_000

var seedModulus = big.NewInt(SeedModulus)

// Digest returns the hex sha256 of text.
func Digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Seed derives a stable integer from a request id: the sha256 of the id read
// as a big-endian integer, reduced modulo 10^8.
func Seed(requestID string) int64 {
	sum := sha256.Sum256([]byte(requestID))
	n := new(big.Int).SetBytes(sum[:])
	return n.Mod(n, seedModulus).Int64()
}

// ReasonID is a short identifier for one file within one request.
func ReasonID(requestID, path string) string {
	return Digest(requestID + path)[:8]
}

type leaf []byte

func (l leaf) Serialize() ([]byte, error) { return l, nil }

// BatchRoot returns a digest of the Merkle root over leaves, in the given
// order, bound to the leaf count so padding duplicates change the result.
// A single leaf yields its own digest and no leaves yield "".
func BatchRoot(leaves []string) (string, error) {
	switch len(leaves) {
	case 0:
		return "", nil
	case 1:
		return Digest(leaves[0]), nil
	}
	blocks := make([]mt.DataBlock, len(leaves))
	for i, l := range leaves {
		blocks[i] = leaf(l)
	}
	tree, err := mt.New(&mt.Config{Mode: mt.ModeTreeBuild}, blocks)
	if err != nil {
		return "", fmt.Errorf("build merkle tree: %w", err)
	}
	return Digest(fmt.Sprintf("%d:%s", len(leaves), hex.EncodeToString(tree.Root))), nil
}
