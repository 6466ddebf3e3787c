// Package merkle implements the two leaf-concatenation roots the chain
// core uses, selected by block height. Both are a single SHA-256 over
// the concatenation of per-transaction SHA-256 digests, never a binary
// tree, and both hash the transaction's decoded raw bytes, not its hex
// string; the only difference is ordering.
package merkle

import (
	"bytes"
	"encoding/hex"
	"sort"

	"github.com/chainforge/nodecore/internal/chainerrors"
	"github.com/chainforge/nodecore/internal/chaintypes"
	"github.com/chainforge/nodecore/pkg/hashutil"
)

// SortedMerkleHeight is the first block id that uses the sorted form;
// every earlier id uses the ordered form.
const SortedMerkleHeight = 22500

// RootForHeight picks the ordered or sorted root depending on the
// height of the block being validated.
func RootForHeight(newBlockID uint64, txs []chaintypes.Transaction) (string, error) {
	if newBlockID >= SortedMerkleHeight {
		return SortedRoot(txs)
	}
	return OrderedRoot(txs)
}

// OrderedRoot concatenates sha256(decode(tx.Hex())) in the order the
// transactions appear in the block.
func OrderedRoot(txs []chaintypes.Transaction) (string, error) {
	leaves, err := decodeLeaves(txs)
	if err != nil {
		return "", err
	}
	return rootOf(leaves), nil
}

// SortedRoot decodes each transaction's hex to bytes, sorts the
// resulting byte strings lexicographically, then hashes and
// concatenates in that order.
func SortedRoot(txs []chaintypes.Transaction) (string, error) {
	leaves, err := decodeLeaves(txs)
	if err != nil {
		return "", err
	}
	sort.Slice(leaves, func(i, j int) bool {
		return bytes.Compare(leaves[i], leaves[j]) < 0
	})
	return rootOf(leaves), nil
}

func decodeLeaves(txs []chaintypes.Transaction) ([][]byte, error) {
	leaves := make([][]byte, len(txs))
	for i, tx := range txs {
		raw, err := hex.DecodeString(tx.Hex())
		if err != nil {
			return nil, chainerrors.Wrap(chainerrors.CodeMerkleMismatch,
				"transaction hex is not valid hex", err)
		}
		leaves[i] = raw
	}
	return leaves, nil
}

func rootOf(leaves [][]byte) string {
	var buf bytes.Buffer
	for _, leaf := range leaves {
		digest := hashutil.SHA256Raw(leaf)
		buf.Write(digest[:])
	}
	return hashutil.SHA256Hex(buf.Bytes())
}
