// Package chaintypes holds the data model shared across the chain
// core: the block header, the persisted block record, the transaction
// capability set, the coinbase transaction and the UTXO and pending
// pool entries.
package chaintypes

import "github.com/chainforge/nodecore/pkg/fixedpoint"

// HeaderVersion identifies which of the two wire encodings a header
// uses. Version 1 is the legacy 64-byte-address, no-version-byte
// encoding; version 2 prepends a single 0x02 byte and uses a 33-byte
// address.
type HeaderVersion uint8

const (
	HeaderVersion1 HeaderVersion = 1
	HeaderVersion2 HeaderVersion = 2
)

// SerializedSizeV1 and SerializedSizeV2 are the exact wire sizes for
// each header version.
const (
	SerializedSizeV1 = 138
	SerializedSizeV2 = 108
)

// Header is the decoded form of a candidate block header.
type Header struct {
	Version       HeaderVersion
	PreviousHash  [32]byte
	MinerAddress  []byte // 64 bytes for v1, 33 bytes for v2
	MerkleRoot    [32]byte
	Timestamp     uint32
	DifficultyRaw uint16 // wire-format difficulty_scaled
	Nonce         uint32
}

// Difficulty returns the header's declared difficulty as a fixed-point value.
func (h *Header) Difficulty() fixedpoint.Difficulty {
	return fixedpoint.DifficultyFromScaled(h.DifficultyRaw)
}

// BlockRecord is a committed block as persisted by the storage layer.
type BlockRecord struct {
	ID         uint64
	Hash       string // lower-case hex of sha256(header bytes)
	Address    string // normalized miner address (spaces stripped)
	Random     uint32 // the header nonce
	Difficulty fixedpoint.Difficulty
	Reward     fixedpoint.Amount
	Timestamp  uint32
}

// IsZero reports whether r is the empty "no prior block" sentinel used
// in place of an Optional type.
func (r BlockRecord) IsZero() bool {
	return r.Hash == "" && r.ID == 0
}

// UTXOEntry identifies a spendable output.
type UTXOEntry struct {
	TxHash string
	Index  uint32
}

// PendingEntry is a mempool entry as returned by the pending-pool query.
type PendingEntry struct {
	TxHash        string
	TxHex         string
	InputAddrs    []string
	Fees          fixedpoint.Amount
}
