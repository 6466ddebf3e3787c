// Package testutil provides fixtures shared by the chain core's tests:
// a FakeTransaction implementing chaintypes.Transaction, a FakeCodec
// for it, and a v2 header builder.
package testutil

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/chainforge/nodecore/internal/chaintypes"
	"github.com/chainforge/nodecore/pkg/fixedpoint"
)

// FakeTransaction is a minimal in-memory Transaction used by tests
// that never need to exercise real signature verification.
type FakeTransaction struct {
	HexValue    string
	InputList   []chaintypes.TxInput
	OutputList  []chaintypes.TxOutput
	FeeAmount   fixedpoint.Amount
	VerifyOK    bool
	VerifyErr   error
	Coinbase    bool
}

func (f *FakeTransaction) Hex() string { return f.HexValue }

func (f *FakeTransaction) Hash() string {
	raw, err := hex.DecodeString(f.HexValue)
	if err != nil {
		sum := sha256.Sum256([]byte(f.HexValue))
		return hex.EncodeToString(sum[:])
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func (f *FakeTransaction) Inputs() []chaintypes.TxInput   { return f.InputList }
func (f *FakeTransaction) Outputs() []chaintypes.TxOutput { return f.OutputList }
func (f *FakeTransaction) Fees() fixedpoint.Amount        { return f.FeeAmount }

func (f *FakeTransaction) Verify(checkDoubleSpend bool) (bool, error) {
	return f.VerifyOK, f.VerifyErr
}

func (f *FakeTransaction) FillInputs(parents map[string]chaintypes.Transaction) error {
	return nil
}

func (f *FakeTransaction) IsCoinbase() bool { return f.Coinbase }

// NewFakeTx builds a valid, verifiable FakeTransaction from a raw hex
// payload (any even-length hex string works as a stand-in body).
func NewFakeTx(hexPayload string, inputs []chaintypes.TxInput, outputs []chaintypes.TxOutput, fees fixedpoint.Amount) *FakeTransaction {
	return &FakeTransaction{
		HexValue:   hexPayload,
		InputList:  inputs,
		OutputList: outputs,
		FeeAmount:  fees,
		VerifyOK:   true,
	}
}

// ToTransactions upcasts a slice of *FakeTransaction to the interface
// slice the chain core's components expect.
func ToTransactions(txs []*FakeTransaction) []chaintypes.Transaction {
	out := make([]chaintypes.Transaction, len(txs))
	for i, tx := range txs {
		out[i] = tx
	}
	return out
}

// FakeCodec decodes the hex payload produced by NewFakeTx back into a
// FakeTransaction, standing in for a real transaction wire codec in
// storage adapter tests.
type FakeCodec struct{}

func (FakeCodec) Decode(hexPayload string) (chaintypes.Transaction, error) {
	return NewFakeTx(hexPayload, nil, nil, 0), nil
}

// SampleHeader returns a header with a 33-byte (v2) miner address.
func SampleHeader(prevHash [32]byte, merkleRoot [32]byte, timestamp uint32, difficultyRaw uint16, nonce uint32) *chaintypes.Header {
	addr := make([]byte, 33)
	for i := range addr {
		addr[i] = byte(i + 1)
	}
	return &chaintypes.Header{
		Version:       chaintypes.HeaderVersion2,
		PreviousHash:  prevHash,
		MinerAddress:  addr,
		MerkleRoot:    merkleRoot,
		Timestamp:     timestamp,
		DifficultyRaw: difficultyRaw,
		Nonce:         nonce,
	}
}
