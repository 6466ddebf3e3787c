package chaintypes

import "github.com/chainforge/nodecore/pkg/fixedpoint"

// TxInput references an output being spent.
type TxInput struct {
	TxHash string
	Index  uint32
}

// TxOutput is a single payment to an address.
type TxOutput struct {
	Address string
	Amount  fixedpoint.Amount
}

// Transaction is the capability set the chain core requires from the
// transaction codec and signature verifier, which are out-of-core
// collaborators (spec §1). The block validator only ever calls these
// methods; it never inspects a concrete transaction type.
type Transaction interface {
	// Hex returns the transaction's stable hex encoding.
	Hex() string
	// Hash returns sha256(Hex()) as lower-case hex.
	Hash() string
	// Inputs lists the outputs this transaction spends. A coinbase
	// transaction returns an empty slice.
	Inputs() []TxInput
	// Outputs lists this transaction's outputs.
	Outputs() []TxOutput
	// Fees returns the amount this transaction pays the miner beyond
	// what it returns to its own outputs. Zero for a coinbase.
	Fees() fixedpoint.Amount
	// Verify checks signatures and, when checkDoubleSpend is true, the
	// spendability of every input against the authoritative UTXO set.
	// The block validator always calls this with checkDoubleSpend
	// false, performing its own in-block double-spend bookkeeping.
	Verify(checkDoubleSpend bool) (bool, error)
	// FillInputs resolves each input to the output it spends, given a
	// map of parent transactions keyed by hash, so Verify can check
	// the spending signature against the originating output's address.
	FillInputs(parents map[string]Transaction) error
	// IsCoinbase reports whether this is a synthesized block-reward
	// transaction rather than a user-submitted one.
	IsCoinbase() bool
}
