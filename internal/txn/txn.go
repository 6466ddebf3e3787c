// Package txn is the reference Transaction codec and signature
// verifier: the concrete collaborator the chaintypes.Transaction
// interface exists to abstract away. The chain core never imports
// this package directly; it is wired in at the composition root
// behind the storage interface, like any other concrete store.
package txn

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/chainforge/nodecore/internal/address"
	"github.com/chainforge/nodecore/internal/chaintypes"
	"github.com/chainforge/nodecore/pkg/fixedpoint"
	"github.com/chainforge/nodecore/pkg/hashutil"
)

// Signed is a transaction with one secp256k1 signature per input. The
// signer of input i must be the address that owns the output it
// spends; Verify checks both that correspondence and the signature
// itself.
type Signed struct {
	TxInputs  []chaintypes.TxInput
	TxOutputs []chaintypes.TxOutput
	TxFees    fixedpoint.Amount
	PubKeys   [][]byte // compressed secp256k1 public key per input
	Sigs      [][]byte // DER signature per input

	coinbase bool
	parents  map[chaintypes.TxInput]chaintypes.TxOutput
	checker  UTXOChecker
}

// SetUTXOChecker attaches the double-spend checker Verify consults
// when called with checkDoubleSpend true. Left nil, such a call is a
// signature-only check.
func (t *Signed) SetUTXOChecker(c UTXOChecker) {
	t.checker = c
}

// NewCoinbase builds the synthesized block-reward transaction. It
// carries no inputs and needs no signature: coinbase legitimacy comes
// from being embedded in a committed block, not from Verify.
func NewCoinbase(blockHash, minerAddress string, amount fixedpoint.Amount) (chaintypes.Transaction, error) {
	if _, err := address.Validate(minerAddress); err != nil {
		return nil, err
	}
	return &Signed{
		TxOutputs: []chaintypes.TxOutput{{Address: minerAddress, Amount: amount}},
		coinbase:  true,
	}, nil
}

// New builds a signed transaction from its inputs, outputs, fee and
// one (public key, signature) pair per input, in input order.
func New(inputs []chaintypes.TxInput, outputs []chaintypes.TxOutput, fee fixedpoint.Amount, pubKeys, sigs [][]byte) *Signed {
	return &Signed{TxInputs: inputs, TxOutputs: outputs, TxFees: fee, PubKeys: pubKeys, Sigs: sigs}
}

// signingPayload is the canonical byte sequence a signature commits
// to: every input, every output and the declared fee, but not the
// signatures themselves.
func (t *Signed) signingPayload() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(len(t.TxInputs)))
	for _, in := range t.TxInputs {
		writeLenPrefixedString(&buf, in.TxHash)
		binary.Write(&buf, binary.BigEndian, in.Index)
	}
	binary.Write(&buf, binary.BigEndian, uint32(len(t.TxOutputs)))
	for _, out := range t.TxOutputs {
		writeLenPrefixedString(&buf, out.Address)
		binary.Write(&buf, binary.BigEndian, int64(out.Amount))
	}
	binary.Write(&buf, binary.BigEndian, int64(t.TxFees))
	return buf.Bytes()
}

func writeLenPrefixedString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.BigEndian, uint32(len(s)))
	buf.WriteString(s)
}

// Hex returns the transaction's stable hex wire encoding: the signing
// payload followed by length-prefixed public key and signature pairs.
func (t *Signed) Hex() string {
	var buf bytes.Buffer
	payload := t.signingPayload()
	binary.Write(&buf, binary.BigEndian, uint32(len(payload)))
	buf.Write(payload)
	binary.Write(&buf, binary.BigEndian, uint32(len(t.PubKeys)))
	for i := range t.PubKeys {
		writeLenPrefixed(&buf, t.PubKeys[i])
		writeLenPrefixed(&buf, t.Sigs[i])
	}
	return hex.EncodeToString(buf.Bytes())
}

func writeLenPrefixed(buf *bytes.Buffer, b []byte) {
	binary.Write(buf, binary.BigEndian, uint32(len(b)))
	buf.Write(b)
}

// Hash returns sha256 of the decoded hex wire encoding.
func (t *Signed) Hash() string {
	raw, err := hex.DecodeString(t.Hex())
	if err != nil {
		return ""
	}
	return hashutil.SHA256Hex(raw)
}

// Inputs implements chaintypes.Transaction.
func (t *Signed) Inputs() []chaintypes.TxInput { return t.TxInputs }

// Outputs implements chaintypes.Transaction.
func (t *Signed) Outputs() []chaintypes.TxOutput { return t.TxOutputs }

// Fees implements chaintypes.Transaction.
func (t *Signed) Fees() fixedpoint.Amount { return t.TxFees }

// IsCoinbase implements chaintypes.Transaction.
func (t *Signed) IsCoinbase() bool { return t.coinbase }

// FillInputs resolves each input against its parent transaction's
// matching output, so Verify can check that the signer owns what it
// claims to spend.
func (t *Signed) FillInputs(parents map[string]chaintypes.Transaction) error {
	if t.coinbase {
		return nil
	}
	t.parents = make(map[chaintypes.TxInput]chaintypes.TxOutput, len(t.TxInputs))
	for _, in := range t.TxInputs {
		parent, ok := parents[in.TxHash]
		if !ok {
			return fmt.Errorf("txn: missing parent transaction %s", in.TxHash)
		}
		outs := parent.Outputs()
		if int(in.Index) >= len(outs) {
			return fmt.Errorf("txn: parent %s has no output %d", in.TxHash, in.Index)
		}
		t.parents[in] = outs[in.Index]
	}
	return nil
}

// UTXOChecker reports whether an output is still unspent, the
// optional collaborator Verify consults when checkDoubleSpend is true.
type UTXOChecker interface {
	IsUnspent(in chaintypes.TxInput) bool
}

// Verify checks every input's signature against the public key that
// must match the spent output's address, and, when a double-spend
// checker is attached and checkDoubleSpend is requested, that every
// input is still unspent. A coinbase transaction always verifies.
func (t *Signed) Verify(checkDoubleSpend bool) (bool, error) {
	if t.coinbase {
		return true, nil
	}
	if len(t.PubKeys) != len(t.TxInputs) || len(t.Sigs) != len(t.TxInputs) {
		return false, fmt.Errorf("txn: expected %d signatures, got %d keys and %d sigs", len(t.TxInputs), len(t.PubKeys), len(t.Sigs))
	}
	if t.parents == nil && len(t.TxInputs) > 0 {
		return false, fmt.Errorf("txn: FillInputs was never called")
	}

	messageHash := hashutil.SHA256Raw(t.signingPayload())

	for i, in := range t.TxInputs {
		pub, err := secp256k1.ParsePubKey(t.PubKeys[i])
		if err != nil {
			return false, fmt.Errorf("txn: input %d: bad public key: %w", i, err)
		}
		signerAddr := address.FromPublicKey(pub)
		parentOut, ok := t.parents[in]
		if !ok {
			return false, fmt.Errorf("txn: input %d: unresolved parent output", i)
		}
		if signerAddr != parentOut.Address {
			return false, nil
		}

		sig, err := ecdsa.ParseDERSignature(t.Sigs[i])
		if err != nil {
			return false, fmt.Errorf("txn: input %d: bad signature encoding: %w", i, err)
		}
		if !sig.Verify(messageHash[:], pub) {
			return false, nil
		}

		if checkDoubleSpend && t.checker != nil && !t.checker.IsUnspent(in) {
			return false, nil
		}
	}
	return true, nil
}

// Sign produces the DER signature for input i's spending key over the
// transaction's current signing payload. Callers build a Signed with
// its inputs and outputs set, call Sign once per input, then populate
// PubKeys/Sigs from the results before broadcasting.
func Sign(priv *secp256k1.PrivateKey, t *Signed) []byte {
	messageHash := hashutil.SHA256Raw(t.signingPayload())
	sig := ecdsa.Sign(priv, messageHash[:])
	return sig.Serialize()
}

// SortInputs orders inputs deterministically by (hash, index), the
// canonical ordering FillInputs and signingPayload assume.
func SortInputs(inputs []chaintypes.TxInput) {
	sort.Slice(inputs, func(i, j int) bool {
		if inputs[i].TxHash != inputs[j].TxHash {
			return inputs[i].TxHash < inputs[j].TxHash
		}
		return inputs[i].Index < inputs[j].Index
	})
}
