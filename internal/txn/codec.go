package txn

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/chainforge/nodecore/internal/chaintypes"
	"github.com/chainforge/nodecore/pkg/fixedpoint"
)

// Codec decodes the hex wire encoding Signed.Hex produces back into a
// verifiable chaintypes.Transaction. It satisfies the Codec
// collaborator interface that boltstore, txcache, minerapi and the
// mempool janitor depend on.
type Codec struct{}

// Decode parses a Signed transaction from its hex payload.
func (Codec) Decode(hexPayload string) (chaintypes.Transaction, error) {
	raw, err := hex.DecodeString(hexPayload)
	if err != nil {
		return nil, fmt.Errorf("txn: bad hex payload: %w", err)
	}
	r := bytes.NewReader(raw)

	var payloadLen uint32
	if err := binary.Read(r, binary.BigEndian, &payloadLen); err != nil {
		return nil, fmt.Errorf("txn: truncated payload length: %w", err)
	}
	payload := make([]byte, payloadLen)
	if _, err := r.Read(payload); err != nil {
		return nil, fmt.Errorf("txn: truncated payload: %w", err)
	}

	inputs, outputs, fee, err := decodeSigningPayload(payload)
	if err != nil {
		return nil, err
	}

	var sigCount uint32
	if err := binary.Read(r, binary.BigEndian, &sigCount); err != nil {
		return nil, fmt.Errorf("txn: truncated signature count: %w", err)
	}
	pubKeys := make([][]byte, sigCount)
	sigs := make([][]byte, sigCount)
	for i := uint32(0); i < sigCount; i++ {
		pubKeys[i], err = readLenPrefixed(r)
		if err != nil {
			return nil, fmt.Errorf("txn: input %d: %w", i, err)
		}
		sigs[i], err = readLenPrefixed(r)
		if err != nil {
			return nil, fmt.Errorf("txn: input %d: %w", i, err)
		}
	}

	return New(inputs, outputs, fee, pubKeys, sigs), nil
}

func readLenPrefixed(r *bytes.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// decodeSigningPayload is the exact inverse of Signed.signingPayload.
func decodeSigningPayload(payload []byte) ([]chaintypes.TxInput, []chaintypes.TxOutput, fixedpoint.Amount, error) {
	r := bytes.NewReader(payload)

	var inCount uint32
	if err := binary.Read(r, binary.BigEndian, &inCount); err != nil {
		return nil, nil, 0, fmt.Errorf("txn: truncated input count: %w", err)
	}
	inputs := make([]chaintypes.TxInput, inCount)
	for i := range inputs {
		hash, err := readString(r)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("txn: input %d hash: %w", i, err)
		}
		var index uint32
		if err := binary.Read(r, binary.BigEndian, &index); err != nil {
			return nil, nil, 0, fmt.Errorf("txn: input %d index: %w", i, err)
		}
		inputs[i] = chaintypes.TxInput{TxHash: hash, Index: index}
	}

	var outCount uint32
	if err := binary.Read(r, binary.BigEndian, &outCount); err != nil {
		return nil, nil, 0, fmt.Errorf("txn: truncated output count: %w", err)
	}
	outputs := make([]chaintypes.TxOutput, outCount)
	for i := range outputs {
		addr, err := readString(r)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("txn: output %d address: %w", i, err)
		}
		var amount int64
		if err := binary.Read(r, binary.BigEndian, &amount); err != nil {
			return nil, nil, 0, fmt.Errorf("txn: output %d amount: %w", i, err)
		}
		outputs[i] = chaintypes.TxOutput{Address: addr, Amount: fixedpoint.Amount(amount)}
	}

	var fee int64
	if err := binary.Read(r, binary.BigEndian, &fee); err != nil {
		return nil, nil, 0, fmt.Errorf("txn: truncated fee: %w", err)
	}

	return inputs, outputs, fixedpoint.Amount(fee), nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil {
		return "", err
	}
	return string(b), nil
}
