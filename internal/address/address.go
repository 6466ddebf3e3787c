// Package address implements the miner/recipient address codec: the
// collaborator that turns a header's raw address bytes, or a wallet's
// public key, into the normalized string form the chain core persists
// on block and output records.
//
// The upstream reference implementation encodes a secp256k1 curve
// point directly into a custom base-58-like string; that encoder was
// not available to ground this package on (see DESIGN.md). Instead
// this package follows the pattern used across the decred/EXCCoin
// lineage: an address is the hex encoding of a compressed secp256k1
// public key, with no version-byte prefix. That keeps the
// same shape the chain core expects, a short, stable, printable string
// derived from a public key, without inventing a point-to-string
// bijection from scratch.
package address

import (
	"encoding/hex"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/chainforge/nodecore/internal/chainerrors"
)

// CompressedLength is the byte length of a compressed secp256k1 public
// key: one parity-sign byte plus a 32-byte X coordinate. A v2 header's
// MinerAddress field is exactly this many raw bytes.
const CompressedLength = 33

// legacyUncompressedLength is the byte length of a v1 header's
// MinerAddress field: the 64-byte X||Y coordinate pair of an
// uncompressed public key with the leading 0x04 type byte stripped,
// since v1 predates the version-prefixed header and has no spare byte
// to carry it.
const legacyUncompressedLength = 64

// FromPublicKey returns the normalized address string for pub.
func FromPublicKey(pub *secp256k1.PublicKey) string {
	return hex.EncodeToString(pub.SerializeCompressed())
}

// Decode turns a header's raw MinerAddress bytes into the normalized
// address string. The two header versions carry the address in two
// different raw shapes: v2's 33 bytes are already a compressed public
// key, and v1's 64 bytes are an uncompressed key with its leading
// 0x04 type byte stripped (the field predates the version byte, so
// there was no room for the prefix). Both normalize to the same
// compressed-hex string for a given key.
func Decode(raw []byte) (string, error) {
	switch len(raw) {
	case CompressedLength:
		return Validate(hex.EncodeToString(raw))
	case legacyUncompressedLength:
		full := make([]byte, 0, legacyUncompressedLength+1)
		full = append(full, 0x04)
		full = append(full, raw...)
		pub, err := secp256k1.ParsePubKey(full)
		if err != nil {
			return "", chainerrors.Wrap(chainerrors.CodeBadAddressLength, "v1 address is not a valid curve point", err)
		}
		return FromPublicKey(pub), nil
	default:
		return "", chainerrors.New(chainerrors.CodeBadAddressLength, "address must be 33 (v2) or 64 (v1) raw bytes")
	}
}

// Validate checks that s is the hex encoding of a compressed
// secp256k1 public key and returns it with surrounding whitespace
// trimmed and lower-cased on success.
func Validate(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	raw, err := hex.DecodeString(s)
	if err != nil {
		return "", chainerrors.Wrap(chainerrors.CodeBadAddressLength, "address is not valid hex", err)
	}
	if len(raw) != CompressedLength {
		return "", chainerrors.New(chainerrors.CodeBadAddressLength, "address is not a compressed public key")
	}
	if _, err := secp256k1.ParsePubKey(raw); err != nil {
		return "", chainerrors.Wrap(chainerrors.CodeBadAddressLength, "address is not a valid curve point", err)
	}
	return s, nil
}

// ToPublicKey recovers the secp256k1 public key an address encodes.
func ToPublicKey(addr string) (*secp256k1.PublicKey, error) {
	raw, err := hex.DecodeString(addr)
	if err != nil {
		return nil, chainerrors.Wrap(chainerrors.CodeBadAddressLength, "address is not valid hex", err)
	}
	pub, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return nil, chainerrors.Wrap(chainerrors.CodeBadAddressLength, "address is not a valid curve point", err)
	}
	return pub, nil
}
