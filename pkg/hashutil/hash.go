// Package hashutil provides the SHA-256 helpers shared by the codec,
// merkle and proof-of-work packages.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Raw returns the raw 32-byte SHA-256 digest of data.
func SHA256Raw(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// SHA256Hex returns the lower-case hex SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HexAlphabet is the lower-case hex digit alphabet used by the
// proof-of-work fractional-digit constraint.
const HexAlphabet = "0123456789abcdef"
