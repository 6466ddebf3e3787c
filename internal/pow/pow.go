// Package pow implements the proof-of-work acceptance rule: a
// prefix-match test against the previous block's hash, with a
// fractional hex-digit constraint for the non-integer part of the
// difficulty.
package pow

import (
	"math"

	"github.com/chainforge/nodecore/internal/chaintypes"
	"github.com/chainforge/nodecore/pkg/fixedpoint"
	"github.com/chainforge/nodecore/pkg/hashutil"
)

// MeetsDifficulty reports whether headerBytes' sha256 hex digest
// satisfies difficulty against prevHash (the empty string when no
// prior block exists, in which case every header is accepted).
func MeetsDifficulty(headerBytes []byte, prevHash string, difficulty fixedpoint.Difficulty) bool {
	if prevHash == "" {
		return true
	}
	h := hashutil.SHA256Hex(headerBytes)
	return meetsDifficultyHash(h, prevHash, difficulty)
}

// MeetsDifficultyAgainst is MeetsDifficulty against the last committed
// block record instead of a raw previous-hash string.
func MeetsDifficultyAgainst(headerBytes []byte, lastBlock chaintypes.BlockRecord, difficulty fixedpoint.Difficulty) bool {
	if lastBlock.IsZero() {
		return true
	}
	return MeetsDifficulty(headerBytes, lastBlock.Hash, difficulty)
}

func meetsDifficultyHash(h, prevHash string, difficulty fixedpoint.Difficulty) bool {
	d := difficulty.Whole()
	f := difficulty.Fraction()

	if d < 0 || d > len(prevHash) || d > len(h) {
		return false
	}

	suffix := prevHash[len(prevHash)-d:]
	if h[:d] != suffix {
		return false
	}

	if f == 0 {
		return true
	}

	if d >= len(h) {
		return false
	}

	allowed := int(math.Ceil(16 * (1 - float64(f)/10)))
	if allowed <= 0 {
		return false
	}
	if allowed > len(hashutil.HexAlphabet) {
		allowed = len(hashutil.HexAlphabet)
	}

	digit := h[d]
	for i := 0; i < allowed; i++ {
		if hashutil.HexAlphabet[i] == digit {
			return true
		}
	}
	return false
}
