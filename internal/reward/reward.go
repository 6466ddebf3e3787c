// Package reward implements the block-height to coinbase-reward
// schedule: a halving curve for the first nine 150,000-block eras,
// followed by a hand-patched tail that brings total issuance to
// exactly MAX_SUPPLY.
package reward

import "github.com/chainforge/nodecore/pkg/fixedpoint"

// eraLength is the number of blocks per halving era.
const eraLength = 150_000

// tailStart is the first block id past the nine halving eras (D>8).
const tailStart = 9 * eraLength

// tailLowEnd is the exclusive upper bound, in block id, of the
// 0.390625-reward tail segment.
const tailLowEnd = 9*eraLength + 458_732 - eraLength

// tailHighEnd is the exclusive upper bound of the single-block
// 0.3125-reward segment that follows it.
const tailHighEnd = 9*eraLength + 458_733 - eraLength

// MaxSupply is the sum of ForHeight(n) over n = 0 .. tailHighEnd-1,
// expressed in fixed-point micro-units. Derived analytically: eras
// D=0..8 contribute 29,941,406.25 whole coins (100 + 50 + 25 + ... +
// 100/2^8, each over 150,000 heights), the 308,732-block 0.390625 tail
// segment contributes 120,598.4375, and the final single 0.3125-reward
// block contributes 0.3125, for an exact total of 30,062,005. The era-0
// count includes n = 0, which is not a block id, so block ids 1 and up
// sum to MaxSupply minus one 100-coin reward.
const MaxSupply = fixedpoint.Amount(30_062_005 * fixedpoint.AmountScale)

// ForHeight returns the coinbase reward for block id n (1-based
// height, matching the block record's id field).
func ForHeight(n uint64) fixedpoint.Amount {
	era := n / eraLength
	switch {
	case era == 0:
		return fixedpoint.NewAmount(100, 0)
	case era <= 8:
		return halved(100, era)
	case n < tailLowEnd:
		return fixedpoint.AmountFromFloat(0.390625)
	case n < tailHighEnd:
		return fixedpoint.AmountFromFloat(0.3125)
	default:
		return 0
	}
}

// halved returns 100/2^era as a fixed-point amount, computed in
// integer micro-units so every era's reward lands exactly on the
// fixed-point grid (100 * AmountScale is divisible by 2^8).
func halved(base int64, era uint64) fixedpoint.Amount {
	micros := base * fixedpoint.AmountScale
	for i := uint64(0); i < era; i++ {
		micros /= 2
	}
	return fixedpoint.Amount(micros)
}
