// Package difficulty implements the retarget rule and the two
// successive hashrate<->difficulty conversion forms the chain uses
// across its history, plus the process-wide difficulty cache.
package difficulty

import (
	"math"

	"github.com/chainforge/nodecore/pkg/fixedpoint"
)

// LegacyCutoverHeight is the block id the legacy and current hashrate
// conversion forms pivot on. The retarget computation in Retarget uses
// <= on one leg and < on the other, preserved verbatim from the
// original chain's behavior rather than unified, per an open question
// this implementation intentionally leaves unresolved.
const LegacyCutoverHeight = 17500

func log16(x float64) float64 {
	return math.Log(x) / math.Log(16)
}

// hashrateLegacyFloat and hashrateCurrentFloat take a raw decimal
// difficulty value (not the fixed-point grid type) because they are
// shared by both the public conversions and the retarget computation,
// which needs to feed already-computed floats through them.
func hashrateLegacyFloat(difficulty float64) float64 {
	whole := math.Floor(difficulty)
	frac := difficulty - whole
	if frac == 0 {
		frac = 1.0 / 16
	}
	return math.Pow(16, whole) * (16 * frac)
}

func hashrateCurrentFloat(difficulty float64) float64 {
	whole := math.Floor(difficulty)
	frac := difficulty - whole
	return math.Pow(16, whole) * (16 / math.Ceil(16*(1-frac)))
}

func hashrateToDifficultyLegacyFloat(hashrate float64) float64 {
	d := math.Floor(log16(hashrate))
	if hashrate == math.Pow(16, d) {
		return d
	}
	return d + (hashrate/math.Pow(16, d))/16
}

func hashrateToDifficultyCurrentFloat(hashrate float64) float64 {
	d := math.Floor(log16(hashrate))
	if hashrate == math.Pow(16, d) {
		return d
	}
	ratio := hashrate / math.Pow(16, d)
	frac := 16 / ratio / 16
	frac = 1 - math.Floor(frac*10)/10
	return d + frac
}

// HashrateLegacy converts a difficulty to an estimated hashrate using
// the pre-cutover form.
func HashrateLegacy(d fixedpoint.Difficulty) float64 {
	return hashrateLegacyFloat(d.Float64())
}

// HashrateCurrent converts a difficulty to an estimated hashrate using
// the post-cutover form.
func HashrateCurrent(d fixedpoint.Difficulty) float64 {
	return hashrateCurrentFloat(d.Float64())
}

// DifficultyFromHashrateLegacy inverts HashrateLegacy, snapping the
// result onto the one-decimal difficulty grid via rounding.
func DifficultyFromHashrateLegacy(hashrate float64) fixedpoint.Difficulty {
	return fixedpoint.DifficultyFromFloat(hashrateToDifficultyLegacyFloat(hashrate))
}

// DifficultyFromHashrateCurrent inverts HashrateCurrent, snapping the
// result onto the one-decimal difficulty grid via rounding.
func DifficultyFromHashrateCurrent(hashrate float64) fixedpoint.Difficulty {
	return fixedpoint.DifficultyFromFloat(hashrateToDifficultyCurrentFloat(hashrate))
}
