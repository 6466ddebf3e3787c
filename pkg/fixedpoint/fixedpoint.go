// Package fixedpoint implements the two fixed-point decimal grids the
// chain core relies on: difficulty (one fractional hex-adjacent decimal
// digit, scaled x10) and coin amounts (six fractional digits, scaled
// x1_000_000). Binary floats are never used for a value that is stored,
// compared or committed, only transiently, inside log/ceil conversions
// that are immediately truncated back onto one of these grids.
package fixedpoint

import "math"

// AmountScale is the fixed-point scale for coin amounts (six decimals).
const AmountScale = 1_000_000

// DifficultyScale is the fixed-point scale for difficulty (one decimal).
const DifficultyScale = 10

// Amount is a coin amount scaled by AmountScale.
type Amount int64

// NewAmount builds an Amount from a whole-number and micro-unit part.
func NewAmount(whole, micros int64) Amount {
	return Amount(whole*AmountScale + micros)
}

// AmountFromFloat rounds f to the nearest micro-unit.
func AmountFromFloat(f float64) Amount {
	return Amount(math.Round(f * AmountScale))
}

// Float64 returns a a lossy float64 view, for logging and RPC surfaces only.
func (a Amount) Float64() float64 {
	return float64(a) / AmountScale
}

// Add returns a+b.
func (a Amount) Add(b Amount) Amount {
	return a + b
}

// Difficulty is a difficulty value scaled by DifficultyScale, i.e. the
// wire-format difficulty_scaled field.
type Difficulty int64

// DifficultyFromFloat truncates f onto the difficulty grid via
// round(f*10), matching the wire encoding rule in the header codec.
func DifficultyFromFloat(f float64) Difficulty {
	return Difficulty(math.Round(f * DifficultyScale))
}

// DifficultyFloor truncates f onto the grid via floor(f*10)/10, used by
// the retarget computation rather than DifficultyFromFloat's rounding.
func DifficultyFloor(f float64) Difficulty {
	return Difficulty(math.Floor(f * DifficultyScale))
}

// Float64 returns the decimal difficulty value.
func (d Difficulty) Float64() float64 {
	return float64(d) / DifficultyScale
}

// Whole returns floor(d), the integer hex-prefix length D.
func (d Difficulty) Whole() int {
	return int(d / DifficultyScale)
}

// Fraction returns the fractional hex-digit part f, one of 0..9.
func (d Difficulty) Fraction() int {
	return int(d % DifficultyScale)
}

// Scaled returns the raw wire-format scaled integer value.
func (d Difficulty) Scaled() uint16 {
	return uint16(d)
}

// DifficultyFromScaled interprets a wire-format difficulty_scaled value.
func DifficultyFromScaled(scaled uint16) Difficulty {
	return Difficulty(scaled)
}
