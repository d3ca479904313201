package mathx

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RoundHalfAway rounds x to the nearest integer, halves away from zero.
func RoundHalfAway[T constraints.Float](x T) int64 {
	if x >= 0 {
		return int64(x + 0.5)
	}
	return int64(x - 0.5)
}

// SaturateInt16 clamps v into the int16 range.
func SaturateInt16(v int64) int16 {
	return int16(Clamp(v, math.MinInt16, math.MaxInt16))
}
