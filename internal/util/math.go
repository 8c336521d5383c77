package util

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Coerce returns a value that is at least min and at most max, otherwise equal to value
func Coerce[T constraints.Ordered](value T, min T, max T) T {
	if value > max {
		return max
	}
	if value < min {
		return min
	}
	return value
}

// Ratio calculates the ration that target has in comparison to rangeMin and rangeMax
// Make sure that:
// rangeMin <= target <= rangeMax
// rangeMax - rangeMin != 0
func Ratio(target float64, rangeMin float64, rangeMax float64) float64 {
	return (target - rangeMin) / (rangeMax - rangeMin)
}

// RoundTo rounds value to the given number of decimal places
func RoundTo(value float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(value*factor) / factor
}

// Percentage converts a duty cycle value in [0..255] into percent, rounded to one decimal
func Percentage(value int, max int) float64 {
	if max == 0 {
		return 0
	}
	return RoundTo(float64(value)/float64(max)*100, 1)
}
