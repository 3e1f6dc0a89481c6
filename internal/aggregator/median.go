package aggregator

import (
	"math"
	"sort"
)

// Median returns the middle value of values, or the mean of the two middle
// values for an even count. ok is false for an empty input. values is not
// modified.
func Median(values []float64) (median float64, ok bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := n / 2
	if n%2 == 1 {
		return sorted[mid], true
	}
	return (sorted[mid-1] + sorted[mid]) / 2, true
}

// Round rounds half up at the given decimal places: 2.5 becomes 3 and -2.5
// becomes -2.
func Round(x float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Floor(x*scale+0.5) / scale
}
