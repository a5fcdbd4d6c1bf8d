// Package scoring implements the normalization and weighted composite
// scoring used to summarize per-domain sustainability metrics.
package scoring

// Normalize maps value from [minValue, maxValue] onto a 0-100 scale. When
// reverse is set, lower raw values score higher. A zero-width range returns
// the scale midpoint. The result is not clamped: values outside the range
// produce scores outside [0, 100].
func Normalize(value, minValue, maxValue float64, reverse bool) float64 {
	if maxValue == minValue {
		return 50.0
	}
	score := (value - minValue) / (maxValue - minValue) * 100
	if reverse {
		return 100 - score
	}
	return score
}

// NormalizeSeries min-max normalizes values into [low, high] using the range
// of the series itself. If every value is equal, each output is the midpoint
// of [low, high].
func NormalizeSeries(values []float64, low, high float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	mn, mx := values[0], values[0]
	for _, v := range values[1:] {
		mn = min(mn, v)
		mx = max(mx, v)
	}

	if mx == mn {
		mid := (low + high) / 2
		for i := range out {
			out[i] = mid
		}
		return out
	}

	for i, v := range values {
		out[i] = low + (v-mn)/(mx-mn)*(high-low)
	}
	return out
}

// Clamp bounds value to [lo, hi].
func Clamp(value, lo, hi float64) float64 {
	return max(lo, min(hi, value))
}

// ClampScore bounds value to the display range [0, 100].
func ClampScore(value float64) float64 {
	return Clamp(value, 0, 100)
}
