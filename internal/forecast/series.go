// Package forecast implements one-step-ahead duration forecasting with additive
// Holt-Winters smoothing, a double exponential smoothing fallback, grid-search
// parameter selection and MAPE evaluation over a configurable test window.
//
// The package is pure: it performs no I/O and never rounds intermediate values.
package forecast

import "math"

// Series is an ordered sequence of observed durations in hours.
type Series []float64

// Preprocess cleans a raw ordered sequence. Leading zero, negative and NaN
// entries are stripped. When dropZeros is set, interior non-positive entries
// are removed as well; otherwise they are kept and treated as gaps by the
// smoother. When maxCycle > 0 the result is truncated to its first maxCycle
// entries. The input slice is never modified.
func Preprocess(raw []float64, maxCycle int, dropZeros bool) Series {
	start := 0
	for start < len(raw) && !valid(raw[start]) {
		start++
	}

	out := make(Series, 0, len(raw)-start)
	for _, v := range raw[start:] {
		if math.IsNaN(v) {
			continue
		}
		if dropZeros && v <= 0 {
			continue
		}
		out = append(out, v)
	}

	if maxCycle > 0 && len(out) > maxCycle {
		out = out[:maxCycle]
	}
	return out
}

func valid(v float64) bool {
	return !math.IsNaN(v) && v > 0
}

// Len returns the number of observations.
func (s Series) Len() int { return len(s) }

// Sum returns the sum of the observations in [from, to).
func (s Series) Sum(from, to int) float64 {
	var sum float64
	for _, v := range s[from:to] {
		sum += v
	}
	return sum
}

// Mean returns the mean of the first k observations.
func (s Series) Mean(k int) float64 {
	if k <= 0 {
		return 0
	}
	return s.Sum(0, k) / float64(k)
}
