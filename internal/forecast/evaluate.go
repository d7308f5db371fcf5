package forecast

import "math"

// APE returns the absolute percentage error of forecast against actual.
// ok is false when actual is not positive and the error is undefined.
func APE(actual, forecast float64) (ape float64, ok bool) {
	if !(actual > 0) {
		return 0, false
	}
	return math.Abs(actual-forecast) / actual * 100, true
}

// MAPE returns the mean absolute percentage error over the test window of w.
// Positions with a non-positive actual or without a forecast are skipped.
// The result is 0 when no position qualifies.
func MAPE(actual Series, forecasts []float64, w Window) float64 {
	return mapeFrom(actual, forecasts, w, 0)
}

// Evaluate is MAPE over a smoothing result, excluding a seed-only position.
func Evaluate(actual Series, r Result, w Window) float64 {
	from := 0
	if r.SeedOnly {
		from = 1
	}
	return mapeFrom(actual, r.Forecasts, w, from)
}

func mapeFrom(actual Series, forecasts []float64, w Window, from int) float64 {
	end := min(w.TestStart+w.TestCount, len(actual), len(forecasts))

	var sum float64
	var count int
	for t := max(w.TestStart, from); t < end; t++ {
		if ape, ok := APE(actual[t], forecasts[t]); ok {
			sum += ape
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
