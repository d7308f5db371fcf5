package forecast

import (
	"fmt"
	"math"
)

// Extraction selects how the externally visible value is taken from a Result.
type Extraction int

const (
	// ExtractNext uses the one-step-ahead forecast.
	ExtractNext Extraction = iota
	// ExtractTestMean averages the recorded forecasts across the test window.
	ExtractTestMean
)

func (e Extraction) String() string {
	switch e {
	case ExtractNext:
		return "next"
	case ExtractTestMean:
		return "test-mean"
	default:
		return fmt.Sprintf("Extraction(%d)", int(e))
	}
}

// ParseExtraction converts a configuration string into an Extraction.
func ParseExtraction(s string) (Extraction, error) {
	switch s {
	case "", "next":
		return ExtractNext, nil
	case "test-mean", "test_mean", "mean":
		return ExtractTestMean, nil
	}
	return 0, fmt.Errorf("unknown extraction %q", s)
}

// Extract returns the forecast value under e, clamped to be non-negative.
// ExtractTestMean falls back to Next when the test window holds no forecast.
func Extract(r Result, w Window, e Extraction) float64 {
	if e == ExtractTestMean {
		end := min(w.TestStart+w.TestCount, len(r.Forecasts))
		if end > w.TestStart {
			var sum float64
			for _, f := range r.Forecasts[w.TestStart:end] {
				sum += f
			}
			return math.Max(0, sum/float64(end-w.TestStart))
		}
	}
	return math.Max(0, r.Next)
}
