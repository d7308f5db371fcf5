package forecast

import (
	"fmt"
	"math"
)

// WindowStrategy selects which positions form the test window.
type WindowStrategy int

const (
	// FixedCycle tests positions 10 and 11 of a 12-position cycle.
	FixedCycle WindowStrategy = iota
	// PercentageSplit tests the trailing max(1, round(n*ratio)) positions.
	PercentageSplit
)

// Fixed-cycle geometry.
const (
	CycleLength    = 12
	CycleTestStart = 10
)

// DefaultTestRatio is the test share of the percentage split.
const DefaultTestRatio = 0.2

func (s WindowStrategy) String() string {
	switch s {
	case FixedCycle:
		return "fixed-cycle"
	case PercentageSplit:
		return "percentage-split"
	default:
		return fmt.Sprintf("WindowStrategy(%d)", int(s))
	}
}

// ParseWindowStrategy converts a configuration string into a WindowStrategy.
func ParseWindowStrategy(s string) (WindowStrategy, error) {
	switch s {
	case "", "fixed-cycle", "fixed_cycle":
		return FixedCycle, nil
	case "percentage-split", "percentage_split", "split":
		return PercentageSplit, nil
	}
	return 0, fmt.Errorf("unknown window strategy %q", s)
}

// Window partitions a series into training and test positions. The test
// positions are [TestStart, TestStart+TestCount); every other position is
// training, so TrainCount+TestCount equals the series length.
type Window struct {
	TrainCount int `json:"train_count"`
	TestCount  int `json:"test_count"`
	TestStart  int `json:"test_start"`
}

// Contains reports whether position t is in the test window.
func (w Window) Contains(t int) bool {
	return t >= w.TestStart && t < w.TestStart+w.TestCount
}

// NewWindow builds the evaluation window for a series of length n.
// ratio is only consulted by PercentageSplit; values outside (0,1) use
// DefaultTestRatio.
func NewWindow(n int, s WindowStrategy, ratio float64) Window {
	if n < 0 {
		n = 0
	}

	switch s {
	case PercentageSplit:
		if n < 2 {
			return Window{TrainCount: n, TestStart: n}
		}
		if !(ratio > 0 && ratio < 1) {
			ratio = DefaultTestRatio
		}
		test := max(1, int(math.Round(float64(n)*ratio)))
		return Window{TrainCount: n - test, TestCount: test, TestStart: n - test}
	default:
		start := min(CycleTestStart, n)
		test := max(0, min(CycleLength, n)-start)
		return Window{TrainCount: n - test, TestCount: test, TestStart: start}
	}
}
