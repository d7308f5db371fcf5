package forecast

import (
	"errors"
	"math"
)

// Method names the recursion that produced a Result.
type Method string

const (
	MethodHoltWinters       Method = "holt_winters"
	MethodDoubleExponential Method = "double_exponential"
)

// Result is the per-position output of a smoothing run. Levels, Trends,
// Seasonals and Forecasts all have one entry per series position.
type Result struct {
	Method Method
	Period int

	Levels    []float64
	Trends    []float64
	Seasonals []float64 // seasonal value of slot t mod period after position t
	Forecasts []float64 // value recorded at position t

	// Next is the one-step-ahead forecast after the last position, never negative.
	Next float64

	// SeedOnly is set when position 0 only seeded the state and carries no error.
	SeedOnly bool
}

// Scored reports whether position t carries an error term.
func (r Result) Scored(t int) bool {
	if t < 0 || t >= len(r.Forecasts) {
		return false
	}
	return !(r.SeedOnly && t == 0)
}

// UseFallback reports whether the seasonal recursion must be replaced by
// double exponential smoothing: the series is shorter than one season, or
// gamma disables the seasonal term.
func UseFallback(n, period int, gamma float64) bool {
	return (n < period && period > 1) || gamma == 0
}

// Smooth runs the additive Holt-Winters recursion over y, or the double
// exponential fallback when UseFallback holds or y is too short for the
// initialization policy. Only configuration defects are returned as errors.
func Smooth(y Series, p Params, period int, init InitConfig) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	if UseFallback(y.Len(), period, p.Gamma) {
		return DoubleExponential(y, p), nil
	}

	st, err := Seed(y, period, init)
	if errors.Is(err, ErrInsufficientData) {
		return DoubleExponential(y, p), nil
	}
	if err != nil {
		return Result{}, err
	}
	return HoltWinters(y, p, period, st), nil
}

// HoltWinters runs the additive recursion from a prepared initial state.
// Zero observations are gaps: the level advances by the trend and the
// trend and seasonal slot are left unchanged.
func HoltWinters(y Series, p Params, period int, st InitialState) Result {
	n := y.Len()
	r := Result{
		Method:    MethodHoltWinters,
		Period:    period,
		Levels:    make([]float64, n),
		Trends:    make([]float64, n),
		Seasonals: make([]float64, n),
		Forecasts: make([]float64, n),
		SeedOnly:  st.SkipFirstUpdate,
	}

	seasonal := make([]float64, period)
	copy(seasonal, st.Seasonals)
	level, trend := st.Level, st.Trend

	for t, v := range y {
		s := t % period
		r.Forecasts[t] = level + trend + seasonal[s]

		switch {
		case st.SkipFirstUpdate && t == 0:
		case v <= 0:
			level += trend
		default:
			prev := level
			level = p.Alpha*(v-seasonal[s]) + (1-p.Alpha)*(prev+trend)
			trend = p.Beta*(level-prev) + (1-p.Beta)*trend
			seasonal[s] = p.Gamma*(v-level) + (1-p.Gamma)*seasonal[s]
		}

		r.Levels[t] = level
		r.Trends[t] = trend
		r.Seasonals[t] = seasonal[s]
	}

	r.Next = math.Max(0, level+trend+seasonal[n%period])
	return r
}

// DoubleExponential runs Holt's linear method. The forecast recorded at
// position t is L[t]+T[t]. A single observation is returned as both level
// and forecast; an empty series yields an empty result with Next 0.
func DoubleExponential(y Series, p Params) Result {
	n := y.Len()
	r := Result{
		Method:    MethodDoubleExponential,
		Period:    1,
		Levels:    make([]float64, n),
		Trends:    make([]float64, n),
		Seasonals: make([]float64, n),
		Forecasts: make([]float64, n),
	}

	switch n {
	case 0:
		return r
	case 1:
		r.Levels[0] = y[0]
		r.Forecasts[0] = y[0]
		r.Next = math.Max(0, y[0])
		return r
	}

	level, trend := y[0], y[1]-y[0]
	r.Levels[0], r.Trends[0], r.Forecasts[0] = level, trend, level+trend

	for t := 1; t < n; t++ {
		prev := level
		if y[t] <= 0 {
			level += trend
		} else {
			level = p.Alpha*y[t] + (1-p.Alpha)*(prev+trend)
			trend = p.Beta*(level-prev) + (1-p.Beta)*trend
		}
		r.Levels[t], r.Trends[t], r.Forecasts[t] = level, trend, level+trend
	}

	r.Next = math.Max(0, level+trend)
	return r
}
