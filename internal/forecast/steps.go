package forecast

import (
	"math"
	"strconv"
)

// Phase tags a position as training or test.
type Phase string

const (
	PhaseTrain Phase = "train"
	PhaseTest  Phase = "test"
)

// Step is one row of the audit table of a run.
type Step struct {
	Index    int     `json:"index"`
	Label    string  `json:"label"`
	Actual   float64 `json:"actual"`
	Level    float64 `json:"level"`
	Trend    float64 `json:"trend"`
	Seasonal float64 `json:"seasonal"`
	Forecast float64 `json:"forecast"`
	Error    float64 `json:"error"`
	AbsError float64 `json:"abs_error"`
	APE      float64 `json:"ape"`
	HasAPE   bool    `json:"has_ape"`
	Phase    Phase   `json:"phase"`
}

// Steps expands an outcome into its audit table. labels[t] names position t;
// missing labels default to "t1", "t2", ...
func Steps(o Outcome, labels []string) []Step {
	if o.Status != StatusOK {
		return nil
	}

	r := o.Result
	steps := make([]Step, len(o.Series))
	for t, actual := range o.Series {
		s := Step{
			Index:    t,
			Label:    label(labels, t),
			Actual:   actual,
			Level:    r.Levels[t],
			Trend:    r.Trends[t],
			Seasonal: r.Seasonals[t],
			Forecast: r.Forecasts[t],
			Phase:    PhaseTrain,
		}
		if o.Window.Contains(t) {
			s.Phase = PhaseTest
		}
		if r.Scored(t) {
			s.Error = actual - s.Forecast
			s.AbsError = math.Abs(s.Error)
			s.APE, s.HasAPE = APE(actual, s.Forecast)
		}
		steps[t] = s
	}
	return steps
}

func label(labels []string, t int) string {
	if t < len(labels) && labels[t] != "" {
		return labels[t]
	}
	return "t" + strconv.Itoa(t+1)
}
