package forecast

import (
	"context"
	"fmt"
)

// DefaultMinObservations is the fewest cleaned observations Run forecasts from.
const DefaultMinObservations = 2

// Config is the resolved configuration of one pipeline run.
type Config struct {
	Period int
	Params Params // fixed parameters, or the search defaults when Search is set

	Search bool
	Grid   Grid

	Init       InitConfig
	Strategy   WindowStrategy
	TestRatio  float64
	Extraction Extraction

	MaxCycle        int  // 0 keeps the whole series
	DropZeros       bool // remove interior zeros instead of treating them as gaps
	MinObservations int  // 0 means DefaultMinObservations
}

// Validate rejects configuration defects before any data is processed.
func (c Config) Validate() error {
	if c.Period < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidPeriod, c.Period)
	}
	if err := c.Params.Validate(); err != nil {
		return err
	}
	if c.Search {
		if err := c.Grid.Validate(); err != nil {
			return err
		}
	}
	if err := c.Init.Validate(); err != nil {
		return err
	}
	if c.Strategy == PercentageSplit && c.TestRatio != 0 && !(c.TestRatio > 0 && c.TestRatio < 1) {
		return fmt.Errorf("%w: test ratio %v", ErrInvalidWindow, c.TestRatio)
	}
	if c.MaxCycle < 0 {
		return fmt.Errorf("%w: max cycle %d", ErrInvalidWindow, c.MaxCycle)
	}
	return nil
}

// Status is the data outcome of a run.
type Status string

const (
	StatusOK               Status = "ok"
	StatusInsufficientData Status = "insufficient_data"
)

// Outcome is everything a pipeline run produces.
type Outcome struct {
	Status   Status
	Series   Series
	Result   Result
	Window   Window
	Params   Params
	MAPE     float64
	Value    float64 // extracted forecast in hours, never negative
	Searched bool
}

// Run executes Preprocess, parameter search when configured, Smooth,
// Evaluate and Extract. A series too short to forecast is reported through
// Outcome.Status; the error is reserved for configuration defects and
// context cancellation.
func Run(ctx context.Context, raw []float64, cfg Config) (Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return Outcome{}, err
	}

	y := Preprocess(raw, cfg.MaxCycle, cfg.DropZeros)
	minObs := cfg.MinObservations
	if minObs <= 0 {
		minObs = DefaultMinObservations
	}
	if y.Len() < minObs {
		return Outcome{Status: StatusInsufficientData, Series: y, Params: cfg.Params}, nil
	}

	w := NewWindow(y.Len(), cfg.Strategy, cfg.TestRatio)

	params := cfg.Params
	var searched bool
	if cfg.Search {
		sr, err := Search(ctx, y, SearchSpace{
			Grid:     cfg.Grid,
			Defaults: cfg.Params,
			Period:   cfg.Period,
			Init:     cfg.Init,
			Window:   w,
		})
		if err != nil {
			return Outcome{}, err
		}
		params, searched = sr.Params, sr.Searched
	}

	r, err := Smooth(y, params, cfg.Period, cfg.Init)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Status:   StatusOK,
		Series:   y,
		Result:   r,
		Window:   w,
		Params:   params,
		MAPE:     Evaluate(y, r, w),
		Value:    Extract(r, w, cfg.Extraction),
		Searched: searched,
	}, nil
}
