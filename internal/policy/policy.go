// Package policy resolves the forecasting configuration for a (group,
// activity) pair from a data-driven table. The engine only ever sees the
// resolved forecast.Config, never group or activity identity.
package policy

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/fieldcast/fieldcast/internal/forecast"
	"github.com/fieldcast/fieldcast/pkg/models"
)

// Built-in policy names.
const (
	NameDefault         = "default"
	NamePercentageSplit = "percentage-split"
)

// Policy is the resolved forecasting configuration of one series.
type Policy struct {
	Name       string
	Period     int
	Params     forecast.Params
	Search     bool
	Grid       forecast.Grid
	Init       forecast.InitConfig
	Strategy   forecast.WindowStrategy
	TestRatio  float64
	Extraction forecast.Extraction
	MaxCycle   int
	DropZeros  bool

	// Aggregate shapes the report history before it reaches the engine.
	Aggregate Aggregation
	// Lookback is the number of whole months before the month of the latest
	// observation that monthly aggregation keeps; 0 keeps every month.
	Lookback  int
}

// EngineConfig converts the policy into an engine configuration.
func (p Policy) EngineConfig() forecast.Config {
	return forecast.Config{
		Period:     p.Period,
		Params:     p.Params,
		Search:     p.Search,
		Grid:       p.Grid,
		Init:       p.Init,
		Strategy:   p.Strategy,
		TestRatio:  p.TestRatio,
		Extraction: p.Extraction,
		MaxCycle:   p.MaxCycle,
		DropZeros:  p.DropZeros,
	}
}

// Validate reports configuration defects of the policy.
func (p Policy) Validate() error {
	if p.Lookback < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLookback, p.Lookback)
	}
	return p.EngineConfig().Validate()
}

// Default is the fallback for series without a calibrated entry: monthly
// means over the lookback, a monthly cycle, generic seeding and a 0.2-step
// grid search. Every aggregated month reaches the engine.
func Default() Policy {
	return Policy{
		Name:       NameDefault,
		Period:     12,
		Params:     forecast.DefaultParams(),
		Search:     true,
		Grid:       forecast.DefaultGrid(),
		Init:       forecast.InitConfig{Policy: forecast.InitGeneric},
		Strategy:   forecast.FixedCycle,
		Extraction: forecast.ExtractNext,
		Aggregate:  AggregateMonthly,
		Lookback:   DefaultLookback,
	}
}

// Calibrated is a fixed-parameter policy seeded with the fixed-constant
// initializer over one seasonal slot. It keeps the first cycle of monthly
// means in the lookback.
func Calibrated(name string, params forecast.Params, divisor float64) Policy {
	return Policy{
		Name:   name,
		Period: 1,
		Params: params,
		Init: forecast.InitConfig{
			Policy:       forecast.InitFixedConstant,
			LevelWindow:  forecast.DefaultLevelWindow,
			TrendDivisor: divisor,
		},
		Strategy:   forecast.FixedCycle,
		Extraction: forecast.ExtractNext,
		MaxCycle:   forecast.CycleLength,
		Aggregate:  AggregateMonthly,
		Lookback:   DefaultLookback,
	}
}

// PercentageSplit evaluates on the trailing 20% of a variable-length history
// and reports the test-window mean forecast. Every report is one
// observation.
func PercentageSplit() Policy {
	return Policy{
		Name:   NamePercentageSplit,
		Period: 1,
		Params: forecast.DefaultParams(),
		Search: true,
		Grid: forecast.Grid{
			Alphas: []float64{0.2, 0.4, 0.6},
			Betas:  []float64{0.2, 0.4, 0.6},
			Gammas: []float64{0.2, 0.4},
		},
		Init: forecast.InitConfig{
			Policy:         forecast.InitFixedConstant,
			LevelWindow:    5,
			TrendDivisor:   18,
			PerObservation: true,
		},
		Strategy:   forecast.PercentageSplit,
		TestRatio:  forecast.DefaultTestRatio,
		Extraction: forecast.ExtractTestMean,
	}
}

// Key identifies a table entry.
type Key struct {
	Group    string          `json:"group"`
	Activity models.Activity `json:"activity"`
}

// NewKey builds a key with a normalized group name.
func NewKey(group string, a models.Activity) Key {
	return Key{Group: NormalizeGroup(group), Activity: a}
}

func (k Key) String() string {
	return k.Group + "/" + k.Activity.Slug()
}

// NormalizeGroup lowercases a group name and removes all whitespace, so
// "Kelompok 1" and "kelompok1" share a key.
func NormalizeGroup(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, name)
}

// Summary is the display form of a policy, with enums rendered as names.
type Summary struct {
	Name           string          `json:"name"`
	Period         int             `json:"period"`
	Params         forecast.Params `json:"params"`
	Search         bool            `json:"search"`
	GridSize       int             `json:"grid_size,omitempty"`
	Init           string          `json:"init"`
	LevelWindow    int             `json:"level_window,omitempty"`
	TrendDivisor   float64         `json:"trend_divisor,omitempty"`
	PerObservation bool            `json:"per_observation,omitempty"`
	Strategy       string          `json:"strategy"`
	TestRatio      float64         `json:"test_ratio,omitempty"`
	Extraction     string          `json:"extraction"`
	MaxCycle       int             `json:"max_cycle"`
	DropZeros      bool            `json:"drop_zeros"`
	Aggregate      string          `json:"aggregate"`
	Lookback       int             `json:"lookback_months,omitempty"`
}

// Summarize returns the display form of p.
func (p Policy) Summarize() Summary {
	s := Summary{
		Name:       p.Name,
		Period:     p.Period,
		Params:     p.Params,
		Search:     p.Search,
		Init:       p.Init.Policy.String(),
		Strategy:   p.Strategy.String(),
		Extraction: p.Extraction.String(),
		MaxCycle:   p.MaxCycle,
		DropZeros:  p.DropZeros,
		Aggregate:  p.Aggregate.String(),
	}
	if p.Aggregate == AggregateMonthly {
		s.Lookback = p.Lookback
	}
	if p.Search {
		s.GridSize = p.Grid.Size()
	}
	if p.Init.Policy == forecast.InitFixedConstant {
		s.LevelWindow = p.Init.LevelWindow
		s.TrendDivisor = p.Init.TrendDivisor
		s.PerObservation = p.Init.PerObservation
	}
	if p.Strategy == forecast.PercentageSplit {
		s.TestRatio = p.TestRatio
	}
	return s
}
