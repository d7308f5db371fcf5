package forecast

import "fmt"

// InitPolicy selects how the seed level, trend and seasonals are derived.
type InitPolicy int

const (
	// InitGeneric seeds from the first one or two seasonal windows.
	InitGeneric InitPolicy = iota
	// InitFixedConstant seeds from a fixed-size level window and a configured
	// trend divisor, for specially calibrated series.
	InitFixedConstant
)

func (p InitPolicy) String() string {
	switch p {
	case InitGeneric:
		return "generic"
	case InitFixedConstant:
		return "fixed-constant"
	default:
		return fmt.Sprintf("InitPolicy(%d)", int(p))
	}
}

// ParseInitPolicy converts a configuration string into an InitPolicy.
func ParseInitPolicy(s string) (InitPolicy, error) {
	switch s {
	case "", "generic":
		return InitGeneric, nil
	case "fixed-constant", "fixed_constant", "fixed":
		return InitFixedConstant, nil
	}
	return 0, fmt.Errorf("unknown init policy %q", s)
}

// DefaultLevelWindow is the level window of the fixed-constant policy.
const DefaultLevelWindow = 6

// InitConfig parameterizes the initializer.
type InitConfig struct {
	Policy InitPolicy

	// LevelWindow is the number of leading observations averaged into the
	// seed level (fixed-constant only).
	LevelWindow int

	// TrendDivisor divides the first-to-last difference to obtain the seed
	// trend (fixed-constant only).
	TrendDivisor float64

	// PerObservation multiplies TrendDivisor by the series length, giving
	// trend = (y[n-1]-y[0]) / (n*TrendDivisor).
	PerObservation bool
}

// Validate reports configuration defects that can be detected without data.
func (c InitConfig) Validate() error {
	if c.Policy != InitFixedConstant {
		return nil
	}
	if c.LevelWindow < 1 {
		return fmt.Errorf("%w: level window %d", ErrInvalidWindow, c.LevelWindow)
	}
	if c.TrendDivisor == 0 {
		return ErrZeroDivisor
	}
	return nil
}

// InitialState is the seed of the Holt-Winters recursion.
type InitialState struct {
	Level     float64
	Trend     float64
	Seasonals []float64

	// SkipFirstUpdate marks position 0 as consumed by seeding: it records a
	// forecast but leaves the state untouched and produces no error.
	SkipFirstUpdate bool
}

// Seed derives the initial state of y for the given period. It returns
// ErrInsufficientData when y cannot fill the policy's window.
func Seed(y Series, period int, cfg InitConfig) (InitialState, error) {
	if period < 1 {
		return InitialState{}, fmt.Errorf("%w: %d", ErrInvalidPeriod, period)
	}
	if err := cfg.Validate(); err != nil {
		return InitialState{}, err
	}

	switch cfg.Policy {
	case InitFixedConstant:
		return seedFixed(y, period, cfg)
	default:
		return seedGeneric(y, period)
	}
}

func seedGeneric(y Series, m int) (InitialState, error) {
	n := y.Len()
	if n < m || n == 0 {
		return InitialState{}, fmt.Errorf("%w: %d observations for period %d", ErrInsufficientData, n, m)
	}

	level := y.Mean(m)

	var trend float64
	if k := min(m, n-m); k > 0 {
		trend = (y.Sum(m, m+k) - y.Sum(0, m)) / float64(m*m)
	}

	seasonals := make([]float64, m)
	for i := range seasonals {
		seasonals[i] = y[i] - level
	}

	return InitialState{Level: level, Trend: trend, Seasonals: seasonals}, nil
}

func seedFixed(y Series, m int, cfg InitConfig) (InitialState, error) {
	n := y.Len()
	if n < cfg.LevelWindow {
		return InitialState{}, fmt.Errorf("%w: %d observations for level window %d", ErrInsufficientData, n, cfg.LevelWindow)
	}

	divisor := cfg.TrendDivisor
	if cfg.PerObservation {
		divisor *= float64(n)
	}

	level := y.Mean(cfg.LevelWindow)
	trend := (y[n-1] - y[0]) / divisor

	// Only slot 0 is seeded; the remaining slots start neutral.
	seasonals := make([]float64, m)
	seasonals[0] = y[0] - (level + trend)

	return InitialState{
		Level:           level,
		Trend:           trend,
		Seasonals:       seasonals,
		SkipFirstUpdate: true,
	}, nil
}
