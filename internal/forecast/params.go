package forecast

import (
	"errors"
	"fmt"
)

// Configuration errors. These are caller defects and are reported by
// Config.Validate, never by the smoothing recursion itself.
var (
	ErrInvalidParams = errors.New("invalid smoothing parameters")
	ErrInvalidPeriod = errors.New("invalid seasonal period")
	ErrZeroDivisor   = errors.New("trend divisor must be non-zero")
	ErrInvalidWindow = errors.New("invalid evaluation window")
)

// ErrInsufficientData reports that a series is too short for the requested
// initialization policy. Smooth handles it by falling back to double
// exponential smoothing.
var ErrInsufficientData = errors.New("insufficient data")

// Params holds the smoothing coefficients.
type Params struct {
	Alpha float64 `json:"alpha" mapstructure:"alpha"` // level
	Beta  float64 `json:"beta" mapstructure:"beta"`   // trend
	Gamma float64 `json:"gamma" mapstructure:"gamma"` // seasonal; 0 disables seasonality
}

// DefaultParams returns the fallback coefficients used when a grid search is
// degenerate or finds nothing better.
func DefaultParams() Params {
	return Params{Alpha: 0.4, Beta: 0.3, Gamma: 0.3}
}

// Validate checks that every coefficient lies in [0, 1].
func (p Params) Validate() error {
	for _, c := range []struct {
		name string
		v    float64
	}{{"alpha", p.Alpha}, {"beta", p.Beta}, {"gamma", p.Gamma}} {
		if !(c.v >= 0 && c.v <= 1) {
			return fmt.Errorf("%w: %s=%v outside [0,1]", ErrInvalidParams, c.name, c.v)
		}
	}
	return nil
}

func (p Params) String() string {
	return fmt.Sprintf("alpha=%g beta=%g gamma=%g", p.Alpha, p.Beta, p.Gamma)
}
