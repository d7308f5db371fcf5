package forecast

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// MinSearchObservations is the shortest series a grid search is attempted on.
// Shorter series keep the default parameters.
const MinSearchObservations = 4

// Grid lists the candidate values per coefficient, each in ascending order.
type Grid struct {
	Alphas []float64 `json:"alphas"`
	Betas  []float64 `json:"betas"`
	Gammas []float64 `json:"gammas"`
}

// DefaultGrid is the coarse 0.2-step grid over (0,1) for every coefficient.
func DefaultGrid() Grid {
	return StepGrid(0.1, 0.9, 0.2)
}

// StepGrid returns lo, lo+step, ... up to hi inclusive for all three
// coefficients. Values are computed by index to avoid accumulated drift.
func StepGrid(lo, hi, step float64) Grid {
	var vals []float64
	if step > 0 {
		for i := 0; ; i++ {
			v := math.Round((lo+float64(i)*step)*1e9) / 1e9
			if v > hi+1e-9 {
				break
			}
			vals = append(vals, v)
		}
	}
	return Grid{Alphas: vals, Betas: vals, Gammas: vals}
}

// Size returns the number of parameter triples in the grid.
func (g Grid) Size() int {
	return len(g.Alphas) * len(g.Betas) * len(g.Gammas)
}

// Validate checks every candidate value lies in [0, 1].
func (g Grid) Validate() error {
	for _, vals := range [][]float64{g.Alphas, g.Betas, g.Gammas} {
		for _, v := range vals {
			if !(v >= 0 && v <= 1) {
				return fmt.Errorf("%w: grid value %v outside [0,1]", ErrInvalidParams, v)
			}
		}
	}
	return nil
}

// Candidates enumerates the grid in ascending (alpha, beta, gamma) order.
// When short is set the gamma axis collapses to its first value, since the
// seasonal term cannot influence a series shorter than one season.
func (g Grid) Candidates(short bool) []Params {
	gammas := g.Gammas
	if short && len(gammas) > 1 {
		gammas = gammas[:1]
	}
	out := make([]Params, 0, len(g.Alphas)*len(g.Betas)*len(gammas))
	for _, a := range g.Alphas {
		for _, b := range g.Betas {
			for _, c := range gammas {
				out = append(out, Params{Alpha: a, Beta: b, Gamma: c})
			}
		}
	}
	return out
}

// SearchSpace bundles what a grid search holds fixed across candidates.
type SearchSpace struct {
	Grid     Grid
	Defaults Params
	Period   int
	Init     InitConfig
	Window   Window
}

// SearchResult is the outcome of a grid search.
type SearchResult struct {
	Params    Params
	MAPE      float64
	Evaluated int  // candidates evaluated, including the defaults
	Searched  bool // false when the series was too short to search
}

// Search returns the parameter triple with the lowest test-window MAPE.
// The defaults are evaluated first and only a strictly lower MAPE replaces
// them, so the result is never worse than the defaults. Ties keep the first
// candidate in ascending grid order. Candidates are evaluated concurrently
// and reduced by grid index, so the answer does not depend on scheduling.
func Search(ctx context.Context, y Series, space SearchSpace) (SearchResult, error) {
	base, err := Smooth(y, space.Defaults, space.Period, space.Init)
	if err != nil {
		return SearchResult{}, fmt.Errorf("evaluate defaults: %w", err)
	}
	best := SearchResult{
		Params:    space.Defaults,
		MAPE:      finite(Evaluate(y, base, space.Window)),
		Evaluated: 1,
	}
	if y.Len() < MinSearchObservations {
		return best, nil
	}

	short := y.Len() < space.Period && space.Period > 1
	candidates := space.Grid.Candidates(short)
	scores := make([]float64, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := Smooth(y, p, space.Period, space.Init)
			if err != nil {
				return fmt.Errorf("evaluate %s: %w", p, err)
			}
			scores[i] = finite(Evaluate(y, r, space.Window))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return SearchResult{}, err
	}

	for i, score := range scores {
		if score < best.MAPE {
			best.Params = candidates[i]
			best.MAPE = score
		}
	}
	best.Evaluated += len(candidates)
	best.Searched = true
	return best, nil
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return math.Inf(1)
	}
	return v
}
