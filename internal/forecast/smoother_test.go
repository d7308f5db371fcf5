package forecast

import (
	"math"
	"testing"
)

func TestUseFallback(t *testing.T) {
	tests := []struct {
		name   string
		n      int
		period int
		gamma  float64
		want   bool
	}{
		{"shorter than season", 5, 12, 0.1, true},
		{"gamma disables seasonality", 24, 12, 0, true},
		{"full season", 12, 12, 0.1, false},
		{"period one always qualifies", 1, 1, 0.1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UseFallback(tt.n, tt.period, tt.gamma); got != tt.want {
				t.Errorf("UseFallback(%d, %d, %v) = %v, want %v", tt.n, tt.period, tt.gamma, got, tt.want)
			}
		})
	}
}

func TestSmooth_ZeroObservationsAreGaps(t *testing.T) {
	y := Series{5, 0, 5, 0, 5, 0, 5, 0, 5, 0, 5, 0}
	st, err := Seed(y, 12, InitConfig{})
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	r, err := Smooth(y, Params{Alpha: 0.3, Beta: 0.3, Gamma: 0.1}, 12, InitConfig{})
	if err != nil {
		t.Fatalf("Smooth() error = %v", err)
	}
	if r.Method != MethodHoltWinters {
		t.Fatalf("Method = %s, want %s", r.Method, MethodHoltWinters)
	}

	for i, v := range y {
		if v != 0 {
			continue
		}
		prevLevel, prevTrend := r.Levels[i-1], r.Trends[i-1]
		if !approx(r.Levels[i], prevLevel+prevTrend, tolerance) {
			t.Errorf("Levels[%d] = %v, want %v", i, r.Levels[i], prevLevel+prevTrend)
		}
		if r.Trends[i] != prevTrend {
			t.Errorf("Trends[%d] = %v, want unchanged %v", i, r.Trends[i], prevTrend)
		}
		// period 12 over 12 positions: every slot is visited once, so an
		// unchanged slot still holds its seed.
		if r.Seasonals[i] != st.Seasonals[i] {
			t.Errorf("Seasonals[%d] = %v, want seed %v", i, r.Seasonals[i], st.Seasonals[i])
		}
	}
}

func TestSmooth_ShortSeriesFallsBack(t *testing.T) {
	y := Series{1.2, 0.8, 1.1, 0.9, 1.0}
	r, err := Smooth(y, Params{Alpha: 0.3, Beta: 0.3, Gamma: 0.1}, 12, InitConfig{})
	if err != nil {
		t.Fatalf("Smooth() error = %v", err)
	}
	if r.Method != MethodDoubleExponential {
		t.Errorf("Method = %s, want %s", r.Method, MethodDoubleExponential)
	}
}

func TestSmooth_GammaZeroFallsBack(t *testing.T) {
	y := Series{1, 2, 3, 4, 5, 6, 7, 8}
	r, err := Smooth(y, Params{Alpha: 0.5, Beta: 0.5, Gamma: 0}, 1,
		InitConfig{Policy: InitFixedConstant, LevelWindow: 6, TrendDivisor: 9.722})
	if err != nil {
		t.Fatalf("Smooth() error = %v", err)
	}
	if r.Method != MethodDoubleExponential {
		t.Errorf("Method = %s, want %s", r.Method, MethodDoubleExponential)
	}
}

func TestSmooth_FixedWindowTooShortFallsBack(t *testing.T) {
	y := Series{1, 2, 3}
	r, err := Smooth(y, Params{Alpha: 0.3, Beta: 0.7, Gamma: 0.1}, 1,
		InitConfig{Policy: InitFixedConstant, LevelWindow: 6, TrendDivisor: 25})
	if err != nil {
		t.Fatalf("Smooth() error = %v", err)
	}
	if r.Method != MethodDoubleExponential {
		t.Errorf("Method = %s, want %s", r.Method, MethodDoubleExponential)
	}
}

func TestDoubleExponential_LinearSeries(t *testing.T) {
	r := DoubleExponential(Series{1, 2, 3, 4}, Params{Alpha: 0.5, Beta: 0.5})
	wantF := []float64{2, 3, 4, 5}
	for i, want := range wantF {
		if !approx(r.Forecasts[i], want, tolerance) {
			t.Errorf("Forecasts[%d] = %v, want %v", i, r.Forecasts[i], want)
		}
	}
	if !approx(r.Next, 5, tolerance) {
		t.Errorf("Next = %v, want 5", r.Next)
	}
}

func TestDoubleExponential_Degenerate(t *testing.T) {
	empty := DoubleExponential(nil, DefaultParams())
	if empty.Next != 0 || len(empty.Levels) != 0 {
		t.Errorf("empty series: Next = %v, len = %d", empty.Next, len(empty.Levels))
	}

	single := DoubleExponential(Series{0.75}, DefaultParams())
	if single.Next != 0.75 || single.Levels[0] != 0.75 || single.Forecasts[0] != 0.75 {
		t.Errorf("single series = %+v, want level and forecast 0.75", single)
	}
}

func TestSmooth_NextIsNeverNegative(t *testing.T) {
	falling := Series{10, 8, 6, 4, 2, 1}

	des := DoubleExponential(falling, Params{Alpha: 0.9, Beta: 0.9})
	last := len(falling) - 1
	if raw := des.Levels[last] + des.Trends[last]; raw >= 0 {
		t.Fatalf("test series should drive the raw forecast negative, got %v", raw)
	}
	if des.Next != 0 {
		t.Errorf("Next = %v, want 0", des.Next)
	}

	params := []Params{{0.9, 0.9, 0.9}, {0.1, 0.1, 0.1}, {1, 1, 1}, {0, 0, 0.5}}
	for _, p := range params {
		for _, period := range []int{1, 2, 3} {
			r, err := Smooth(falling, p, period, InitConfig{})
			if err != nil {
				t.Fatalf("Smooth(%s, %d) error = %v", p, period, err)
			}
			if r.Next < 0 || math.IsNaN(r.Next) {
				t.Errorf("Smooth(%s, %d).Next = %v, want >= 0", p, period, r.Next)
			}
		}
	}
}

func TestSmooth_ArraysMatchSeriesLength(t *testing.T) {
	fixed := InitConfig{Policy: InitFixedConstant, LevelWindow: 6, TrendDivisor: 25}
	for n := 0; n <= 30; n++ {
		y := make(Series, n)
		for i := range y {
			y[i] = 1 + float64(i%5)*0.1
		}
		for _, init := range []InitConfig{{}, fixed} {
			for _, period := range []int{1, 4, 12} {
				r, err := Smooth(y, Params{0.3, 0.7, 0.1}, period, init)
				if err != nil {
					t.Fatalf("Smooth(n=%d, period=%d) error = %v", n, period, err)
				}
				for name, arr := range map[string][]float64{
					"levels": r.Levels, "trends": r.Trends, "seasonals": r.Seasonals, "forecasts": r.Forecasts,
				} {
					if len(arr) != n {
						t.Errorf("n=%d period=%d init=%s: len(%s) = %d", n, period, init.Policy, name, len(arr))
					}
				}
			}
		}
	}
}

func TestHoltWinters_SkipFirstUpdate(t *testing.T) {
	y := Series{0.5, 0.6, 0.7, 0.4, 0.5, 0.6, 0.55}
	st, err := Seed(y, 1, InitConfig{Policy: InitFixedConstant, LevelWindow: 6, TrendDivisor: 25})
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	r := HoltWinters(y, Params{0.3, 0.7, 0.1}, 1, st)

	if r.Levels[0] != st.Level || r.Trends[0] != st.Trend || r.Seasonals[0] != st.Seasonals[0] {
		t.Errorf("position 0 changed state: L=%v T=%v S=%v", r.Levels[0], r.Trends[0], r.Seasonals[0])
	}
	// S0 = y0 - (L+T), so the first recorded forecast equals y0.
	if !approx(r.Forecasts[0], y[0], tolerance) {
		t.Errorf("Forecasts[0] = %v, want %v", r.Forecasts[0], y[0])
	}
	if r.Scored(0) {
		t.Error("seed position must not be scored")
	}
	if !r.Scored(1) {
		t.Error("position 1 must be scored")
	}
}

func TestSmooth_InvalidConfig(t *testing.T) {
	if _, err := Smooth(Series{1, 2, 3}, Params{Alpha: 2}, 1, InitConfig{}); err == nil {
		t.Error("expected error for alpha outside [0,1]")
	}
	if _, err := Smooth(Series{1, 2, 3}, DefaultParams(), 0, InitConfig{}); err == nil {
		t.Error("expected error for period 0")
	}
}
