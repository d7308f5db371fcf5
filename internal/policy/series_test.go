package policy

import (
	"math"
	"testing"
	"time"

	"github.com/fieldcast/fieldcast/pkg/models"
	"github.com/fieldcast/fieldcast/pkg/roles"
)

func obs(date string, hours float64) roles.Observation {
	d, err := time.Parse(models.DateLayout, date)
	if err != nil {
		panic(err)
	}
	return roles.Observation{Date: d, Hours: hours}
}

func TestSeries_Monthly(t *testing.T) {
	history := []roles.Observation{
		obs("2023-11-20", 9),
		obs("2024-01-05", 0.5),
		obs("2024-01-20", 1.5),
		obs("2024-03-02", 2),
		obs("2025-02-10", 0.25),
		obs("2025-02-11", 0.75),
	}

	tests := []struct {
		name       string
		lookback   int
		wantRaw    []float64
		wantLabels []string
	}{
		{
			name:       "thirteen month lookback",
			lookback:   DefaultLookback,
			wantRaw:    []float64{1, 2, 0.5},
			wantLabels: []string{"2024-01", "2024-03", "2025-02"},
		},
		{
			name:       "twelve month lookback",
			lookback:   12,
			wantRaw:    []float64{2, 0.5},
			wantLabels: []string{"2024-03", "2025-02"},
		},
		{
			name:       "whole history",
			lookback:   0,
			wantRaw:    []float64{9, 1, 2, 0.5},
			wantLabels: []string{"2023-11", "2024-01", "2024-03", "2025-02"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			p.Lookback = tt.lookback
			raw, labels := p.Series(history)
			if len(raw) != len(tt.wantRaw) || len(labels) != len(tt.wantLabels) {
				t.Fatalf("Series() = %v %v, want %v %v", raw, labels, tt.wantRaw, tt.wantLabels)
			}
			for i := range raw {
				if math.Abs(raw[i]-tt.wantRaw[i]) > 1e-12 {
					t.Errorf("raw[%d] = %v, want %v", i, raw[i], tt.wantRaw[i])
				}
				if labels[i] != tt.wantLabels[i] {
					t.Errorf("labels[%d] = %q, want %q", i, labels[i], tt.wantLabels[i])
				}
			}
		})
	}
}

func TestSeries_PerReport(t *testing.T) {
	history := []roles.Observation{
		obs("2025-01-01", 0.5),
		obs("2025-01-01", 0.7),
		obs("2025-01-03", 0.4),
	}
	raw, labels := PercentageSplit().Series(history)
	if len(raw) != 3 || raw[1] != 0.7 {
		t.Errorf("raw = %v, want one position per report", raw)
	}
	if labels[2] != "2025-01-03" {
		t.Errorf("labels = %v", labels)
	}
}

func TestSeries_Empty(t *testing.T) {
	raw, labels := Default().Series(nil)
	if len(raw) != 0 || len(labels) != 0 {
		t.Errorf("Series(nil) = %v, %v", raw, labels)
	}
}

func TestBuiltin_Aggregation(t *testing.T) {
	table := Builtin()
	tests := []struct {
		name string
		p    Policy
		want Aggregation
	}{
		{"default", table.Default(), AggregateMonthly},
		{"calibrated", table.Resolve("kelompok1", models.ActivityMeterRepair), AggregateMonthly},
		{"percentage split", PercentageSplit(), AggregateNone},
	}
	for _, tt := range tests {
		if tt.p.Aggregate != tt.want {
			t.Errorf("%s Aggregate = %v, want %v", tt.name, tt.p.Aggregate, tt.want)
		}
	}
	if d := table.Default(); d.Lookback != DefaultLookback || d.MaxCycle != 0 {
		t.Errorf("default Lookback/MaxCycle = %d/%d, want %d/0", d.Lookback, d.MaxCycle, DefaultLookback)
	}
}

func TestParseAggregation(t *testing.T) {
	tests := []struct {
		in      string
		want    Aggregation
		wantErr bool
	}{
		{"", AggregateNone, false},
		{"none", AggregateNone, false},
		{"monthly", AggregateMonthly, false},
		{"weekly", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseAggregation(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAggregation(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAggregation(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
