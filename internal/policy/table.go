package policy

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fieldcast/fieldcast/internal/forecast"
	"github.com/fieldcast/fieldcast/pkg/models"
	"github.com/fieldcast/fieldcast/pkg/plugin"
)

// Table load errors. Policy defects wrap the forecast configuration errors
// (forecast.ErrZeroDivisor, forecast.ErrInvalidPeriod, ...).
var (
	ErrDuplicateKey     = errors.New("duplicate policy key")
	ErrUnknownPreset    = errors.New("unknown policy preset")
	ErrMissingGroup     = errors.New("policy override requires a group")
	ErrUnknownAggregate = errors.New("unknown history aggregation")
	ErrInvalidLookback  = errors.New("lookback must not be negative")
)

// Entry is one override row of a table.
type Entry struct {
	Key    Key    `json:"key"`
	Policy Policy `json:"policy"`
}

// Table maps (group, activity) keys to policies, falling back to a default.
type Table struct {
	def       Policy
	presets   map[string]Policy
	overrides map[Key]Policy
}

// Builtin returns the table used when nothing is configured: the default
// policy, the percentage-split preset and the calibrated kelompok1 series.
func Builtin() *Table {
	t := &Table{
		def: Default(),
		presets: map[string]Policy{
			NameDefault:         Default(),
			NamePercentageSplit: PercentageSplit(),
		},
		overrides: make(map[Key]Policy),
	}
	for _, e := range builtinOverrides() {
		t.overrides[e.Key] = e.Policy
	}
	return t
}

func builtinOverrides() []Entry {
	const group = "kelompok1"
	return []Entry{
		{
			Key:    Key{Group: group, Activity: models.ActivityMeterRepair},
			Policy: Calibrated("kelompok1-meteran", forecast.Params{Alpha: 0.3, Beta: 0.7, Gamma: 0.1}, 25),
		},
		{
			Key:    Key{Group: group, Activity: models.ActivityConnectionRepair},
			Policy: Calibrated("kelompok1-sambungan-rumah", forecast.Params{Alpha: 0.3, Beta: 0.3, Gamma: 0.1}, 61),
		},
		{
			// gamma 0 routes this series to double exponential smoothing.
			Key:    Key{Group: group, Activity: models.ActivitySubstationCheck},
			Policy: Calibrated("kelompok1-gardu", forecast.Params{Alpha: 0.5, Beta: 0.5, Gamma: 0}, 9.722),
		},
	}
}

// Resolve returns the policy for a group name and activity.
func (t *Table) Resolve(group string, a models.Activity) Policy {
	if p, ok := t.overrides[NewKey(group, a)]; ok {
		return p
	}
	return t.def
}

// Default returns the fallback policy.
func (t *Table) Default() Policy {
	return t.def
}

// Preset returns a named preset.
func (t *Table) Preset(name string) (Policy, bool) {
	p, ok := t.presets[name]
	return p, ok
}

// Presets returns the preset names in sorted order.
func (t *Table) Presets() []string {
	names := make([]string, 0, len(t.presets))
	for name := range t.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries returns the overrides sorted by group then activity.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.overrides))
	for k, p := range t.overrides {
		out = append(out, Entry{Key: k, Policy: p})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Group != out[j].Key.Group {
			return out[i].Key.Group < out[j].Key.Group
		}
		return out[i].Key.Activity < out[j].Key.Activity
	})
	return out
}

// Load builds a table from the "policies" section of cfg. Without that
// section the built-in table is returned. Every policy is validated here
// so that configuration defects fail at startup, not during a forecast.
func Load(cfg plugin.Config) (*Table, error) {
	if cfg == nil || !cfg.IsSet("policies") {
		return Builtin(), nil
	}

	var raw rawTable
	if err := cfg.UnmarshalKey("policies", &raw); err != nil {
		return nil, fmt.Errorf("decode policies: %w", err)
	}
	return raw.build()
}

func (raw rawTable) build() (*Table, error) {
	t := Builtin()

	if raw.Default != nil {
		def, err := raw.Default.apply(t.def, NameDefault)
		if err != nil {
			return nil, err
		}
		t.def = def
		t.presets[NameDefault] = def
	}

	for name, spec := range raw.Presets {
		base, err := t.base(spec.Base)
		if err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
		p, err := spec.apply(base, name)
		if err != nil {
			return nil, err
		}
		t.presets[name] = p
	}

	if raw.Overrides != nil && raw.ReplaceBuiltin {
		t.overrides = make(map[Key]Policy)
	}
	seen := make(map[Key]bool)
	for i, spec := range raw.Overrides {
		if spec.Group == "" {
			return nil, fmt.Errorf("override %d: %w", i, ErrMissingGroup)
		}
		a, err := models.ParseActivity(spec.Activity)
		if err != nil {
			return nil, fmt.Errorf("override %d: %w", i, err)
		}
		key := NewKey(spec.Group, a)
		if seen[key] {
			return nil, fmt.Errorf("override %d: %w: %s", i, ErrDuplicateKey, key)
		}
		seen[key] = true

		base := t.def
		if existing, ok := t.overrides[key]; ok && spec.Base == "" {
			base = existing
		} else if spec.Base != "" {
			if base, err = t.base(spec.Base); err != nil {
				return nil, fmt.Errorf("override %s: %w", key, err)
			}
		}

		name := spec.Name
		if name == "" {
			name = key.String()
		}
		p, err := spec.apply(base, name)
		if err != nil {
			return nil, err
		}
		t.overrides[key] = p
	}
	return t, nil
}

func (t *Table) base(name string) (Policy, error) {
	if name == "" {
		return t.def, nil
	}
	p, ok := t.presets[name]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return p, nil
}

type rawTable struct {
	Default        *rawPolicy           `mapstructure:"default"`
	Presets        map[string]rawPolicy `mapstructure:"presets"`
	Overrides      []rawPolicy          `mapstructure:"overrides"`
	ReplaceBuiltin bool                 `mapstructure:"replace_builtin"`
}

// rawPolicy is the config-file shape of a policy. Pointer fields distinguish
// "unset, inherit from base" from an explicit zero.
type rawPolicy struct {
	Name     string `mapstructure:"name"`
	Base     string `mapstructure:"base"`
	Group    string `mapstructure:"group"`
	Activity string `mapstructure:"activity"`

	Period *int     `mapstructure:"period"`
	Alpha  *float64 `mapstructure:"alpha"`
	Beta   *float64 `mapstructure:"beta"`
	Gamma  *float64 `mapstructure:"gamma"`

	Search *bool    `mapstructure:"search"`
	Grid   *rawGrid `mapstructure:"grid"`

	Init           *string  `mapstructure:"init"`
	LevelWindow    *int     `mapstructure:"level_window"`
	TrendDivisor   *float64 `mapstructure:"trend_divisor"`
	PerObservation *bool    `mapstructure:"per_observation"`

	Strategy   *string  `mapstructure:"strategy"`
	TestRatio  *float64 `mapstructure:"test_ratio"`
	Extraction *string  `mapstructure:"extraction"`
	MaxCycle   *int     `mapstructure:"max_cycle"`
	DropZeros  *bool    `mapstructure:"drop_zeros"`

	Aggregate *string `mapstructure:"aggregate"`
	Lookback  *int    `mapstructure:"lookback_months"`
}

type rawGrid struct {
	Alphas []float64 `mapstructure:"alphas"`
	Betas  []float64 `mapstructure:"betas"`
	Gammas []float64 `mapstructure:"gammas"`
	Step   float64   `mapstructure:"step"`
}

func (r rawPolicy) apply(base Policy, name string) (Policy, error) {
	p := base
	p.Name = name
	// Copy grid slices so presets never share backing arrays.
	p.Grid = forecast.Grid{
		Alphas: append([]float64(nil), base.Grid.Alphas...),
		Betas:  append([]float64(nil), base.Grid.Betas...),
		Gammas: append([]float64(nil), base.Grid.Gammas...),
	}

	setInt(&p.Period, r.Period)
	setFloat(&p.Params.Alpha, r.Alpha)
	setFloat(&p.Params.Beta, r.Beta)
	setFloat(&p.Params.Gamma, r.Gamma)
	setBool(&p.Search, r.Search)
	setInt(&p.Init.LevelWindow, r.LevelWindow)
	setFloat(&p.Init.TrendDivisor, r.TrendDivisor)
	setBool(&p.Init.PerObservation, r.PerObservation)
	setFloat(&p.TestRatio, r.TestRatio)
	setInt(&p.MaxCycle, r.MaxCycle)
	setBool(&p.DropZeros, r.DropZeros)
	setInt(&p.Lookback, r.Lookback)

	if r.Grid != nil {
		if r.Grid.Step > 0 {
			p.Grid = forecast.StepGrid(r.Grid.Step/2, 1-r.Grid.Step/2, r.Grid.Step)
		}
		if len(r.Grid.Alphas) > 0 {
			p.Grid.Alphas = r.Grid.Alphas
		}
		if len(r.Grid.Betas) > 0 {
			p.Grid.Betas = r.Grid.Betas
		}
		if len(r.Grid.Gammas) > 0 {
			p.Grid.Gammas = r.Grid.Gammas
		}
	}

	var err error
	if r.Init != nil {
		if p.Init.Policy, err = forecast.ParseInitPolicy(*r.Init); err != nil {
			return Policy{}, fmt.Errorf("policy %q: %w", name, err)
		}
		if p.Init.Policy == forecast.InitFixedConstant && p.Init.LevelWindow == 0 {
			p.Init.LevelWindow = forecast.DefaultLevelWindow
		}
	}
	if r.Strategy != nil {
		if p.Strategy, err = forecast.ParseWindowStrategy(*r.Strategy); err != nil {
			return Policy{}, fmt.Errorf("policy %q: %w", name, err)
		}
	}
	if r.Extraction != nil {
		if p.Extraction, err = forecast.ParseExtraction(*r.Extraction); err != nil {
			return Policy{}, fmt.Errorf("policy %q: %w", name, err)
		}
	}

	if r.Aggregate != nil {
		if p.Aggregate, err = ParseAggregation(*r.Aggregate); err != nil {
			return Policy{}, fmt.Errorf("policy %q: %w", name, err)
		}
	}

	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("policy %q: %w", name, err)
	}
	return p, nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
