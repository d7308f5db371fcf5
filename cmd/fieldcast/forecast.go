package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/fieldcast/fieldcast/internal/config"
	"github.com/fieldcast/fieldcast/internal/display"
	"github.com/fieldcast/fieldcast/internal/forecast"
	"github.com/fieldcast/fieldcast/internal/policy"
	"github.com/fieldcast/fieldcast/pkg/models"
)

func forecastCommand() *cli.Command {
	return &cli.Command{
		Name:  "forecast",
		Usage: "Forecast the next duration of a series of hours without a database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "values",
				Aliases:  []string{"v"},
				Usage:    "Comma-separated durations in hours, oldest first",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "policy",
				Aliases: []string{"p"},
				Usage:   "Preset policy name (default, percentage-split)",
			},
			&cli.StringFlag{
				Name:    "group",
				Aliases: []string{"g"},
				Usage:   "Group name used to resolve the policy",
			},
			&cli.StringFlag{
				Name:    "activity",
				Aliases: []string{"a"},
				Usage:   "Activity name or alias used to resolve the policy",
			},
			&cli.StringFlag{
				Name:  "labels",
				Usage: "Comma-separated labels for the audit table",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the result as JSON",
			},
		},
		Action: runForecast,
	}
}

// forecastOutput is the JSON form of an offline forecast.
type forecastOutput struct {
	Policy      string          `json:"policy"`
	Status      string          `json:"status"`
	Method      string          `json:"method,omitempty"`
	Params      forecast.Params `json:"params"`
	Searched    bool            `json:"searched"`
	TrainCount  int             `json:"train_count"`
	TestCount   int             `json:"test_count"`
	MAPEPercent float64         `json:"mape_percent"`
	Value       float64         `json:"value_hours"`
	Display     string          `json:"display"`
	Steps       []forecast.Step `json:"steps,omitempty"`
}

func runForecast(c *cli.Context) error {
	values, err := parseValues(c.String("values"))
	if err != nil {
		return err
	}
	table, err := loadPolicies(c)
	if err != nil {
		return err
	}
	pol, err := selectPolicy(table, c.String("policy"), c.String("group"), c.String("activity"))
	if err != nil {
		return err
	}

	o, err := forecast.Run(c.Context, values, pol.EngineConfig())
	if err != nil {
		return err
	}
	var labels []string
	if s := c.String("labels"); s != "" {
		labels = splitList(s)
	}

	out := forecastOutput{
		Policy:      pol.Name,
		Status:      string(o.Status),
		Params:      o.Params,
		Searched:    o.Searched,
		TrainCount:  o.Window.TrainCount,
		TestCount:   o.Window.TestCount,
		MAPEPercent: o.MAPE,
		Value:       o.Value,
		Display:     display.Text(o.Value),
	}
	if o.Status == forecast.StatusOK {
		out.Method = string(o.Result.Method)
		out.Steps = forecast.Steps(o, labels)
	}

	w := c.App.Writer
	if c.Bool("json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	return printForecast(w, out)
}

func printForecast(w io.Writer, out forecastOutput) error {
	fmt.Fprintf(w, "policy:  %s\n", out.Policy)
	if out.Method == "" {
		fmt.Fprintf(w, "status:  %s\n", out.Status)
		return nil
	}
	fmt.Fprintf(w, "method:  %s (alpha=%g beta=%g gamma=%g, searched=%t)\n",
		out.Method, out.Params.Alpha, out.Params.Beta, out.Params.Gamma, out.Searched)
	fmt.Fprintf(w, "window:  %d train / %d test\n", out.TrainCount, out.TestCount)
	fmt.Fprintf(w, "mape:    %.2f%%\n", display.Percent(out.MAPEPercent))
	fmt.Fprintf(w, "next:    %.6f h (%s, %s min)\n\n", out.Value, out.Display, display.Minutes(out.Value))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tlabel\tactual\tlevel\ttrend\tseasonal\tforecast\tape%\tphase\t")
	for _, s := range out.Steps {
		ape := "-"
		if s.HasAPE {
			ape = strconv.FormatFloat(s.APE, 'f', 2, 64)
		}
		fmt.Fprintf(tw, "%d\t%s\t%.6f\t%.6f\t%.6f\t%.6f\t%.6f\t%s\t%s\t\n",
			s.Index+1, s.Label, s.Actual, s.Level, s.Trend, s.Seasonal, s.Forecast, ape, s.Phase)
	}
	return tw.Flush()
}

func policiesCommand() *cli.Command {
	return &cli.Command{
		Name:  "policies",
		Usage: "List the forecast policy table",
		Action: func(c *cli.Context) error {
			table, err := loadPolicies(c)
			if err != nil {
				return err
			}
			return printPolicies(c.App.Writer, table)
		},
	}
}

func printPolicies(w io.Writer, table *policy.Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tPOLICY\tPERIOD\tPARAMS\tINIT\tSTRATEGY\tEXTRACTION\tHISTORY")
	row := func(key string, s policy.Summary) {
		params := fmt.Sprintf("%g/%g/%g", s.Params.Alpha, s.Params.Beta, s.Params.Gamma)
		if s.Search {
			params = fmt.Sprintf("search(%d)", s.GridSize)
		}
		history := s.Aggregate
		if s.Lookback > 0 {
			history = fmt.Sprintf("%s(%d)", s.Aggregate, s.Lookback)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			key, s.Name, s.Period, params, s.Init, s.Strategy, s.Extraction, history)
	}
	row("*", table.Default().Summarize())
	for _, e := range table.Entries() {
		row(e.Key.String(), e.Policy.Summarize())
	}
	for _, name := range table.Presets() {
		p, _ := table.Preset(name)
		row("preset:"+name, p.Summarize())
	}
	return tw.Flush()
}

// loadPolicies builds the policy table from the prediction section of the
// configuration file, falling back to the built-in table.
func loadPolicies(c *cli.Context) (*policy.Table, error) {
	v, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return policy.Load(config.New(v).Sub("plugins.prediction"))
}

// selectPolicy picks a named preset, or resolves group and activity
// against the table. Neither yields the default policy.
func selectPolicy(table *policy.Table, preset, group, activity string) (*policy.Policy, error) {
	if preset != "" {
		if preset == policy.NameDefault {
			p := table.Default()
			return &p, nil
		}
		p, ok := table.Preset(preset)
		if !ok {
			return nil, fmt.Errorf("unknown policy preset %q (have %s)", preset, strings.Join(table.Presets(), ", "))
		}
		return &p, nil
	}
	if activity == "" {
		if group != "" {
			return nil, fmt.Errorf("--group needs --activity")
		}
		p := table.Default()
		return &p, nil
	}
	a, err := models.ParseActivity(activity)
	if err != nil {
		return nil, err
	}
	p := table.Resolve(group, a)
	return &p, nil
}

// parseValues parses a comma-separated list of hours.
func parseValues(s string) ([]float64, error) {
	parts := splitList(s)
	if len(parts) == 0 {
		return nil, fmt.Errorf("no values given")
	}
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
