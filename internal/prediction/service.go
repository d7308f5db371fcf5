package prediction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldcast/fieldcast/internal/display"
	"github.com/fieldcast/fieldcast/internal/forecast"
	"github.com/fieldcast/fieldcast/internal/policy"
	"github.com/fieldcast/fieldcast/pkg/analytics"
	"github.com/fieldcast/fieldcast/pkg/models"
	"github.com/fieldcast/fieldcast/pkg/plugin"
	"github.com/fieldcast/fieldcast/pkg/roles"
)

// Service errors.
var (
	ErrNoStore           = errors.New("prediction: no database configured")
	ErrNoHistoryProvider = errors.New("prediction: no history provider available")
	ErrNoScheduler       = errors.New("prediction: no scheduler available")
)

// GenerateRequest identifies one forecast. A zero PredictedDate asks the
// scheduler for the group's next work date.
type GenerateRequest struct {
	GroupID       string
	Activity      models.Activity
	PredictedDate time.Time
}

// run is one engine evaluation with the context it was computed in.
type run struct {
	group   *models.WorkGroup
	policy  policy.Policy
	labels  []string
	outcome forecast.Outcome
}

// Generate computes the forecast for one (group, activity) pair, stores it
// in place of any earlier forecast for the same target date and returns it
// with its audit table. A history too short to forecast yields an error
// wrapping forecast.ErrInsufficientData and stores nothing.
func (m *Module) Generate(ctx context.Context, req GenerateRequest) (*analytics.ForecastRecord, []forecast.Step, error) {
	if m.store == nil {
		return nil, nil, ErrNoStore
	}
	res, err := m.compute(ctx, req.GroupID, req.Activity)
	if err != nil {
		return nil, nil, err
	}

	date := req.PredictedDate
	if date.IsZero() {
		if date, err = m.nextWorkDate(ctx, req.GroupID); err != nil {
			return nil, nil, err
		}
	}

	rec := m.record(res, req.Activity, date)
	if err := m.store.ReplaceForecast(ctx, rec); err != nil {
		return nil, nil, err
	}

	forecastsGenerated.WithLabelValues(req.Activity.Slug(), rec.Method).Inc()
	forecastMAPE.Observe(rec.MAPEPercent)
	m.logger.Info("forecast generated",
		zap.String("group_id", rec.GroupID),
		zap.String("activity", rec.Activity),
		zap.String("policy", rec.Policy),
		zap.String("method", rec.Method),
		zap.Float64("hours", rec.PredictedHours),
		zap.Float64("mape", rec.MAPEPercent),
	)
	m.publish(ctx, TopicForecastGenerated, *rec)

	rec.Display = display.Duration(rec.PredictedHours)
	return rec, forecast.Steps(res.outcome, res.labels), nil
}

// GenerateAll generates forecasts for every activity of a group, sharing
// one target date. Activities with insufficient history are skipped.
func (m *Module) GenerateAll(ctx context.Context, groupID string, date time.Time) ([]analytics.ForecastRecord, error) {
	if m.store == nil {
		return nil, ErrNoStore
	}
	if date.IsZero() {
		var err error
		if date, err = m.nextWorkDate(ctx, groupID); err != nil {
			return nil, err
		}
	}

	out := make([]analytics.ForecastRecord, 0, len(models.Activities()))
	for _, a := range models.Activities() {
		rec, _, err := m.Generate(ctx, GenerateRequest{GroupID: groupID, Activity: a, PredictedDate: date})
		if errors.Is(err, forecast.ErrInsufficientData) {
			m.logger.Debug("skipping activity with insufficient history",
				zap.String("group_id", groupID),
				zap.String("activity", string(a)),
			)
			continue
		}
		if err != nil {
			return out, fmt.Errorf("generate %s: %w", a.Slug(), err)
		}
		out = append(out, *rec)
	}
	return out, nil
}

// Steps computes the audit table for a group and activity without storing
// anything.
func (m *Module) Steps(ctx context.Context, groupID string, a models.Activity) (*analytics.StepReport, error) {
	res, err := m.compute(ctx, groupID, a)
	if err != nil {
		return nil, err
	}
	o := res.outcome
	report := &analytics.StepReport{
		GroupID:     groupID,
		Activity:    string(a),
		Policy:      res.policy.Name,
		Method:      string(o.Result.Method),
		Alpha:       o.Params.Alpha,
		Beta:        o.Params.Beta,
		Gamma:       o.Params.Gamma,
		Period:      o.Result.Period,
		TrainCount:  o.Window.TrainCount,
		TestCount:   o.Window.TestCount,
		MAPEPercent: o.MAPE,
		Value:       o.Value,
		Next:        o.Result.Next,
		Searched:    o.Searched,
		Display:     display.Duration(o.Value),
	}
	steps := forecast.Steps(o, res.labels)
	report.Rows = make([]analytics.StepRow, len(steps))
	for i, s := range steps {
		report.Rows[i] = stepRow(s)
	}
	return report, nil
}

// Forecasts implements roles.Forecaster.
func (m *Module) Forecasts(ctx context.Context, groupID string) ([]analytics.ForecastRecord, error) {
	if m.store == nil {
		return nil, ErrNoStore
	}
	return m.store.ListForecasts(ctx, groupID, 0)
}

// Policies returns the policy table forecasts are resolved against.
func (m *Module) Policies() *policy.Table {
	return m.policies
}

func (m *Module) compute(ctx context.Context, groupID string, a models.Activity) (*run, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownActivity, a)
	}
	hp, err := m.history()
	if err != nil {
		return nil, err
	}
	group, err := hp.Group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	obs, err := hp.History(ctx, groupID, a)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	pol := m.policies.Resolve(group.Name, a)
	raw, labels := pol.Series(obs)

	if m.cfg.GenerateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.GenerateTimeout)
		defer cancel()
	}

	start := time.Now()
	o, err := forecast.Run(ctx, raw, pol.EngineConfig())
	forecastDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("policy %q: %w", pol.Name, err)
	}
	if o.Status == forecast.StatusInsufficientData {
		forecastsInsufficient.WithLabelValues(a.Slug()).Inc()
		return nil, fmt.Errorf("%w: %d usable observations for %s", forecast.ErrInsufficientData, o.Series.Len(), a)
	}

	// Positions are positive durations or monthly means of them, so the
	// engine only drops positions past its cycle cap.
	if len(labels) > o.Series.Len() {
		labels = labels[:o.Series.Len()]
	}
	return &run{group: group, policy: pol, labels: labels, outcome: o}, nil
}

func (m *Module) record(res *run, a models.Activity, date time.Time) *analytics.ForecastRecord {
	o := res.outcome
	rec := &analytics.ForecastRecord{
		ID:             uuid.New().String(),
		GroupID:        res.group.ID,
		Activity:       string(a),
		PredictedDate:  date,
		PredictedHours: o.Value,
		MAPEPercent:    o.MAPE,
		Alpha:          o.Params.Alpha,
		Beta:           o.Params.Beta,
		Gamma:          o.Params.Gamma,
		Method:         string(o.Result.Method),
		Policy:         res.policy.Name,
		Observations:   o.Series.Len(),
		GeneratedAt:    m.now().UTC(),
	}
	if n := len(o.Result.Levels); n > 0 {
		rec.Level = o.Result.Levels[n-1]
		rec.Trend = o.Result.Trends[n-1]
	}
	return rec
}

func (m *Module) history() (roles.HistoryProvider, error) {
	if m.plugins == nil {
		return nil, ErrNoHistoryProvider
	}
	for _, p := range m.plugins.ResolveByRole(roles.RoleHistory) {
		if hp, ok := p.(roles.HistoryProvider); ok {
			return hp, nil
		}
	}
	return nil, ErrNoHistoryProvider
}

func (m *Module) nextWorkDate(ctx context.Context, groupID string) (time.Time, error) {
	if m.plugins == nil {
		return time.Time{}, ErrNoScheduler
	}
	for _, p := range m.plugins.ResolveByRole(roles.RoleScheduler) {
		if s, ok := p.(roles.Scheduler); ok {
			return s.NextWorkDate(ctx, groupID, m.now())
		}
	}
	return time.Time{}, ErrNoScheduler
}

func (m *Module) publish(ctx context.Context, topic string, payload any) {
	if m.bus == nil {
		return
	}
	m.bus.PublishAsync(context.WithoutCancel(ctx), plugin.Event{
		Topic:   topic,
		Source:  "prediction",
		Payload: payload,
	})
}

func stepRow(s forecast.Step) analytics.StepRow {
	row := analytics.StepRow{
		Index:    s.Index,
		Label:    s.Label,
		Actual:   s.Actual,
		Level:    s.Level,
		Trend:    s.Trend,
		Seasonal: s.Seasonal,
		Forecast: s.Forecast,
		Error:    s.Error,
		AbsError: s.AbsError,
		Phase:    string(s.Phase),
	}
	if s.HasAPE {
		ape := s.APE
		row.APE = &ape
	}
	return row
}
