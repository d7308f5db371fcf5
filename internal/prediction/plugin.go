// Package prediction turns work-report history into stored duration
// forecasts. It resolves a policy per (group, activity), runs the forecast
// engine and keeps one record per target date.
package prediction

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fieldcast/fieldcast/internal/forecast"
	"github.com/fieldcast/fieldcast/internal/policy"
	"github.com/fieldcast/fieldcast/pkg/models"
	"github.com/fieldcast/fieldcast/pkg/plugin"
	"github.com/fieldcast/fieldcast/pkg/roles"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin          = (*Module)(nil)
	_ plugin.HTTPProvider    = (*Module)(nil)
	_ plugin.HealthChecker   = (*Module)(nil)
	_ plugin.EventSubscriber = (*Module)(nil)
	_ plugin.Validator       = (*Module)(nil)
	_ roles.Forecaster       = (*Module)(nil)
)

// Module implements the prediction plugin.
type Module struct {
	logger   *zap.Logger
	cfg      Config
	policies *policy.Table
	store    *ForecastStore
	bus      plugin.EventBus
	plugins  plugin.PluginResolver
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new prediction plugin instance.
func New() *Module {
	return &Module{now: time.Now}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "prediction",
		Version:      "0.1.0",
		Description:  "Holt-Winters duration forecasts per group and activity",
		Dependencies: []string{"roster"},
		Roles:        []string{roles.RoleForecaster},
		Required:     false,
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal prediction config: %w", err)
		}
	}

	table, err := policy.Load(deps.Config)
	if err != nil {
		return fmt.Errorf("load forecast policies: %w", err)
	}
	m.policies = table

	if deps.Store != nil {
		if err := deps.Store.Migrate(ctx, "prediction", migrations()); err != nil {
			return fmt.Errorf("prediction migrations: %w", err)
		}
		m.store = NewForecastStore(deps.Store)
	}

	m.bus = deps.Bus
	m.plugins = deps.Plugins

	m.logger.Info("prediction module initialized",
		zap.Bool("auto_regenerate", m.cfg.AutoRegenerate),
		zap.Duration("retention", m.cfg.Retention),
		zap.Int("policy_overrides", len(m.policies.Entries())),
		zap.Strings("presets", m.policies.Presets()),
	)
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	if m.cfg.Retention < 0 {
		return fmt.Errorf("prediction: retention must not be negative")
	}
	if m.cfg.MaintenanceInterval < 0 {
		return fmt.Errorf("prediction: maintenance_interval must not be negative")
	}
	if m.cfg.GenerateTimeout < 0 {
		return fmt.Errorf("prediction: generate_timeout must not be negative")
	}
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.startMaintenance()
	m.logger.Info("prediction module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("prediction module stopped")
	return nil
}

// -- plugin.HealthChecker --

// Health implements plugin.HealthChecker.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	details := map[string]string{
		"auto_regenerate": strconv.FormatBool(m.cfg.AutoRegenerate),
	}
	if m.policies != nil {
		details["policy_overrides"] = strconv.Itoa(len(m.policies.Entries()))
	}

	_, err := m.history()
	details["history_available"] = strconv.FormatBool(err == nil)

	if m.store == nil {
		return plugin.HealthStatus{Status: "degraded", Message: "no database configured", Details: details}
	}
	n, err := m.store.Count(ctx)
	if err != nil {
		return plugin.HealthStatus{Status: "unhealthy", Message: err.Error(), Details: details}
	}
	details["forecasts"] = strconv.Itoa(n)
	return plugin.HealthStatus{Status: "healthy", Details: details}
}

// -- plugin.EventSubscriber --

// Subscriptions implements plugin.EventSubscriber.
func (m *Module) Subscriptions() []plugin.Subscription {
	if !m.cfg.AutoRegenerate {
		return nil
	}
	return []plugin.Subscription{
		{Topic: TopicReportCreated, Handler: m.handleReportCreated},
	}
}

// handleReportCreated regenerates the forecast of the report's group and
// activity for the group's next work date.
func (m *Module) handleReportCreated(ctx context.Context, event plugin.Event) {
	report, ok := event.Payload.(models.Report)
	if !ok {
		m.logger.Debug("ignored report event: unexpected payload type",
			zap.String("source", event.Source))
		return
	}

	rec, _, err := m.Generate(ctx, GenerateRequest{GroupID: report.GroupID, Activity: report.Activity})
	switch {
	case errors.Is(err, forecast.ErrInsufficientData):
		m.logger.Debug("not enough history to regenerate forecast",
			zap.String("group_id", report.GroupID),
			zap.String("activity", string(report.Activity)),
		)
	case err != nil:
		m.logger.Warn("failed to regenerate forecast",
			zap.String("group_id", report.GroupID),
			zap.String("activity", string(report.Activity)),
			zap.Error(err),
		)
	default:
		m.logger.Debug("forecast regenerated",
			zap.String("forecast_id", rec.ID),
			zap.String("report_id", report.ID),
		)
	}
}
