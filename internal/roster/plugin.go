// Package roster owns the work groups and their completed field reports.
// It is the observation source for forecasting and knows the rotation that
// decides when a group works next.
package roster

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldcast/fieldcast/pkg/models"
	"github.com/fieldcast/fieldcast/pkg/plugin"
	"github.com/fieldcast/fieldcast/pkg/roles"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin         = (*Module)(nil)
	_ plugin.HTTPProvider   = (*Module)(nil)
	_ plugin.HealthChecker  = (*Module)(nil)
	_ plugin.Validator      = (*Module)(nil)
	_ roles.HistoryProvider = (*Module)(nil)
	_ roles.Scheduler       = (*Module)(nil)
)

// Service errors.
var (
	ErrNoStore       = errors.New("roster: no database configured")
	ErrInvalidReport = errors.New("invalid report")
	ErrInvalidGroup  = errors.New("invalid work group")
)

// Module implements the roster plugin.
type Module struct {
	logger *zap.Logger
	cfg    Config
	store  *RosterStore
	bus    plugin.EventBus
	now    func() time.Time
}

// New creates a new roster plugin instance.
func New() *Module {
	return &Module{now: time.Now}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "roster",
		Version:     "0.1.0",
		Description: "Work groups, field reports and rotation schedule",
		Roles:       []string{roles.RoleHistory, roles.RoleScheduler},
		Required:    false,
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal roster config: %w", err)
		}
	}

	if deps.Store != nil {
		if err := deps.Store.Migrate(ctx, "roster", migrations()); err != nil {
			return fmt.Errorf("roster migrations: %w", err)
		}
		m.store = NewRosterStore(deps.Store.DB())
	}
	m.bus = deps.Bus

	m.logger.Info("roster module initialized",
		zap.Int("rotation_days", m.cfg.RotationDays),
		zap.Bool("persistent", m.store != nil),
	)
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	if m.cfg.RotationDays < 1 {
		return fmt.Errorf("roster: rotation_days must be >= 1, got %d", m.cfg.RotationDays)
	}
	if m.cfg.DefaultLimit < 1 {
		return fmt.Errorf("roster: default_limit must be >= 1, got %d", m.cfg.DefaultLimit)
	}
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.logger.Info("roster module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("roster module stopped")
	return nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	if m.store == nil {
		return plugin.HealthStatus{Status: "degraded", Message: "no database configured"}
	}
	groups, reports, err := m.store.Counts(ctx)
	if err != nil {
		return plugin.HealthStatus{Status: "unhealthy", Message: err.Error()}
	}
	return plugin.HealthStatus{
		Status: "healthy",
		Details: map[string]string{
			"groups":  strconv.Itoa(groups),
			"reports": strconv.Itoa(reports),
		},
	}
}

// -- roles.HistoryProvider --

// Group implements roles.HistoryProvider.
func (m *Module) Group(ctx context.Context, id string) (*models.WorkGroup, error) {
	if m.store == nil {
		return nil, ErrNoStore
	}
	return m.store.GetGroup(ctx, id)
}

// Groups implements roles.HistoryProvider.
func (m *Module) Groups(ctx context.Context) ([]models.WorkGroup, error) {
	if m.store == nil {
		return nil, ErrNoStore
	}
	return m.store.ListGroups(ctx)
}

// History implements roles.HistoryProvider. Reports without a positive
// duration are not observations and are left out.
func (m *Module) History(ctx context.Context, groupID string, a models.Activity) ([]roles.Observation, error) {
	if m.store == nil {
		return nil, ErrNoStore
	}
	return m.store.History(ctx, groupID, a)
}

// -- roles.Scheduler --

// NextWorkDate implements roles.Scheduler.
func (m *Module) NextWorkDate(ctx context.Context, groupID string, from time.Time) (time.Time, error) {
	if m.store == nil {
		return time.Time{}, ErrNoStore
	}
	groups, err := m.store.ListGroups(ctx)
	if err != nil {
		return time.Time{}, err
	}
	last, err := m.store.LatestReport(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return nextWorkDate(groups, groupID, last, from, m.cfg.RotationDays)
}

// -- Writes --

// GroupInput is the request body for creating a work group.
type GroupInput struct {
	Name  string `json:"name"`
	Shift string `json:"shift,omitempty"`
}

// CreateGroup stores a new work group and announces it on the bus.
func (m *Module) CreateGroup(ctx context.Context, in GroupInput) (*models.WorkGroup, error) {
	if m.store == nil {
		return nil, ErrNoStore
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidGroup)
	}
	g := &models.WorkGroup{
		ID:        uuid.New().String(),
		Name:      name,
		Shift:     strings.TrimSpace(in.Shift),
		CreatedAt: m.now().UTC(),
	}
	if err := m.store.InsertGroup(ctx, g); err != nil {
		return nil, err
	}
	m.publish(ctx, TopicGroupCreated, *g)
	return g, nil
}

// ReportInput is the request body for filing a work report. The duration is
// derived from the start and end times when both are present; otherwise
// duration_hours must be given.
type ReportInput struct {
	GroupID       string   `json:"group_id"`
	Date          string   `json:"date" example:"2025-01-06"`
	StartTime     string   `json:"start_time,omitempty" example:"08:15"`
	EndTime       string   `json:"end_time,omitempty" example:"08:40"`
	Activity      string   `json:"activity" example:"perbaikan_kwh"`
	DurationHours *float64 `json:"duration_hours,omitempty"`
	Description   string   `json:"description,omitempty"`
}

// CreateReport validates and stores a work report, then publishes
// TopicReportCreated with the stored report as payload.
func (m *Module) CreateReport(ctx context.Context, in ReportInput) (*models.Report, error) {
	if m.store == nil {
		return nil, ErrNoStore
	}
	r, err := m.buildReport(in)
	if err != nil {
		return nil, err
	}
	if _, err := m.store.GetGroup(ctx, r.GroupID); err != nil {
		return nil, err
	}
	if err := m.store.InsertReport(ctx, r); err != nil {
		return nil, err
	}
	m.logger.Debug("report stored",
		zap.String("group_id", r.GroupID),
		zap.String("activity", string(r.Activity)),
		zap.Float64("duration_hours", r.DurationHours),
	)
	m.publish(ctx, TopicReportCreated, *r)
	return r, nil
}

func (m *Module) buildReport(in ReportInput) (*models.Report, error) {
	if in.GroupID == "" {
		return nil, fmt.Errorf("%w: group_id is required", ErrInvalidReport)
	}
	activity, err := models.ParseActivity(in.Activity)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReport, err)
	}
	date, err := time.Parse(models.DateLayout, strings.TrimSpace(in.Date))
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidReport)
	}

	r := &models.Report{
		ID:          uuid.New().String(),
		GroupID:     in.GroupID,
		Date:        date,
		Activity:    activity,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   m.now().UTC(),
	}

	if in.StartTime != "" || in.EndTime != "" {
		if in.StartTime == "" || in.EndTime == "" {
			return nil, fmt.Errorf("%w: start_time and end_time go together", ErrInvalidReport)
		}
		if r.StartTime, err = models.NormalizeClock(in.StartTime); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidReport, err)
		}
		if r.EndTime, err = models.NormalizeClock(in.EndTime); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidReport, err)
		}
		if r.DurationHours, err = models.DurationBetween(r.StartTime, r.EndTime); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidReport, err)
		}
		return r, nil
	}

	if in.DurationHours == nil {
		return nil, fmt.Errorf("%w: start_time/end_time or duration_hours is required", ErrInvalidReport)
	}
	if *in.DurationHours < 0 {
		return nil, fmt.Errorf("%w: duration_hours must not be negative", ErrInvalidReport)
	}
	r.DurationHours = *in.DurationHours
	return r, nil
}

func (m *Module) publish(ctx context.Context, topic string, payload any) {
	if m.bus == nil {
		return
	}
	// Handlers outlive the request that triggered them.
	m.bus.PublishAsync(context.WithoutCancel(ctx), plugin.Event{
		Topic:   topic,
		Source:  "roster",
		Payload: payload,
	})
}
