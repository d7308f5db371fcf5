// Package roles defines typed contracts for plugin roles.
// Plugins that fill a role (declared via PluginInfo.Roles) implement the
// corresponding interface so callers can use PluginResolver.ResolveByRole
// followed by a type assertion.
package roles

import (
	"context"
	"errors"
	"time"

	"github.com/fieldcast/fieldcast/pkg/analytics"
	"github.com/fieldcast/fieldcast/pkg/models"
)

// Role name constants match the strings used in PluginInfo.Roles.
const (
	RoleHistory    = "history"
	RoleScheduler  = "scheduler"
	RoleForecaster = "forecaster"
)

// ErrGroupNotFound is returned by role implementations for an unknown
// work group ID.
var ErrGroupNotFound = errors.New("work group not found")

// HistoryProvider is implemented by plugins that own the work-report
// history the forecasts are computed from.
type HistoryProvider interface {
	// Group returns a single work group by ID.
	Group(ctx context.Context, id string) (*models.WorkGroup, error)

	// Groups returns all work groups.
	Groups(ctx context.Context) ([]models.WorkGroup, error)

	// History returns the activity's report durations for a group in
	// chronological order, one observation per report.
	History(ctx context.Context, groupID string, activity models.Activity) ([]Observation, error)
}

// Observation is one historical duration, in hours.
type Observation struct {
	Date  time.Time `json:"date"`
	Hours float64   `json:"hours"`
}

// Scheduler is implemented by plugins that know when a group works next.
type Scheduler interface {
	// NextWorkDate returns the group's next scheduled work date after from.
	NextWorkDate(ctx context.Context, groupID string, from time.Time) (time.Time, error)
}

// Forecaster is implemented by plugins that publish duration forecasts.
type Forecaster interface {
	// Forecasts returns stored forecasts, optionally filtered by group.
	// Pass an empty groupID to list all.
	Forecasts(ctx context.Context, groupID string) ([]analytics.ForecastRecord, error)
}
