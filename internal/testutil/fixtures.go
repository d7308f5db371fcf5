package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/fieldcast/fieldcast/pkg/analytics"
	"github.com/fieldcast/fieldcast/pkg/models"
)

// NewWorkGroup returns a WorkGroup with sensible defaults, suitable for test fixtures.
// Override individual fields after creation as needed.
func NewWorkGroup(opts ...func(*models.WorkGroup)) models.WorkGroup {
	g := models.WorkGroup{
		ID:        uuid.New().String(),
		Name:      "Kelompok 1",
		Shift:     "pagi",
		CreatedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&g)
	}
	return g
}

// WithGroupName sets the group name.
func WithGroupName(name string) func(*models.WorkGroup) {
	return func(g *models.WorkGroup) { g.Name = name }
}

// NewReport returns a Report for groupID with sensible defaults.
func NewReport(groupID string, opts ...func(*models.Report)) models.Report {
	r := models.Report{
		ID:            uuid.New().String(),
		GroupID:       groupID,
		Date:          time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		StartTime:     "08:00:00",
		EndTime:       "08:30:00",
		Activity:      models.ActivityMeterRepair,
		DurationHours: 0.5,
		CreatedAt:     time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// WithActivity sets the report activity.
func WithActivity(a models.Activity) func(*models.Report) {
	return func(r *models.Report) { r.Activity = a }
}

// WithDate sets the report date.
func WithDate(d time.Time) func(*models.Report) {
	return func(r *models.Report) { r.Date = d }
}

// WithDuration sets the report duration in hours.
func WithDuration(hours float64) func(*models.Report) {
	return func(r *models.Report) { r.DurationHours = hours }
}

// WithTimes sets the report start and end times of day.
func WithTimes(start, end string) func(*models.Report) {
	return func(r *models.Report) {
		r.StartTime = start
		r.EndTime = end
	}
}

// NewForecastRecord returns a ForecastRecord with sensible defaults.
func NewForecastRecord(groupID string, opts ...func(*analytics.ForecastRecord)) analytics.ForecastRecord {
	f := analytics.ForecastRecord{
		ID:             uuid.New().String(),
		GroupID:        groupID,
		Activity:       string(models.ActivityMeterRepair),
		PredictedDate:  time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC),
		PredictedHours: 0.37,
		MAPEPercent:    14.98,
		Alpha:          0.3,
		Beta:           0.7,
		Gamma:          0.1,
		Method:         "holt_winters",
		Policy:         "default",
		Observations:   12,
		GeneratedAt:    time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// WithPredictedDate sets the forecast's target date.
func WithPredictedDate(d time.Time) func(*analytics.ForecastRecord) {
	return func(f *analytics.ForecastRecord) { f.PredictedDate = d }
}

// WithGeneratedAt sets the forecast's generation timestamp.
func WithGeneratedAt(t time.Time) func(*analytics.ForecastRecord) {
	return func(f *analytics.ForecastRecord) { f.GeneratedAt = t }
}

// WithForecastActivity sets the forecast activity.
func WithForecastActivity(a models.Activity) func(*analytics.ForecastRecord) {
	return func(f *analytics.ForecastRecord) { f.Activity = string(a) }
}
