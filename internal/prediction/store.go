package prediction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fieldcast/fieldcast/pkg/analytics"
	"github.com/fieldcast/fieldcast/pkg/models"
	"github.com/fieldcast/fieldcast/pkg/plugin"
)

// ErrForecastNotFound is returned when no stored forecast matches.
var ErrForecastNotFound = errors.New("forecast not found")

// ForecastStore provides database access for the prediction plugin.
type ForecastStore struct {
	st plugin.Store
	db *sql.DB
}

// NewForecastStore creates a new ForecastStore on the shared database.
func NewForecastStore(st plugin.Store) *ForecastStore {
	return &ForecastStore{st: st, db: st.DB()}
}

const forecastColumns = `id, group_id, activity, predicted_date, predicted_hours,
	mape_percent, alpha, beta, gamma, level, trend, method, policy,
	observations, generated_at`

// ReplaceForecast stores f as the only forecast for its (group, activity,
// predicted date) key. The delete and insert share one transaction.
func (s *ForecastStore) ReplaceForecast(ctx context.Context, f *analytics.ForecastRecord) error {
	date := f.PredictedDate.Format(models.DateLayout)
	return s.st.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM prediction_forecasts
			WHERE group_id = ? AND activity = ? AND predicted_date = ?`,
			f.GroupID, f.Activity, date,
		); err != nil {
			return fmt.Errorf("delete previous forecast: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO prediction_forecasts (`+forecastColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.ID, f.GroupID, f.Activity, date, f.PredictedHours,
			f.MAPEPercent, f.Alpha, f.Beta, f.Gamma, f.Level, f.Trend,
			f.Method, f.Policy, f.Observations, f.GeneratedAt,
		); err != nil {
			return fmt.Errorf("insert forecast: %w", err)
		}
		return nil
	})
}

// ListForecasts returns forecasts newest target date first, optionally
// filtered by group. Pass empty groupID to list all and limit <= 0 for no
// limit.
func (s *ForecastStore) ListForecasts(ctx context.Context, groupID string, limit int) ([]analytics.ForecastRecord, error) {
	query := `SELECT ` + forecastColumns + ` FROM prediction_forecasts`
	var args []any
	if groupID != "" {
		query += ` WHERE group_id = ?`
		args = append(args, groupID)
	}
	query += ` ORDER BY predicted_date DESC, generated_at DESC, activity`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list forecasts: %w", err)
	}
	defer rows.Close()

	var out []analytics.ForecastRecord
	for rows.Next() {
		f, err := scanForecast(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// LatestForecast returns the most recently generated forecast for a group
// and activity.
func (s *ForecastStore) LatestForecast(ctx context.Context, groupID string, a models.Activity) (*analytics.ForecastRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+forecastColumns+` FROM prediction_forecasts
		WHERE group_id = ? AND activity = ?
		ORDER BY generated_at DESC, predicted_date DESC LIMIT 1`,
		groupID, string(a),
	)
	f, err := scanForecast(row)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// GetForecast returns a forecast by ID.
func (s *ForecastStore) GetForecast(ctx context.Context, id string) (*analytics.ForecastRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+forecastColumns+` FROM prediction_forecasts WHERE id = ?`, id)
	f, err := scanForecast(row)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// DeleteForecast removes a forecast by ID.
func (s *ForecastStore) DeleteForecast(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM prediction_forecasts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete forecast: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete forecast: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrForecastNotFound, id)
	}
	return nil
}

// DeleteGroupForecasts removes every forecast of a group and returns how
// many were deleted.
func (s *ForecastStore) DeleteGroupForecasts(ctx context.Context, groupID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM prediction_forecasts WHERE group_id = ?`, groupID)
	if err != nil {
		return 0, fmt.Errorf("delete group forecasts: %w", err)
	}
	return res.RowsAffected()
}

// DeleteOlderThan removes forecasts generated before cutoff.
func (s *ForecastStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM prediction_forecasts WHERE generated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old forecasts: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored forecasts.
func (s *ForecastStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM prediction_forecasts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count forecasts: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanForecast(row rowScanner) (analytics.ForecastRecord, error) {
	var (
		f    analytics.ForecastRecord
		date string
	)
	err := row.Scan(
		&f.ID, &f.GroupID, &f.Activity, &date, &f.PredictedHours,
		&f.MAPEPercent, &f.Alpha, &f.Beta, &f.Gamma, &f.Level, &f.Trend,
		&f.Method, &f.Policy, &f.Observations, &f.GeneratedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return f, ErrForecastNotFound
	}
	if err != nil {
		return f, fmt.Errorf("scan forecast row: %w", err)
	}
	if f.PredictedDate, err = time.Parse(models.DateLayout, date); err != nil {
		return f, fmt.Errorf("parse predicted date %q: %w", date, err)
	}
	return f, nil
}
