package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fieldcast/fieldcast/pkg/models"
	"github.com/fieldcast/fieldcast/pkg/roles"
)

// Store errors.
var (
	ErrGroupNotFound  = roles.ErrGroupNotFound
	ErrDuplicateGroup = errors.New("work group name already exists")
)

// RosterStore provides database access for the roster plugin.
type RosterStore struct {
	db *sql.DB
}

// NewRosterStore creates a new RosterStore backed by the given database.
func NewRosterStore(db *sql.DB) *RosterStore {
	return &RosterStore{db: db}
}

// -- Groups --

// InsertGroup stores a new work group.
func (s *RosterStore) InsertGroup(ctx context.Context, g *models.WorkGroup) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO roster_groups (id, name, shift, created_at)
		VALUES (?, ?, ?, ?)`,
		g.ID, g.Name, g.Shift, g.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %q", ErrDuplicateGroup, g.Name)
		}
		return fmt.Errorf("insert group: %w", err)
	}
	return nil
}

// GetGroup returns a work group by ID, or ErrGroupNotFound.
func (s *RosterStore) GetGroup(ctx context.Context, id string) (*models.WorkGroup, error) {
	var g models.WorkGroup
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, shift, created_at FROM roster_groups WHERE id = ?`,
		id,
	).Scan(&g.ID, &g.Name, &g.Shift, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return &g, nil
}

// ListGroups returns all work groups ordered by name. The order is the
// rotation order used by NextWorkDate.
func (s *RosterStore) ListGroups(ctx context.Context) ([]models.WorkGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, shift, created_at FROM roster_groups ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []models.WorkGroup
	for rows.Next() {
		var g models.WorkGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.Shift, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan group row: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// -- Reports --

const reportColumns = `id, group_id, report_date, start_time, end_time,
	activity, duration_hours, description, created_at`

// InsertReport stores a work report. The group must exist.
func (s *RosterStore) InsertReport(ctx context.Context, r *models.Report) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO roster_reports (`+reportColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.GroupID, r.Date.Format(models.DateLayout), r.StartTime, r.EndTime,
		string(r.Activity), r.DurationHours, r.Description, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// ReportFilter narrows ListReports. Zero fields match everything.
type ReportFilter struct {
	GroupID  string
	Activity models.Activity
	Limit    int
}

// ListReports returns reports newest first.
func (s *RosterStore) ListReports(ctx context.Context, f ReportFilter) ([]models.Report, error) {
	var (
		where []string
		args  []any
	)
	if f.GroupID != "" {
		where = append(where, "group_id = ?")
		args = append(args, f.GroupID)
	}
	if f.Activity != "" {
		where = append(where, "activity = ?")
		args = append(args, string(f.Activity))
	}
	query := `SELECT ` + reportColumns + ` FROM roster_reports`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY report_date DESC, start_time DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// LatestReport returns the most recent report across all groups, or nil
// when there are none.
func (s *RosterStore) LatestReport(ctx context.Context) (*models.Report, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+reportColumns+` FROM roster_reports
		ORDER BY report_date DESC, start_time DESC, created_at DESC LIMIT 1`)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// History returns the positive durations of one activity for a group in
// chronological order.
func (s *RosterStore) History(ctx context.Context, groupID string, a models.Activity) ([]roles.Observation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT report_date, duration_hours FROM roster_reports
		WHERE group_id = ? AND activity = ? AND duration_hours > 0
		ORDER BY report_date, start_time, id`,
		groupID, string(a),
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var obs []roles.Observation
	for rows.Next() {
		var (
			date string
			o    roles.Observation
		)
		if err := rows.Scan(&date, &o.Hours); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if o.Date, err = time.Parse(models.DateLayout, date); err != nil {
			return nil, fmt.Errorf("parse report date %q: %w", date, err)
		}
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

// Counts returns the number of stored groups and reports.
func (s *RosterStore) Counts(ctx context.Context) (groups, reports int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM roster_groups), (SELECT COUNT(*) FROM roster_reports)`,
	).Scan(&groups, &reports)
	if err != nil {
		return 0, 0, fmt.Errorf("count roster rows: %w", err)
	}
	return groups, reports, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (models.Report, error) {
	var (
		r        models.Report
		date     string
		activity string
	)
	err := row.Scan(&r.ID, &r.GroupID, &date, &r.StartTime, &r.EndTime,
		&activity, &r.DurationHours, &r.Description, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan report row: %w", err)
	}
	if r.Date, err = time.Parse(models.DateLayout, date); err != nil {
		return r, fmt.Errorf("parse report date %q: %w", date, err)
	}
	r.Activity = models.Activity(activity)
	return r, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
