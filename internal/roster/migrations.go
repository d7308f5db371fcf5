package roster

import (
	"database/sql"

	"github.com/fieldcast/fieldcast/pkg/plugin"
)

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create roster tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS roster_groups (
						id         TEXT PRIMARY KEY,
						name       TEXT NOT NULL UNIQUE,
						shift      TEXT NOT NULL DEFAULT '',
						created_at DATETIME NOT NULL
					)`,
					`CREATE TABLE IF NOT EXISTS roster_reports (
						id             TEXT PRIMARY KEY,
						group_id       TEXT NOT NULL REFERENCES roster_groups(id) ON DELETE CASCADE,
						report_date    TEXT NOT NULL,
						start_time     TEXT NOT NULL DEFAULT '',
						end_time       TEXT NOT NULL DEFAULT '',
						activity       TEXT NOT NULL,
						duration_hours REAL NOT NULL,
						description    TEXT NOT NULL DEFAULT '',
						created_at     DATETIME NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_roster_reports_series
						ON roster_reports(group_id, activity, report_date, start_time)`,
					`CREATE INDEX IF NOT EXISTS idx_roster_reports_date
						ON roster_reports(report_date DESC)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
