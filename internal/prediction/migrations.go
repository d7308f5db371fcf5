package prediction

import (
	"database/sql"

	"github.com/fieldcast/fieldcast/pkg/plugin"
)

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create prediction_forecasts table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS prediction_forecasts (
						id              TEXT PRIMARY KEY,
						group_id        TEXT NOT NULL,
						activity        TEXT NOT NULL,
						predicted_date  TEXT NOT NULL,
						predicted_hours REAL NOT NULL,
						mape_percent    REAL NOT NULL,
						alpha           REAL NOT NULL,
						beta            REAL NOT NULL,
						gamma           REAL NOT NULL,
						level           REAL NOT NULL DEFAULT 0,
						trend           REAL NOT NULL DEFAULT 0,
						method          TEXT NOT NULL,
						policy          TEXT NOT NULL DEFAULT '',
						observations    INTEGER NOT NULL DEFAULT 0,
						generated_at    DATETIME NOT NULL,
						UNIQUE(group_id, activity, predicted_date)
					)`,
					`CREATE INDEX IF NOT EXISTS idx_prediction_forecasts_group
						ON prediction_forecasts(group_id, generated_at DESC)`,
					`CREATE INDEX IF NOT EXISTS idx_prediction_forecasts_generated
						ON prediction_forecasts(generated_at)`,
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
