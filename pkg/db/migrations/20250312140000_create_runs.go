package migrations

import (
	"database/sql"

	"github.com/jingkaihe/skillgraph/pkg/db"
	"github.com/pkg/errors"
)

// Migration20250312140000CreateRuns creates the runs and run_skills tables.
// run_skills denormalizes the ordered skill list so involvement lookups
// don't have to scan every run's JSON payload.
func Migration20250312140000CreateRuns() db.Migration {
	return db.Migration{
		Version:     20250312140000,
		Description: "Create runs and run_skills tables",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS runs (
					id TEXT PRIMARY KEY,
					skill_ids TEXT NOT NULL,
					started_at DATETIME NOT NULL
				)
			`); err != nil {
				return errors.Wrap(err, "failed to create runs table")
			}

			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS run_skills (
					run_id TEXT NOT NULL,
					position INTEGER NOT NULL,
					skill_id TEXT NOT NULL,
					PRIMARY KEY (run_id, position),
					FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
				)
			`); err != nil {
				return errors.Wrap(err, "failed to create run_skills table")
			}

			return nil
		},
		Down: func(tx *sql.Tx) error {
			if _, err := tx.Exec("DROP TABLE IF EXISTS run_skills"); err != nil {
				return errors.Wrap(err, "failed to drop run_skills table")
			}
			if _, err := tx.Exec("DROP TABLE IF EXISTS runs"); err != nil {
				return errors.Wrap(err, "failed to drop runs table")
			}
			return nil
		},
	}
}
