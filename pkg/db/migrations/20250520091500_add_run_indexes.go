package migrations

import (
	"database/sql"

	"github.com/jingkaihe/skillgraph/pkg/db"
	"github.com/pkg/errors"
)

// Migration20250520091500AddRunIndexes adds indexes for the two hot
// queries: chronological listing and per-skill involvement lookups.
func Migration20250520091500AddRunIndexes() db.Migration {
	return db.Migration{
		Version:     20250520091500,
		Description: "Add indexes for run listing and skill involvement",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)
			`); err != nil {
				return errors.Wrap(err, "failed to create runs started_at index")
			}

			if _, err := tx.Exec(`
				CREATE INDEX IF NOT EXISTS idx_run_skills_skill_id ON run_skills(skill_id)
			`); err != nil {
				return errors.Wrap(err, "failed to create run_skills skill_id index")
			}

			return nil
		},
		Down: func(tx *sql.Tx) error {
			if _, err := tx.Exec("DROP INDEX IF EXISTS idx_run_skills_skill_id"); err != nil {
				return errors.Wrap(err, "failed to drop run_skills skill_id index")
			}
			if _, err := tx.Exec("DROP INDEX IF EXISTS idx_runs_started_at"); err != nil {
				return errors.Wrap(err, "failed to drop runs started_at index")
			}
			return nil
		},
	}
}
