package runarchive

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/jingkaihe/skillgraph/pkg/db"
	"github.com/jingkaihe/skillgraph/pkg/db/migrations"
	"github.com/jingkaihe/skillgraph/pkg/types/sources"
)

// SQLiteStore implements the Store interface using the shared SQLite
// database.
type SQLiteStore struct {
	dbPath string
	db     *sqlx.DB
}

// NewSQLiteStore creates a new SQLite-based run store, running any
// pending migrations.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	sqlDB, err := db.Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	runner := db.NewMigrationRunner(sqlDB)
	if err := runner.Run(ctx, migrations.All()); err != nil {
		sqlDB.Close()
		return nil, errors.Wrap(err, "failed to run migrations")
	}

	return &SQLiteStore{
		dbPath: dbPath,
		db:     sqlDB,
	}, nil
}

// Append stores a run and its per-skill index rows atomically.
func (s *SQLiteStore) Append(ctx context.Context, record sources.RunRecord) error {
	record, err := normalizeRecord(record)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	skillIDsJSON, err := json.Marshal(record.SkillIDs)
	if err != nil {
		return errors.Wrap(err, "failed to marshal skill ids")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, skill_ids, started_at)
		VALUES (?, ?, ?)
	`, record.ID, string(skillIDsJSON), record.StartedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return errors.Wrap(err, "failed to save run record")
	}

	// replacing a run rewrites its index rows
	if _, err := tx.ExecContext(ctx, "DELETE FROM run_skills WHERE run_id = ?", record.ID); err != nil {
		return errors.Wrap(err, "failed to clear run index entries")
	}
	for position, skillID := range record.SkillIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO run_skills (run_id, position, skill_id)
			VALUES (?, ?, ?)
		`, record.ID, position, skillID)
		if err != nil {
			return errors.Wrap(err, "failed to save run index entry")
		}
	}

	return tx.Commit()
}

// List returns all stored runs in chronological order.
func (s *SQLiteStore) List(ctx context.Context) ([]sources.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, skill_ids, started_at
		FROM runs
		ORDER BY started_at ASC, id ASC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query runs")
	}
	defer rows.Close()

	return scanRuns(rows)
}

// ListInvolving returns the runs containing skillID via the index table.
func (s *SQLiteStore) ListInvolving(ctx context.Context, skillID string) ([]sources.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT r.id, r.skill_ids, r.started_at
		FROM runs r
		JOIN run_skills rs ON rs.run_id = r.id
		WHERE rs.skill_id = ?
		ORDER BY r.started_at ASC, r.id ASC
	`, skillID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query runs by skill")
	}
	defer rows.Close()

	return scanRuns(rows)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanRuns(rows rowScanner) ([]sources.RunRecord, error) {
	var runs []sources.RunRecord
	for rows.Next() {
		var record sources.RunRecord
		var skillIDs, startedAt string

		if err := rows.Scan(&record.ID, &skillIDs, &startedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan run row")
		}
		if err := json.Unmarshal([]byte(skillIDs), &record.SkillIDs); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal skill ids")
		}

		parsed, err := time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse run timestamp")
		}
		record.StartedAt = parsed

		runs = append(runs, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating run rows")
	}
	return runs, nil
}
