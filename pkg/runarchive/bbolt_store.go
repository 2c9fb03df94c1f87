package runarchive

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/jingkaihe/skillgraph/pkg/types/sources"
)

const (
	runsBucket      = "runs"
	skillRunsBucket = "skill_runs"
)

// BBoltStore implements the Store interface using BoltDB.
// Uses operation-scoped database access for multi-process safety.
type BBoltStore struct {
	dbPath string
}

// withDB executes an operation with a temporary database connection.
// Lock acquisition contends with other processes, so opens retry with
// backoff before giving up.
func (s *BBoltStore) withDB(ctx context.Context, operation func(*bbolt.DB) error) error {
	var db *bbolt.DB
	err := retry.Do(
		func() error {
			var err error
			db, err = bbolt.Open(s.dbPath, 0600, &bbolt.Options{
				Timeout: 2 * time.Second,
			})
			return err
		},
		retry.RetryIf(func(err error) bool { return errors.Is(err, bbolt.ErrTimeout) }),
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
	)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer db.Close()

	return operation(db)
}

func (s *BBoltStore) ensureBuckets(db *bbolt.DB) error {
	return db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(skillRunsBucket)); err != nil {
			return err
		}
		return nil
	})
}

// NewBBoltStore creates a new BBolt-based run store.
func NewBBoltStore(ctx context.Context, dbPath string) (*BBoltStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	store := &BBoltStore{
		dbPath: dbPath,
	}

	err := store.withDB(ctx, func(db *bbolt.DB) error {
		return store.ensureBuckets(db)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize database")
	}

	return store, nil
}

// Append stores a run record plus an index entry per distinct skill.
func (s *BBoltStore) Append(ctx context.Context, record sources.RunRecord) error {
	record, err := normalizeRecord(record)
	if err != nil {
		return err
	}

	return s.withDB(ctx, func(db *bbolt.DB) error {
		return db.Update(func(tx *bbolt.Tx) error {
			runs := tx.Bucket([]byte(runsBucket))
			index := tx.Bucket([]byte(skillRunsBucket))

			data, err := json.Marshal(record)
			if err != nil {
				return errors.Wrap(err, "failed to marshal run record")
			}
			if err := runs.Put([]byte(record.ID), data); err != nil {
				return errors.Wrap(err, "failed to save run record")
			}

			seen := make(map[string]bool, len(record.SkillIDs))
			for _, skillID := range record.SkillIDs {
				if seen[skillID] {
					continue
				}
				seen[skillID] = true
				key := []byte("skill:" + skillID + ":" + record.ID)
				if err := index.Put(key, []byte(record.ID)); err != nil {
					return errors.Wrap(err, "failed to save run index entry")
				}
			}

			return nil
		})
	})
}

// List returns all stored runs in chronological order.
func (s *BBoltStore) List(ctx context.Context) ([]sources.RunRecord, error) {
	var runs []sources.RunRecord

	err := s.withDB(ctx, func(db *bbolt.DB) error {
		return db.View(func(tx *bbolt.Tx) error {
			bucket := tx.Bucket([]byte(runsBucket))
			return bucket.ForEach(func(k, v []byte) error {
				var record sources.RunRecord
				if err := json.Unmarshal(v, &record); err != nil {
					return nil // Skip corrupted entries
				}
				runs = append(runs, record)
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}

	sortRuns(runs)
	return runs, nil
}

// ListInvolving returns the runs containing skillID using the index.
func (s *BBoltStore) ListInvolving(ctx context.Context, skillID string) ([]sources.RunRecord, error) {
	var runs []sources.RunRecord

	err := s.withDB(ctx, func(db *bbolt.DB) error {
		return db.View(func(tx *bbolt.Tx) error {
			index := tx.Bucket([]byte(skillRunsBucket))
			bucket := tx.Bucket([]byte(runsBucket))

			cursor := index.Cursor()
			prefix := []byte("skill:" + skillID + ":")
			for k, v := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
				data := bucket.Get(v)
				if data == nil {
					continue
				}
				var record sources.RunRecord
				if err := json.Unmarshal(data, &record); err != nil {
					continue
				}
				// index entries can outlive a replaced run's skill list
				if !involves(record, skillID) {
					continue
				}
				runs = append(runs, record)
			}

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sortRuns(runs)
	return runs, nil
}

// Close closes the database connection (no-op with operation-scoped access).
func (s *BBoltStore) Close() error {
	return nil
}
