package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/jingkaihe/skillgraph/pkg/runarchive"
	"github.com/jingkaihe/skillgraph/pkg/types/sources"
)

func main() {
	if err := runMigration(); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Migration completed successfully!")
}

func runMigration() error {
	basePath, err := runarchive.GetDefaultBasePath()
	if err != nil {
		return errors.Wrap(err, "failed to resolve storage directory")
	}

	// Paths match the runarchive factory layout
	bboltPath := filepath.Join(basePath, "runs.db")
	sqlitePath := filepath.Join(basePath, "storage.db")

	fmt.Printf("Migrating from BBolt: %s\n", bboltPath)
	fmt.Printf("To SQLite: %s\n", sqlitePath)

	// Check if bbolt database exists
	if _, err := os.Stat(bboltPath); os.IsNotExist(err) {
		return errors.Errorf("BBolt database not found at %s", bboltPath)
	}

	// Check if SQLite database already exists
	if _, err := os.Stat(sqlitePath); err == nil {
		return errors.Errorf("SQLite database already exists at %s. Please remove it first or backup your data", sqlitePath)
	}

	// Read runs from BBolt
	runs, err := readRunsFromBBolt(bboltPath)
	if err != nil {
		return errors.Wrap(err, "failed to read runs from BBolt")
	}

	fmt.Printf("Found %d runs in BBolt database\n", len(runs))

	if len(runs) == 0 {
		fmt.Println("No runs found, creating empty SQLite database")
	}

	// Create SQLite database and migrate data
	if err := writeRunsToSQLite(sqlitePath, runs); err != nil {
		return errors.Wrap(err, "failed to write runs to SQLite")
	}

	return nil
}

func readRunsFromBBolt(dbPath string) ([]sources.RunRecord, error) {
	// Open BBolt database
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		ReadOnly: true,
		Timeout:  5 * time.Second,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open BBolt database")
	}
	defer db.Close()

	var records []sources.RunRecord

	err = db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte("runs"))
		if bucket == nil {
			fmt.Println("No runs bucket found in BBolt database")
			return nil
		}

		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			var record sources.RunRecord
			if err := json.Unmarshal(v, &record); err != nil {
				fmt.Printf("Warning: Failed to unmarshal run %s: %v\n", string(k), err)
				continue
			}
			records = append(records, record)
		}

		return nil
	})

	if err != nil {
		return nil, errors.Wrap(err, "failed to read from BBolt database")
	}

	return records, nil
}

func writeRunsToSQLite(dbPath string, records []sources.RunRecord) error {
	ctx := context.Background()

	// Create SQLite store (this will create the database and run migrations)
	store, err := runarchive.NewSQLiteStore(ctx, dbPath)
	if err != nil {
		return errors.Wrap(err, "failed to create SQLite store")
	}
	defer store.Close()

	// Save all runs
	for i, record := range records {
		if err := store.Append(ctx, record); err != nil {
			return errors.Wrapf(err, "failed to save run %s (record %d)", record.ID, i+1)
		}

		// Print progress for large migrations
		if (i+1)%10 == 0 || i+1 == len(records) {
			fmt.Printf("Migrated %d/%d runs\n", i+1, len(records))
		}
	}

	return nil
}
