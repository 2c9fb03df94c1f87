// Package runarchive persists the execution history consumed by the
// graph build: which skills ran together and in what order. Three
// backends are provided; the SQLite store is the default.
package runarchive

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillgraph/pkg/types/sources"
)

// Store defines the interface for run persistence.
type Store interface {
	// Append records one run. A record with an empty id gets one
	// generated; appending the same id twice replaces the stored run.
	Append(ctx context.Context, record sources.RunRecord) error
	// List returns every run in chronological order (oldest first).
	List(ctx context.Context) ([]sources.RunRecord, error)
	// ListInvolving returns the runs whose skill list contains skillID,
	// in the same chronological order.
	ListInvolving(ctx context.Context, skillID string) ([]sources.RunRecord, error)

	Close() error
}

// Config holds configuration for the run store.
type Config struct {
	StoreType string // "json", "bbolt" or "sqlite"
	BasePath  string // Base storage directory
}

// DefaultConfig returns a default configuration.
func DefaultConfig() (*Config, error) {
	basePath, err := GetDefaultBasePath()
	if err != nil {
		return nil, err
	}

	return &Config{
		StoreType: "sqlite",
		BasePath:  basePath,
	}, nil
}

// GetDefaultBasePath returns the default storage directory.
func GetDefaultBasePath() (string, error) {
	if basePath := os.Getenv("SKILLGRAPH_BASE_PATH"); basePath != "" {
		return basePath, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user home directory")
	}

	basePath := filepath.Join(homeDir, ".skillgraph")
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create storage directory")
	}

	return basePath, nil
}

// normalizeRecord fills in generated fields and rejects empty runs.
func normalizeRecord(record sources.RunRecord) (sources.RunRecord, error) {
	if len(record.SkillIDs) == 0 {
		return record, errors.New("run has no skills")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.StartedAt.IsZero() {
		record.StartedAt = time.Now().UTC()
	}
	return record, nil
}

// sortRuns orders runs chronologically, ties broken by id.
func sortRuns(runs []sources.RunRecord) {
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.Before(runs[j].StartedAt)
		}
		return runs[i].ID < runs[j].ID
	})
}

func involves(record sources.RunRecord, skillID string) bool {
	for _, id := range record.SkillIDs {
		if id == skillID {
			return true
		}
	}
	return false
}
