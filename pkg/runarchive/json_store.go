package runarchive

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillgraph/pkg/logger"
	"github.com/jingkaihe/skillgraph/pkg/types/sources"
)

// JSONStore implements the Store interface using one JSON file per run.
type JSONStore struct {
	basePath string
}

// NewJSONStore creates a new JSON file-based run store.
func NewJSONStore(basePath string) (*JSONStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create runs directory")
	}

	return &JSONStore{
		basePath: basePath,
	}, nil
}

// Append persists a run to its own JSON file.
func (s *JSONStore) Append(ctx context.Context, record sources.RunRecord) error {
	record, err := normalizeRecord(record)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal run record")
	}

	// Write to a temporary file first, then rename into place
	filePath := filepath.Join(s.basePath, record.ID+".json")
	tempPath := filePath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write temporary run file")
	}
	if err := os.Rename(tempPath, filePath); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(err, "failed to rename temporary run file")
	}

	return nil
}

// List returns all stored runs in chronological order.
func (s *JSONStore) List(ctx context.Context) ([]sources.RunRecord, error) {
	var runs []sources.RunRecord

	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			logger.G(ctx).WithError(err).WithField("file", path).Warn("Failed to read run file")
			return nil
		}

		var record sources.RunRecord
		if err := json.Unmarshal(data, &record); err != nil {
			logger.G(ctx).WithError(err).WithField("file", path).Warn("Failed to parse run file")
			return nil
		}

		runs = append(runs, record)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}

	sortRuns(runs)
	return runs, nil
}

// ListInvolving returns the runs that contain skillID.
func (s *JSONStore) ListInvolving(ctx context.Context, skillID string) ([]sources.RunRecord, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	var runs []sources.RunRecord
	for _, record := range all {
		if involves(record, skillID) {
			runs = append(runs, record)
		}
	}
	return runs, nil
}

// Close cleans up any resources.
func (s *JSONStore) Close() error {
	// No resources to clean up for the JSON file store
	return nil
}
