// Package snapshot persists graph documents as JSON files. Writes go
// through a temp file and rename so a crash mid-write never leaves a
// truncated snapshot behind.
package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	graphtypes "github.com/jingkaihe/skillgraph/pkg/types/graph"
)

// ErrSchemaVersion marks snapshots written by an incompatible schema
// version. Rebuild from sources instead of migrating.
var ErrSchemaVersion = errors.New("incompatible snapshot schema version")

// versionProbe reads just enough of a snapshot to check compatibility
// before committing to a full decode.
type versionProbe struct {
	SchemaVersion int `json:"schemaVersion"`
}

// Save writes the document to path atomically, creating parent
// directories as needed.
func Save(path string, doc *graphtypes.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal graph snapshot")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create snapshot directory")
	}

	// Write to a temporary file first, then rename into place
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write temporary snapshot file")
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(err, "failed to rename temporary snapshot file")
	}

	return nil
}

// Load reads a snapshot document from path. A snapshot written by an
// incompatible schema version is rejected outright rather than patched
// up; rebuild from sources instead.
func Load(path string) (*graphtypes.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("snapshot not found: %s", path)
		}
		return nil, errors.Wrap(err, "failed to read snapshot file")
	}

	var probe versionProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errors.Wrapf(err, "failed to parse snapshot file %s", path)
	}
	if probe.SchemaVersion != graphtypes.SchemaVersion {
		return nil, errors.Wrapf(ErrSchemaVersion, "snapshot %s has schema version %d, this build reads version %d",
			path, probe.SchemaVersion, graphtypes.SchemaVersion)
	}

	var doc graphtypes.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal snapshot file %s", path)
	}

	return &doc, nil
}

// Exists reports whether a snapshot file is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
