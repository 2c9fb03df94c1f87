// Package improvements manages the improvement event log: records that a
// revision of one skill was prompted by observing another skill run. The
// log is a single JSON file guarded by file locking, so hooks running in
// other processes can append concurrently with a build.
package improvements

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"

	"github.com/jingkaihe/skillgraph/pkg/logger"
	"github.com/jingkaihe/skillgraph/pkg/types/sources"
)

const logFileName = "improvements.json"

// Log manages persistent storage of improvement events with file-based
// persistence. Operations are safe across goroutines and processes.
type Log struct {
	path string
	mu   sync.RWMutex
}

// data is the structure of the improvements JSON file.
type data struct {
	Events []sources.ImprovementEvent `json:"events"`
}

// NewLog creates an improvement log stored under baseDir.
func NewLog(baseDir string) (*Log, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create improvements directory")
	}

	return &Log{
		path: filepath.Join(baseDir, logFileName),
	}, nil
}

// DefaultLog creates the log in the user's skillgraph directory.
func DefaultLog() (*Log, error) {
	if basePath := os.Getenv("SKILLGRAPH_BASE_PATH"); basePath != "" {
		return NewLog(basePath)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user home directory")
	}
	return NewLog(filepath.Join(homeDir, ".skillgraph"))
}

// Append adds one event to the log.
func (l *Log) Append(ctx context.Context, event sources.ImprovementEvent) error {
	if event.ImprovedID == "" || event.TriggerID == "" {
		return errors.New("improvement event needs both an improved and a triggering skill")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return lockedfile.Transform(l.path, func(existing []byte) ([]byte, error) {
		logData := &data{}
		if len(existing) > 0 {
			if err := json.Unmarshal(existing, logData); err != nil {
				logger.G(ctx).WithError(err).Warn("failed to unmarshal existing improvement log, starting fresh")
				logData = &data{}
			}
		}

		logData.Events = append(logData.Events, event)

		result, err := json.MarshalIndent(logData, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal improvement log")
		}
		return result, nil
	})
}

// List returns every event in chronological order.
func (l *Log) List(ctx context.Context) ([]sources.ImprovementEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		return nil, nil
	}

	raw, err := lockedfile.Read(l.path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read improvement log")
	}

	var logData data
	if err := json.Unmarshal(raw, &logData); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal improvement log")
	}

	events := logData.Events
	sort.Slice(events, func(i, j int) bool {
		if !events[i].OccurredAt.Equal(events[j].OccurredAt) {
			return events[i].OccurredAt.Before(events[j].OccurredAt)
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}

// ListInvolving returns the events that reference skillID on either
// side.
func (l *Log) ListInvolving(ctx context.Context, skillID string) ([]sources.ImprovementEvent, error) {
	all, err := l.List(ctx)
	if err != nil {
		return nil, err
	}

	var events []sources.ImprovementEvent
	for _, event := range all {
		if event.ImprovedID == skillID || event.TriggerID == skillID {
			events = append(events, event)
		}
	}
	return events, nil
}

// Close cleans up any resources.
func (l *Log) Close() error {
	return nil
}
