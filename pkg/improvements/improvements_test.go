package improvements

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillgraph/pkg/types/sources"
)

func eventAt(id, improved, trigger string, occurredAt time.Time) sources.ImprovementEvent {
	return sources.ImprovementEvent{
		ID:         id,
		ImprovedID: improved,
		TriggerID:  trigger,
		OccurredAt: occurredAt,
	}
}

func TestNewLogCreatesDirectory(t *testing.T) {
	baseDir := filepath.Join(t.TempDir(), "nested", "skillgraph")

	log, err := NewLog(baseDir)
	require.NoError(t, err)
	defer log.Close()

	info, err := os.Stat(baseDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestAppendAndList(t *testing.T) {
	ctx := context.Background()
	log, err := NewLog(t.TempDir())
	require.NoError(t, err)
	defer log.Close()

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, log.Append(ctx, eventAt("ev-2", "deploy-service", "run-tests", base.Add(time.Hour))))
	require.NoError(t, log.Append(ctx, eventAt("ev-1", "build-image", "lint-code", base)))
	require.NoError(t, log.Append(ctx, eventAt("ev-3", "deploy-service", "build-image", base.Add(2*time.Hour))))

	events, err := log.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "ev-1", events[0].ID)
	assert.Equal(t, "ev-2", events[1].ID)
	assert.Equal(t, "ev-3", events[2].ID)
	assert.Equal(t, "build-image", events[0].ImprovedID)
	assert.Equal(t, "lint-code", events[0].TriggerID)
}

func TestListOrdersTiesByID(t *testing.T) {
	ctx := context.Background()
	log, err := NewLog(t.TempDir())
	require.NoError(t, err)
	defer log.Close()

	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, log.Append(ctx, eventAt("ev-b", "deploy-service", "run-tests", at)))
	require.NoError(t, log.Append(ctx, eventAt("ev-a", "build-image", "lint-code", at)))

	events, err := log.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ev-a", events[0].ID)
	assert.Equal(t, "ev-b", events[1].ID)
}

func TestListInvolving(t *testing.T) {
	ctx := context.Background()
	log, err := NewLog(t.TempDir())
	require.NoError(t, err)
	defer log.Close()

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, log.Append(ctx, eventAt("ev-1", "build-image", "lint-code", base)))
	require.NoError(t, log.Append(ctx, eventAt("ev-2", "deploy-service", "build-image", base.Add(time.Hour))))
	require.NoError(t, log.Append(ctx, eventAt("ev-3", "deploy-service", "run-tests", base.Add(2*time.Hour))))

	events, err := log.ListInvolving(ctx, "build-image")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ev-1", events[0].ID)
	assert.Equal(t, "ev-2", events[1].ID)

	events, err = log.ListInvolving(ctx, "lint-code")
	require.NoError(t, err)
	require.Len(t, events, 1)

	events, err = log.ListInvolving(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAppendGeneratesMissingFields(t *testing.T) {
	ctx := context.Background()
	log, err := NewLog(t.TempDir())
	require.NoError(t, err)
	defer log.Close()

	require.NoError(t, log.Append(ctx, sources.ImprovementEvent{
		ImprovedID: "deploy-service",
		TriggerID:  "run-tests",
	}))

	events, err := log.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].OccurredAt.IsZero())
}

func TestAppendValidation(t *testing.T) {
	ctx := context.Background()
	log, err := NewLog(t.TempDir())
	require.NoError(t, err)
	defer log.Close()

	err = log.Append(ctx, sources.ImprovementEvent{TriggerID: "run-tests"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "improved")

	err = log.Append(ctx, sources.ImprovementEvent{ImprovedID: "deploy-service"})
	require.Error(t, err)
}

func TestAppendRecoversFromCorruptLog(t *testing.T) {
	ctx := context.Background()
	baseDir := t.TempDir()
	log, err := NewLog(baseDir)
	require.NoError(t, err)
	defer log.Close()

	require.NoError(t, os.WriteFile(filepath.Join(baseDir, logFileName), []byte("{not json"), 0o644))

	require.NoError(t, log.Append(ctx, eventAt("ev-1", "build-image", "lint-code", time.Now().UTC())))

	events, err := log.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ev-1", events[0].ID)
}

func TestListMissingFile(t *testing.T) {
	ctx := context.Background()
	log, err := NewLog(t.TempDir())
	require.NoError(t, err)
	defer log.Close()

	events, err := log.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
}
