package runarchive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillgraph/pkg/types/sources"
)

// each backend runs the same behavioral suite
func backends(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	jsonStore, err := NewJSONStore(filepath.Join(t.TempDir(), "runs"))
	require.NoError(t, err)

	bboltStore, err := NewBBoltStore(ctx, filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)

	sqliteStore, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "storage.db"))
	require.NoError(t, err)

	return map[string]Store{
		"json":   jsonStore,
		"bbolt":  bboltStore,
		"sqlite": sqliteStore,
	}
}

func runAt(id string, startedAt time.Time, skillIDs ...string) sources.RunRecord {
	return sources.RunRecord{ID: id, SkillIDs: skillIDs, StartedAt: startedAt}
}

func TestStoreAppendAndList(t *testing.T) {
	base := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()
			ctx := context.Background()

			// inserted out of chronological order
			require.NoError(t, store.Append(ctx, runAt("run-2", base.Add(time.Hour), "lint", "deploy")))
			require.NoError(t, store.Append(ctx, runAt("run-1", base, "build", "lint")))
			require.NoError(t, store.Append(ctx, runAt("run-3", base.Add(2*time.Hour), "deploy")))

			runs, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, runs, 3)
			assert.Equal(t, "run-1", runs[0].ID)
			assert.Equal(t, "run-2", runs[1].ID)
			assert.Equal(t, "run-3", runs[2].ID)
			assert.Equal(t, []string{"build", "lint"}, runs[0].SkillIDs)
			assert.True(t, runs[0].StartedAt.Equal(base))
		})
	}
}

func TestStoreListInvolving(t *testing.T) {
	base := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()
			ctx := context.Background()

			require.NoError(t, store.Append(ctx, runAt("run-1", base, "build", "lint")))
			require.NoError(t, store.Append(ctx, runAt("run-2", base.Add(time.Hour), "lint", "deploy")))
			require.NoError(t, store.Append(ctx, runAt("run-3", base.Add(2*time.Hour), "deploy")))

			runs, err := store.ListInvolving(ctx, "lint")
			require.NoError(t, err)
			require.Len(t, runs, 2)
			assert.Equal(t, "run-1", runs[0].ID)
			assert.Equal(t, "run-2", runs[1].ID)

			runs, err = store.ListInvolving(ctx, "unknown")
			require.NoError(t, err)
			assert.Empty(t, runs)
		})
	}
}

func TestStoreGeneratesMissingFields(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()
			ctx := context.Background()

			require.NoError(t, store.Append(ctx, sources.RunRecord{SkillIDs: []string{"build"}}))

			runs, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, runs, 1)
			assert.NotEmpty(t, runs[0].ID)
			assert.False(t, runs[0].StartedAt.IsZero())
		})
	}
}

func TestStoreRejectsEmptyRun(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()

			err := store.Append(context.Background(), sources.RunRecord{ID: "empty"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "no skills")
		})
	}
}

func TestStoreReplaceRun(t *testing.T) {
	base := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()
			ctx := context.Background()

			require.NoError(t, store.Append(ctx, runAt("run-1", base, "build", "lint")))
			require.NoError(t, store.Append(ctx, runAt("run-1", base, "deploy")))

			runs, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, runs, 1)
			assert.Equal(t, []string{"deploy"}, runs[0].SkillIDs)

			// the replaced run no longer counts for its old skills
			involving, err := store.ListInvolving(ctx, "build")
			require.NoError(t, err)
			assert.Empty(t, involving)

			involving, err = store.ListInvolving(ctx, "deploy")
			require.NoError(t, err)
			require.Len(t, involving, 1)
		})
	}
}

func TestStoreRepeatedSkillInOneRun(t *testing.T) {
	base := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()
			ctx := context.Background()

			require.NoError(t, store.Append(ctx, runAt("run-1", base, "lint", "build", "lint")))

			runs, err := store.ListInvolving(ctx, "lint")
			require.NoError(t, err)
			require.Len(t, runs, 1, "a run appears once however often the skill repeats")
			assert.Equal(t, []string{"lint", "build", "lint"}, runs[0].SkillIDs, "stored order is preserved")
		})
	}
}

func TestFactory(t *testing.T) {
	ctx := context.Background()

	t.Run("json", func(t *testing.T) {
		store, err := NewStore(ctx, &Config{StoreType: "json", BasePath: t.TempDir()})
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &JSONStore{}, store)
	})

	t.Run("bbolt", func(t *testing.T) {
		store, err := NewStore(ctx, &Config{StoreType: "bbolt", BasePath: t.TempDir()})
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &BBoltStore{}, store)
	})

	t.Run("sqlite", func(t *testing.T) {
		store, err := NewStore(ctx, &Config{StoreType: "sqlite", BasePath: t.TempDir()})
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &SQLiteStore{}, store)
	})

	t.Run("empty defaults to sqlite", func(t *testing.T) {
		store, err := NewStore(ctx, &Config{BasePath: t.TempDir()})
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &SQLiteStore{}, store)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := NewStore(ctx, &Config{StoreType: "cassandra", BasePath: t.TempDir()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown run store type")
	})
}
