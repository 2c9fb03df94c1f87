package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	graphtypes "github.com/jingkaihe/skillgraph/pkg/types/graph"
)

func testDocument() *graphtypes.Document {
	return &graphtypes.Document{
		SchemaVersion: graphtypes.SchemaVersion,
		BuiltAt:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Nodes: []*graphtypes.Node{
			{ID: "deploy", Name: "Deploy", Phase: graphtypes.PhaseOperate, Tags: []string{"ops"}, Leverage: 1.2},
			{ID: "lint", Name: "Lint", Phase: graphtypes.PhaseReview, Leverage: 0.8},
		},
		Edges: []*graphtypes.Edge{
			{Source: "lint", Target: "deploy", Type: graphtypes.EdgeSequence, Weight: 2, Evidence: []string{"run-1"}},
		},
		Clusters: []*graphtypes.Cluster{
			{Tag: "ops", Members: []string{"deploy"}, Cohesion: 0},
		},
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")

	doc := testDocument()
	require.NoError(t, Save(path, doc))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, doc.SchemaVersion, loaded.SchemaVersion)
	assert.True(t, doc.BuiltAt.Equal(loaded.BuiltAt))
	require.Len(t, loaded.Nodes, 2)
	assert.Equal(t, "deploy", loaded.Nodes[0].ID)
	require.Len(t, loaded.Edges, 1)
	assert.Equal(t, 2.0, loaded.Edges[0].Weight)
	require.Len(t, loaded.Clusters, 1)
	assert.Equal(t, "ops", loaded.Clusters[0].Tag)
}

func TestSaveCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "graph.json")

	require.NoError(t, Save(path, testDocument()))
	assert.True(t, Exists(path))
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.json")

	require.NoError(t, Save(path, testDocument()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "graph.json", entries[0].Name())
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot not found")
}

func TestLoadRejectsUnknownSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")

	doc := testDocument()
	doc.SchemaVersion = 99
	require.NoError(t, Save(path, doc))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaVersion))
	assert.Contains(t, err.Error(), "schema version 99")
	assert.Contains(t, err.Error(), path)
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse snapshot")
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, Exists(filepath.Join(dir, "absent.json")))
	assert.False(t, Exists(dir), "directories do not count")

	path := filepath.Join(dir, "graph.json")
	require.NoError(t, Save(path, testDocument()))
	assert.True(t, Exists(path))
}
