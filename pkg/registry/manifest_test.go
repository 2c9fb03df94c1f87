package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	graphtypes "github.com/jingkaihe/skillgraph/pkg/types/graph"
	"github.com/jingkaihe/skillgraph/pkg/types/sources"
)

func sourceDef(id string, phase graphtypes.Phase) sources.SkillDefinition {
	return sources.SkillDefinition{ID: id, Name: id, Description: id, Phase: phase}
}

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "skills.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestManifestList(t *testing.T) {
	path := writeManifest(t, `skills:
  - id: deploy
    name: Deploy Service
    description: Rolls out a service
    phase: operate
    tags: [ops, deploy]
    version: 2.0.0
    dependencies: [build]
  - id: build
    description: Builds the image
    phase: implement
    tags: [ops]
`)

	m := NewManifest(path)
	defs, err := m.List(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "build", defs[0].ID)
	assert.Equal(t, "build", defs[0].Name, "name defaults to id")

	deploy := defs[1]
	assert.Equal(t, "Deploy Service", deploy.Name)
	assert.Equal(t, graphtypes.PhaseOperate, deploy.Phase)
	assert.Equal(t, []string{"deploy", "ops"}, deploy.Tags)
	assert.Equal(t, []string{"build"}, deploy.Dependencies)
}

func TestManifestRejectsDuplicateIDs(t *testing.T) {
	path := writeManifest(t, `skills:
  - id: deploy
    description: One
    phase: operate
  - id: deploy
    description: Two
    phase: operate
`)

	_, err := NewManifest(path).List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate skill id")
}

func TestManifestDefaultsMissingPhase(t *testing.T) {
	path := writeManifest(t, `skills:
  - id: triage
    description: No phase given
`)

	defs, err := NewManifest(path).List(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, graphtypes.DefaultPhase, defs[0].Phase)
}

func TestManifestRejectsInvalidPhase(t *testing.T) {
	path := writeManifest(t, `skills:
  - id: deploy
    description: Bad phase
    phase: shipping
`)

	_, err := NewManifest(path).List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown phase")
}

func TestManifestRejectsMissingID(t *testing.T) {
	path := writeManifest(t, `skills:
  - description: No id
    phase: operate
`)

	_, err := NewManifest(path).List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "skill id is required")
}

func TestManifestMissingFile(t *testing.T) {
	_, err := NewManifest(filepath.Join(t.TempDir(), "absent.yaml")).List(context.Background())
	assert.Error(t, err)
}

func TestManifestGet(t *testing.T) {
	path := writeManifest(t, `skills:
  - id: lint
    description: Lints
    phase: review
`)

	m := NewManifest(path)
	def, err := m.Get(context.Background(), "lint")
	require.NoError(t, err)
	assert.Equal(t, "lint", def.ID)

	_, err = m.Get(context.Background(), "unknown")
	assert.Error(t, err)
}

func TestStaticRegistry(t *testing.T) {
	s := NewStatic(
		sourceDef("b", graphtypes.PhaseDesign),
		sourceDef("a", graphtypes.PhaseResearch),
	)

	defs, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "a", defs[0].ID, "sorted by id")

	def, err := s.Get(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, graphtypes.PhaseDesign, def.Phase)

	_, err = s.Get(context.Background(), "c")
	assert.Error(t, err)
}
