package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillgraph/pkg/graphstore"
	"github.com/jingkaihe/skillgraph/pkg/improvements"
	"github.com/jingkaihe/skillgraph/pkg/registry"
	"github.com/jingkaihe/skillgraph/pkg/runarchive"
	"github.com/jingkaihe/skillgraph/pkg/snapshot"
	graphtypes "github.com/jingkaihe/skillgraph/pkg/types/graph"
	"github.com/jingkaihe/skillgraph/pkg/types/sources"
)

// swapRegistry lets a test change the catalog after the service is wired.
type swapRegistry struct {
	inner registry.Registry
}

func (s *swapRegistry) List(ctx context.Context) ([]sources.SkillDefinition, error) {
	return s.inner.List(ctx)
}

func (s *swapRegistry) Get(ctx context.Context, id string) (sources.SkillDefinition, error) {
	return s.inner.Get(ctx, id)
}

// flakyRuns fails List on demand to simulate an unreadable archive.
type flakyRuns struct {
	runarchive.Store
	fail bool
}

func (f *flakyRuns) List(ctx context.Context) ([]sources.RunRecord, error) {
	if f.fail {
		return nil, errors.New("archive offline")
	}
	return f.Store.List(ctx)
}

func defaultDefs() []sources.SkillDefinition {
	return []sources.SkillDefinition{
		{ID: "extract", Name: "Extract", Phase: graphtypes.PhaseResearch, Tags: []string{"data"}},
		{ID: "transform", Name: "Transform", Phase: graphtypes.PhaseImplement, Tags: []string{"data"}, Dependencies: []string{"extract"}},
		{ID: "load", Name: "Load", Phase: graphtypes.PhaseOperate, Dependencies: []string{"transform", "warehouse"}},
	}
}

type harness struct {
	svc  *Service
	reg  *swapRegistry
	runs *flakyRuns
	path string
}

// newHarness wires a service over three skills, one run and one
// improvement event:
//
//	transform depends_on extract, load depends_on transform
//	load also declares "warehouse", which is not registered
//	run-1 executed extract, transform, load in order
//	load triggered an improvement of transform
func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()

	reg := &swapRegistry{inner: registry.NewStatic(defaultDefs()...)}
	jsonStore, err := runarchive.NewJSONStore(filepath.Join(dir, "runs"))
	require.NoError(t, err)
	runs := &flakyRuns{Store: jsonStore}
	events, err := improvements.NewLog(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "state", "graph.json")
	svc, err := New(reg, runs, events, WithSnapshotPath(path))
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	ctx := context.Background()
	require.NoError(t, svc.RecordRun(ctx, sources.NewRunRecord("run-1", []string{"extract", "transform", "load"}, time.Now().UTC())))
	require.NoError(t, svc.RecordImprovement(ctx, sources.NewImprovementEvent("transform", "load", "tightened validation")))
	return &harness{svc: svc, reg: reg, runs: runs, path: path}
}

func TestNewRequiresSources(t *testing.T) {
	dir := t.TempDir()
	reg := registry.NewStatic()
	runs, err := runarchive.NewJSONStore(filepath.Join(dir, "runs"))
	require.NoError(t, err)
	defer runs.Close()
	events, err := improvements.NewLog(dir)
	require.NoError(t, err)
	defer events.Close()

	_, err = New(nil, runs, events)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "requires a registry")

	_, err = New(reg, nil, events)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "requires a run archive")

	_, err = New(reg, runs, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "requires an improvement log")

	_, err = New(reg, runs, events, WithSnapshotPath(""))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot path cannot be empty")
}

func TestOperationsBeforeBuild(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Graph()
	assert.True(t, errors.Is(err, ErrNotBuilt))

	_, err = h.svc.Query()
	assert.True(t, errors.Is(err, ErrNotBuilt))

	_, err = h.svc.RefreshNode(ctx, "extract")
	assert.True(t, errors.Is(err, ErrNotBuilt))

	_, err = h.svc.RemoveNode(ctx, "extract")
	assert.True(t, errors.Is(err, ErrNotBuilt))
}

func TestBuildPersistsAndPublishes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	snap, err := h.svc.Build(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, snap.Graph.NodeCount())
	assert.Equal(t, 9, snap.Graph.EdgeCount())
	assert.True(t, snap.Scoring.Converged)
	assert.True(t, snapshot.Exists(h.svc.SnapshotPath()))

	published, err := h.svc.Graph()
	require.NoError(t, err)
	assert.Same(t, snap, published)

	// run-1 usage folded into every node it touched
	node, ok := snap.Graph.Node("transform")
	require.True(t, ok)
	assert.Equal(t, 1, node.UsageCount)
	require.NotNil(t, node.LastUsedAt)
	assert.Greater(t, node.Leverage, 0.0)

	// the improvement edge runs from the triggering skill to the improved one
	var improved *graphtypes.Edge
	for _, e := range snap.Graph.Edges() {
		if e.Type == graphtypes.EdgeImprovedBy {
			improved = e
		}
	}
	require.NotNil(t, improved)
	assert.Equal(t, "load", improved.Source)
	assert.Equal(t, "transform", improved.Target)

	require.Len(t, snap.Gaps.MissingDependencies, 1)
	assert.Equal(t, graphtypes.MissingDependency{SourceID: "load", TargetID: "warehouse"}, snap.Gaps.MissingDependencies[0])
	assert.Empty(t, snap.Gaps.IsolatedSkills)
	assert.Empty(t, snap.Gaps.UnusedSkills)
}

func TestBuildRejectsUnknownPhase(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.reg.inner = registry.NewStatic(sources.SkillDefinition{ID: "odd", Phase: "polish"})

	_, err := h.svc.Build(ctx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown phase")

	_, err = h.svc.Graph()
	assert.True(t, errors.Is(err, ErrNotBuilt))
}

func TestBuildSourceFailureKeepsPreviousSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.svc.Build(ctx)
	require.NoError(t, err)

	h.runs.fail = true
	_, err = h.svc.Build(ctx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list runs")

	published, err := h.svc.Graph()
	require.NoError(t, err)
	assert.Same(t, first, published)
}

func TestPersistFailureKeepsPreviousSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.svc.Build(ctx)
	require.NoError(t, err)

	// replace the snapshot directory with a file so the next write fails
	stateDir := filepath.Dir(h.path)
	require.NoError(t, os.RemoveAll(stateDir))
	require.NoError(t, os.WriteFile(stateDir, []byte("not a directory"), 0o644))

	_, err = h.svc.RemoveNode(ctx, "load")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to persist snapshot")

	published, err := h.svc.Graph()
	require.NoError(t, err)
	assert.Same(t, first, published)
	assert.True(t, published.Graph.HasNode("load"))
}

func TestRefreshNodeFoldsInNewRuns(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Build(ctx)
	require.NoError(t, err)

	// a run recorded after the build stays invisible until a refresh
	require.NoError(t, h.svc.RecordRun(ctx, sources.NewRunRecord("run-2", []string{"transform", "load"}, time.Now().UTC())))

	snap, err := h.svc.RefreshNode(ctx, "transform")
	require.NoError(t, err)

	node, ok := snap.Graph.Node("transform")
	require.True(t, ok)
	assert.Equal(t, 2, node.UsageCount)

	// load ran in run-2 too, but only the refreshed node's usage moves
	loadNode, ok := snap.Graph.Node("load")
	require.True(t, ok)
	assert.Equal(t, 1, loadNode.UsageCount)

	assert.True(t, snap.Scoring.Converged)

	published, err := h.svc.Graph()
	require.NoError(t, err)
	assert.Same(t, snap, published)
}

func TestRefreshNodeNotFound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Build(ctx)
	require.NoError(t, err)

	_, err = h.svc.RefreshNode(ctx, "ghost")
	assert.True(t, errors.Is(err, graphstore.ErrNotFound))
}

func TestRefreshNodeDeregisteredSkill(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Build(ctx)
	require.NoError(t, err)

	// drop load from the catalog; it is still in the published graph
	h.reg.inner = registry.NewStatic(defaultDefs()[:2]...)

	_, err = h.svc.RefreshNode(ctx, "load")
	assert.True(t, errors.Is(err, graphstore.ErrNotFound))
	assert.Contains(t, err.Error(), "no longer registered")
}

func TestRemoveNode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Build(ctx)
	require.NoError(t, err)

	snap, err := h.svc.RemoveNode(ctx, "load")
	require.NoError(t, err)

	assert.False(t, snap.Graph.HasNode("load"))
	assert.Equal(t, 2, snap.Graph.NodeCount())
	assert.Equal(t, 4, snap.Graph.EdgeCount())
	for _, e := range snap.Graph.Edges() {
		assert.NotEqual(t, "load", e.Source)
		assert.NotEqual(t, "load", e.Target)
	}

	// the missing finding load declared goes with it
	assert.Empty(t, snap.Gaps.MissingDependencies)

	published, err := h.svc.Graph()
	require.NoError(t, err)
	assert.Same(t, snap, published)
}

func TestRemoveNodeNotFound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Build(ctx)
	require.NoError(t, err)

	_, err = h.svc.RemoveNode(ctx, "ghost")
	assert.True(t, errors.Is(err, graphstore.ErrNotFound))
}

func TestLoadRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	built, err := h.svc.Build(ctx)
	require.NoError(t, err)

	// a second service over the same snapshot path, different sources
	dir := t.TempDir()
	runs, err := runarchive.NewJSONStore(filepath.Join(dir, "runs"))
	require.NoError(t, err)
	events, err := improvements.NewLog(dir)
	require.NoError(t, err)
	restored, err := New(registry.NewStatic(), runs, events, WithSnapshotPath(h.path))
	require.NoError(t, err)
	t.Cleanup(func() { restored.Close() })

	loaded, err := restored.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, built.Graph.NodeCount(), loaded.Graph.NodeCount())
	assert.Equal(t, built.Graph.EdgeCount(), loaded.Graph.EdgeCount())
	assert.WithinDuration(t, built.Graph.BuiltAt(), loaded.Graph.BuiltAt(), time.Second)

	// scores and usage travel with the document
	orig, ok := built.Graph.Node("transform")
	require.True(t, ok)
	back, ok := loaded.Graph.Node("transform")
	require.True(t, ok)
	assert.InDelta(t, orig.Leverage, back.Leverage, 1e-9)
	assert.Equal(t, orig.UsageCount, back.UsageCount)

	// clusters travel too
	require.Len(t, loaded.Graph.Clusters(), 1)
	assert.Equal(t, "data", loaded.Graph.Clusters()[0].Tag)

	// missing-dependency findings are build-time knowledge, not persisted
	assert.Empty(t, loaded.Gaps.MissingDependencies)

	q, err := restored.Query()
	require.NoError(t, err)
	path, found := q.FindPath("extract", "load")
	assert.True(t, found)
	assert.Equal(t, "extract", path[0])
}

func TestLoadMissingSnapshot(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Load(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot not found")
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, normalizeTags([]string{"b", "", "a", "b"}))
	assert.Nil(t, normalizeTags(nil))
	assert.Nil(t, normalizeTags([]string{"", ""}))
}

func TestSpliceMissing(t *testing.T) {
	old := []graphtypes.MissingDependency{
		{SourceID: "a", TargetID: "x"},
		{SourceID: "a", TargetID: "x"},
		{SourceID: "b", TargetID: "y"},
		{SourceID: "c", TargetID: "b"},
	}

	out := spliceMissing(old, "b", []graphtypes.MissingDependency{{SourceID: "b", TargetID: "z"}})

	assert.Equal(t, []graphtypes.MissingDependency{
		{SourceID: "a", TargetID: "x"},
		{SourceID: "b", TargetID: "z"},
	}, out)
}
