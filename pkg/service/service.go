// Package service orchestrates the lifecycle of the skill graph: full
// builds, single-node refreshes, removals, snapshot persistence and atomic
// publication. It is the only layer that mutates graph state; everything
// else reads published snapshots.
package service

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/skillgraph/pkg/cluster"
	"github.com/jingkaihe/skillgraph/pkg/gaps"
	"github.com/jingkaihe/skillgraph/pkg/graphstore"
	"github.com/jingkaihe/skillgraph/pkg/inference"
	"github.com/jingkaihe/skillgraph/pkg/leverage"
	"github.com/jingkaihe/skillgraph/pkg/logger"
	"github.com/jingkaihe/skillgraph/pkg/query"
	"github.com/jingkaihe/skillgraph/pkg/registry"
	"github.com/jingkaihe/skillgraph/pkg/runarchive"
	"github.com/jingkaihe/skillgraph/pkg/snapshot"
	"github.com/jingkaihe/skillgraph/pkg/telemetry"
	graphtypes "github.com/jingkaihe/skillgraph/pkg/types/graph"
	"github.com/jingkaihe/skillgraph/pkg/types/sources"
)

// ErrNotBuilt signals a query or mutation against a service that has not
// published a snapshot yet.
var ErrNotBuilt = errors.New("graph not built")

const snapshotFileName = "graph.json"

// ImprovementLog is the slice of the improvement log the service consumes.
type ImprovementLog interface {
	Append(ctx context.Context, event sources.ImprovementEvent) error
	List(ctx context.Context) ([]sources.ImprovementEvent, error)
	ListInvolving(ctx context.Context, skillID string) ([]sources.ImprovementEvent, error)
	Close() error
}

// Service coordinates builds over the three sources and publishes the
// results. Mutating operations (Build, RefreshNode, RemoveNode, Load) are
// serialized by a single-writer lock; reads go against the last published
// snapshot and never block on a writer.
type Service struct {
	mu sync.Mutex

	registry registry.Registry
	runs     runarchive.Store
	events   ImprovementLog

	store  *graphstore.Store
	engine *inference.Engine

	snapshotPath string
	scoring      leverage.Options
	gapOpts      gaps.Options
}

// Option configures a Service.
type Option func(*Service) error

// WithSnapshotPath overrides where snapshots are persisted.
func WithSnapshotPath(path string) Option {
	return func(s *Service) error {
		if path == "" {
			return errors.New("snapshot path cannot be empty")
		}
		s.snapshotPath = path
		return nil
	}
}

// WithScoringOptions overrides the leverage scorer tuning.
func WithScoringOptions(opts leverage.Options) Option {
	return func(s *Service) error {
		s.scoring = opts
		return nil
	}
}

// WithGapOptions overrides the gap analyzer tuning.
func WithGapOptions(opts gaps.Options) Option {
	return func(s *Service) error {
		s.gapOpts = opts
		return nil
	}
}

// New wires a service over the given sources. The snapshot is persisted
// under the skillgraph base directory unless WithSnapshotPath overrides it.
func New(reg registry.Registry, runs runarchive.Store, events ImprovementLog, opts ...Option) (*Service, error) {
	if reg == nil {
		return nil, errors.New("service requires a registry")
	}
	if runs == nil {
		return nil, errors.New("service requires a run archive")
	}
	if events == nil {
		return nil, errors.New("service requires an improvement log")
	}

	s := &Service{
		registry: reg,
		runs:     runs,
		events:   events,
		store:    graphstore.NewStore(),
		engine:   inference.NewEngine(),
		scoring:  leverage.DefaultOptions(),
		gapOpts:  gaps.DefaultOptions(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.snapshotPath == "" {
		basePath, err := runarchive.GetDefaultBasePath()
		if err != nil {
			return nil, errors.Wrap(err, "failed to resolve snapshot path")
		}
		s.snapshotPath = filepath.Join(basePath, snapshotFileName)
	}
	return s, nil
}

// SnapshotPath returns where snapshots are persisted.
func (s *Service) SnapshotPath() string {
	return s.snapshotPath
}

// Build reads all three sources, infers the full edge set, scores from a
// cold start, derives clusters and gaps, persists the snapshot and
// publishes it. Any source read error or persistence failure aborts the
// build and leaves the previously published snapshot untouched.
func (s *Service) Build(ctx context.Context) (*graphstore.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap *graphstore.Snapshot
	err := telemetry.WithSpan(ctx, "service.build", func(ctx context.Context) error {
		skills, err := s.registry.List(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to list skills")
		}
		runs, err := s.runs.List(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to list runs")
		}
		events, err := s.events.List(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to list improvement events")
		}

		res := s.engine.Infer(ctx, inference.Inputs{Skills: skills, Runs: runs, Events: events})

		g := graphstore.NewGraph()
		for _, def := range skills {
			if !def.Phase.Valid() {
				return errors.Errorf("skill %q has unknown phase %q", def.ID, def.Phase)
			}
			if err := g.AddNode(nodeFromDefinition(def)); err != nil {
				return errors.Wrapf(err, "skill %q", def.ID)
			}
		}
		for _, e := range res.Edges {
			if err := g.UpsertEdge(e.Source, e.Target, e.Type, e.Weight, e.Evidence...); err != nil {
				return errors.Wrapf(err, "edge %s->%s", e.Source, e.Target)
			}
		}
		applyUsage(g, res.Usage)
		g.RecomputeDegrees()
		g.SetBuiltAt(time.Now().UTC())

		scores := leverage.Score(g, nil, s.scoring)
		leverage.Apply(g, scores)

		built := s.assemble(g, res.Missing, scores.Stats())
		if err := s.persistAndPublish(ctx, built); err != nil {
			return err
		}
		snap = built

		logger.G(ctx).WithFields(logrus.Fields{
			"nodes":      g.NodeCount(),
			"edges":      g.EdgeCount(),
			"clusters":   len(g.Clusters()),
			"iterations": snap.Scoring.Iterations,
			"converged":  snap.Scoring.Converged,
		}).Info("graph build complete")
		telemetry.SetAttributes(ctx,
			attribute.Int("graph.nodes", g.NodeCount()),
			attribute.Int("graph.edges", g.EdgeCount()),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// RefreshNode re-derives only the edges touching one skill from the
// current registry metadata and archive history, rescores the whole graph
// warm-started from the previous converged scores, and publishes the
// result. Returns ErrNotFound when the skill is absent from the current
// snapshot or no longer registered. Any failure leaves the previous
// snapshot published.
func (s *Service) RefreshNode(ctx context.Context, id string) (*graphstore.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap *graphstore.Snapshot
	err := telemetry.WithSpan(ctx, "service.refresh_node", func(ctx context.Context) error {
		cur := s.store.Current()
		if cur == nil {
			return ErrNotBuilt
		}
		if !cur.Graph.HasNode(id) {
			return errors.Wrapf(graphstore.ErrNotFound, "skill %q", id)
		}

		def, err := s.registry.Get(ctx, id)
		if err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				return errors.Wrapf(graphstore.ErrNotFound, "skill %q is no longer registered", id)
			}
			return errors.Wrapf(err, "failed to read skill %q", id)
		}
		defs, err := s.registry.List(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to list skills")
		}
		runs, err := s.runs.ListInvolving(ctx, id)
		if err != nil {
			return errors.Wrap(err, "failed to list runs")
		}
		events, err := s.events.ListInvolving(ctx, id)
		if err != nil {
			return errors.Wrap(err, "failed to list improvement events")
		}

		g := cur.Graph.Clone()
		node, _ := g.Node(id)
		applyDefinition(node, def)

		peers := make([]*graphtypes.Node, 0, g.NodeCount()-1)
		for _, n := range g.Nodes() {
			if n.ID != id {
				peers = append(peers, n)
			}
		}

		res := s.engine.InferFor(ctx, def, defs, peers, runs, events)
		if err := g.ReplaceEdgesFor(id, res.Edges); err != nil {
			return errors.Wrapf(err, "failed to replace edges for %q", id)
		}

		usage := res.Usage[id]
		node.UsageCount = usage.Count
		node.LastUsedAt = usage.LastUsed

		missing := spliceMissing(cur.Gaps.MissingDependencies, id, res.Missing)
		g.SetBuiltAt(time.Now().UTC())

		// warm must be captured before Apply overwrites the previous scores
		warm := leverage.Warm(g)
		scores := leverage.Score(g, warm, s.scoring)
		leverage.Apply(g, scores)

		built := s.assemble(g, missing, scores.Stats())
		if err := s.persistAndPublish(ctx, built); err != nil {
			return err
		}
		snap = built

		logger.G(ctx).WithFields(logrus.Fields{
			"skill": id,
			"edges": len(res.Edges),
		}).Info("skill refreshed")
		telemetry.SetAttributes(ctx, attribute.String("skill.id", id))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// RemoveNode deletes one skill and every edge referencing it, then
// recomputes degrees, clusters and gaps. No rescore and no inference pass:
// the remaining nodes keep their leverage until the next build or refresh.
func (s *Service) RemoveNode(ctx context.Context, id string) (*graphstore.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap *graphstore.Snapshot
	err := telemetry.WithSpan(ctx, "service.remove_node", func(ctx context.Context) error {
		cur := s.store.Current()
		if cur == nil {
			return ErrNotBuilt
		}

		g := cur.Graph.Clone()
		if err := g.RemoveNode(id); err != nil {
			return err
		}

		missing := spliceMissing(cur.Gaps.MissingDependencies, id, nil)
		g.SetBuiltAt(time.Now().UTC())

		built := s.assemble(g, missing, cur.Scoring)
		if err := s.persistAndPublish(ctx, built); err != nil {
			return err
		}
		snap = built

		logger.G(ctx).WithField("skill", id).Info("skill removed from graph")
		telemetry.SetAttributes(ctx, attribute.String("skill.id", id))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Load publishes a previously persisted snapshot without consulting the
// sources. Scores and clusters come from the document; the gap classes
// derivable from the graph are recomputed, while missing-dependency
// findings reflect only load-time dangling edge targets until the next
// build.
func (s *Service) Load(ctx context.Context) (*graphstore.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap *graphstore.Snapshot
	err := telemetry.WithSpan(ctx, "service.load", func(ctx context.Context) error {
		doc, err := snapshot.Load(s.snapshotPath)
		if err != nil {
			return err
		}
		g, missing, err := graphstore.FromDocument(doc)
		if err != nil {
			return errors.Wrapf(err, "snapshot %s is corrupt", s.snapshotPath)
		}

		opts := s.gapOpts
		opts.Now = g.BuiltAt()
		report := gaps.Analyze(g, missing, opts)

		snap = &graphstore.Snapshot{Graph: g, Gaps: report}
		s.store.Publish(snap)

		logger.G(ctx).WithFields(logrus.Fields{
			"path":  s.snapshotPath,
			"nodes": g.NodeCount(),
			"edges": g.EdgeCount(),
		}).Info("snapshot loaded")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Graph returns the current published snapshot, or ErrNotBuilt.
func (s *Service) Graph() (*graphstore.Snapshot, error) {
	if snap := s.store.Current(); snap != nil {
		return snap, nil
	}
	return nil, ErrNotBuilt
}

// Query returns a query engine over the current snapshot, or ErrNotBuilt.
func (s *Service) Query() (*query.Engine, error) {
	snap, err := s.Graph()
	if err != nil {
		return nil, err
	}
	return query.New(snap), nil
}

// RecordRun appends one run to the archive. The graph reflects it at the
// next build or refresh.
func (s *Service) RecordRun(ctx context.Context, record sources.RunRecord) error {
	return s.runs.Append(ctx, record)
}

// RecordImprovement appends one improvement event to the log.
func (s *Service) RecordImprovement(ctx context.Context, event sources.ImprovementEvent) error {
	return s.events.Append(ctx, event)
}

// Close closes the underlying sources, aggregating errors.
func (s *Service) Close() error {
	var result error
	if err := s.runs.Close(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "failed to close run archive"))
	}
	if err := s.events.Close(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "failed to close improvement log"))
	}
	return result
}

// assemble derives clusters and gaps for a finished graph and wraps it in
// a snapshot. Staleness checks anchor at the graph's build time so a
// snapshot's findings do not drift between queries.
func (s *Service) assemble(g *graphstore.Graph, missing []graphtypes.MissingDependency, stats graphtypes.ScoringStats) *graphstore.Snapshot {
	g.SetClusters(cluster.Build(g))
	opts := s.gapOpts
	opts.Now = g.BuiltAt()
	report := gaps.Analyze(g, missing, opts)
	return &graphstore.Snapshot{Graph: g, Gaps: report, Scoring: stats}
}

// persistAndPublish writes the snapshot to disk and only then swaps it in.
// A persistence failure means the previous snapshot stays published.
func (s *Service) persistAndPublish(ctx context.Context, snap *graphstore.Snapshot) error {
	if err := snapshot.Save(s.snapshotPath, snap.Document()); err != nil {
		return errors.Wrap(err, "failed to persist snapshot")
	}
	telemetry.AddEvent(ctx, "snapshot.persisted", attribute.String("path", s.snapshotPath))
	s.store.Publish(snap)
	return nil
}

func nodeFromDefinition(def sources.SkillDefinition) *graphtypes.Node {
	name := def.Name
	if name == "" {
		name = def.ID
	}
	return &graphtypes.Node{
		ID:          def.ID,
		Name:        name,
		Description: def.Description,
		Phase:       def.Phase,
		Tags:        normalizeTags(def.Tags),
		Version:     def.Version,
		Leverage:    graphtypes.DefaultLeverage,
	}
}

func applyDefinition(n *graphtypes.Node, def sources.SkillDefinition) {
	n.Name = def.Name
	if n.Name == "" {
		n.Name = def.ID
	}
	n.Description = def.Description
	n.Phase = def.Phase
	n.Tags = normalizeTags(def.Tags)
	n.Version = def.Version
}

func applyUsage(g *graphstore.Graph, usage map[string]inference.Usage) {
	for _, n := range g.Nodes() {
		u := usage[n.ID]
		n.UsageCount = u.Count
		n.LastUsedAt = u.LastUsed
	}
}

// normalizeTags dedupes, drops empties and sorts; nodes carry tag sets.
func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, tag := range tags {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// spliceMissing replaces the findings attributable to one skill: entries
// it declared are superseded by fresh inference, entries targeting it are
// stale once the skill is present or gone.
func spliceMissing(old []graphtypes.MissingDependency, id string, fresh []graphtypes.MissingDependency) []graphtypes.MissingDependency {
	seen := make(map[graphtypes.MissingDependency]bool)
	var out []graphtypes.MissingDependency
	for _, md := range old {
		if md.SourceID == id || md.TargetID == id || seen[md] {
			continue
		}
		seen[md] = true
		out = append(out, md)
	}
	for _, md := range fresh {
		if seen[md] {
			continue
		}
		seen[md] = true
		out = append(out, md)
	}
	return out
}
