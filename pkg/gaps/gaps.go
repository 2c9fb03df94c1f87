// Package gaps derives structural-quality findings from a built graph.
// Findings are recorded results, never errors: a graph full of gaps still
// builds and publishes.
package gaps

import (
	"sort"
	"time"

	"github.com/jingkaihe/skillgraph/pkg/graphstore"
	graphtypes "github.com/jingkaihe/skillgraph/pkg/types/graph"
)

const (
	// DefaultUnusedAfterDays is the staleness threshold when none is
	// configured.
	DefaultUnusedAfterDays = 30
	// DefaultMinPhaseSkills is the soft minimum per workflow phase.
	DefaultMinPhaseSkills = 1
)

// Options tunes the analyzer.
type Options struct {
	// UnusedAfterDays marks skills stale when their last use is older.
	UnusedAfterDays int
	// MinPhaseSkills is the soft minimum skill count per phase.
	MinPhaseSkills int
	// Now anchors staleness checks; zero means time.Now.
	Now time.Time
}

// DefaultOptions returns the standard analyzer configuration.
func DefaultOptions() Options {
	return Options{
		UnusedAfterDays: DefaultUnusedAfterDays,
		MinPhaseSkills:  DefaultMinPhaseSkills,
	}
}

func (o Options) normalized() Options {
	if o.UnusedAfterDays <= 0 {
		o.UnusedAfterDays = DefaultUnusedAfterDays
	}
	if o.MinPhaseSkills <= 0 {
		o.MinPhaseSkills = DefaultMinPhaseSkills
	}
	if o.Now.IsZero() {
		o.Now = time.Now().UTC()
	}
	return o
}

// Analyze computes the full gap report for a built graph. missing carries
// the unresolved dependency pairs collected during inference (or load).
func Analyze(g *graphstore.Graph, missing []graphtypes.MissingDependency, opts Options) *graphtypes.GapReport {
	opts = opts.normalized()
	report := &graphtypes.GapReport{
		MissingDependencies: append([]graphtypes.MissingDependency(nil), missing...),
		IsolatedSkills:      Isolated(g),
		UnusedSkills:        Unused(g, opts.UnusedAfterDays, opts.Now),
		UnusedAfterDays:     opts.UnusedAfterDays,
	}

	for _, c := range g.Clusters() {
		if c.Weak() {
			report.WeakClusters = append(report.WeakClusters, graphtypes.WeakCluster{
				Tag:         c.Tag,
				MemberCount: len(c.Members),
				Cohesion:    c.Cohesion,
			})
		}
	}

	counts := make(map[graphtypes.Phase]int)
	for _, node := range g.Nodes() {
		counts[node.Phase]++
	}
	for _, phase := range graphtypes.AllPhases() {
		count := counts[phase]
		switch {
		case count == 0:
			report.PhaseGaps = append(report.PhaseGaps, graphtypes.PhaseGap{
				Phase:      phase,
				SkillCount: 0,
				Status:     graphtypes.PhaseGapEmpty,
			})
		case count < opts.MinPhaseSkills:
			report.PhaseGaps = append(report.PhaseGaps, graphtypes.PhaseGap{
				Phase:      phase,
				SkillCount: count,
				Status:     graphtypes.PhaseGapSparse,
			})
		}
	}

	return report
}

// Isolated returns the ids of nodes with no connections at all once
// tag_cluster edges are dropped from the count: tag co-membership alone
// does not make a skill connected.
func Isolated(g *graphstore.Graph) []string {
	connected := make(map[string]bool)
	for _, e := range g.Edges() {
		if e.Type == graphtypes.EdgeTagCluster {
			continue
		}
		connected[e.Source] = true
		connected[e.Target] = true
	}
	var isolated []string
	for _, id := range g.NodeIDs() {
		if !connected[id] {
			isolated = append(isolated, id)
		}
	}
	return isolated
}

// Unused returns the skills that never ran, or whose last run is older than
// the threshold. Sorted by id.
func Unused(g *graphstore.Graph, unusedAfterDays int, now time.Time) []graphtypes.UnusedSkill {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	cutoff := now.Add(-time.Duration(unusedAfterDays) * 24 * time.Hour)
	var unused []graphtypes.UnusedSkill
	for _, node := range g.Nodes() {
		stale := node.UsageCount == 0 ||
			(node.LastUsedAt != nil && node.LastUsedAt.Before(cutoff))
		if stale {
			unused = append(unused, graphtypes.UnusedSkill{
				ID:         node.ID,
				UsageCount: node.UsageCount,
				LastUsedAt: node.LastUsedAt,
			})
		}
	}
	sort.Slice(unused, func(i, j int) bool { return unused[i].ID < unused[j].ID })
	return unused
}
