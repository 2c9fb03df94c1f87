package inference

import (
	"context"

	"github.com/jingkaihe/skillgraph/pkg/logger"
	graphtypes "github.com/jingkaihe/skillgraph/pkg/types/graph"
	"github.com/jingkaihe/skillgraph/pkg/types/sources"
)

// InferFor derives only the edges touching one skill, for a single-node
// refresh. Declared relations (depends_on in both directions) come from the
// registry definitions, the only place declarations live; tag relations
// pair the skill's fresh metadata against the peers' graph state, so a
// refresh never silently rewrites other nodes. Runs and events are expected
// pre-filtered to those involving the skill, but are filtered again here.
func (e *Engine) InferFor(ctx context.Context, def sources.SkillDefinition, defs []sources.SkillDefinition, peers []*graphtypes.Node, runs []sources.RunRecord, events []sources.ImprovementEvent) *Result {
	log := logger.G(ctx).WithField("skill", def.ID)
	known := make(map[string]bool, len(peers)+1)
	known[def.ID] = true
	for _, p := range peers {
		known[p.ID] = true
	}

	agg := newAggregator()
	res := &Result{Usage: make(map[string]Usage, 1)}

	// the skill's own declared dependencies
	missingSeen := make(map[graphtypes.MissingDependency]bool)
	for _, dep := range uniqueStrings(def.Dependencies) {
		if dep == def.ID {
			continue
		}
		if !known[dep] {
			md := graphtypes.MissingDependency{SourceID: def.ID, TargetID: dep}
			if !missingSeen[md] {
				missingSeen[md] = true
				res.Missing = append(res.Missing, md)
			}
			continue
		}
		agg.add(def.ID, dep, graphtypes.EdgeDependsOn, 1, ManifestEvidence)
	}

	// dependencies other registered skills declare on it
	for _, other := range sortedSkills(defs) {
		if other.ID == def.ID || !known[other.ID] {
			continue
		}
		for _, dep := range uniqueStrings(other.Dependencies) {
			if dep == def.ID {
				agg.add(other.ID, def.ID, graphtypes.EdgeDependsOn, 1, ManifestEvidence)
			}
		}
	}

	// tag pairs against the peers' current graph state
	tags := uniqueStrings(def.Tags)
	for _, peer := range peers {
		shared := sharedTags(tags, peer.Tags)
		if len(shared) == 0 {
			continue
		}
		agg.add(def.ID, peer.ID, graphtypes.EdgeTagCluster, float64(len(shared)), shared...)
	}

	// archive signals restricted to pairs involving the skill
	for _, run := range sortedRuns(runs) {
		deriveRunFor(agg, run, def.ID, known, func() {
			u := res.Usage[def.ID]
			u.Count++
			if u.LastUsed == nil || u.LastUsed.Before(run.StartedAt) {
				ts := run.StartedAt
				u.LastUsed = &ts
			}
			res.Usage[def.ID] = u
		})
	}

	for _, ev := range sortedEvents(events) {
		if ev.ImprovedID != def.ID && ev.TriggerID != def.ID {
			continue
		}
		deriveEvent(log, agg, ev, known)
	}

	res.Edges = agg.edges
	return res
}

// deriveRunFor is deriveRun restricted to pairs involving id.
func deriveRunFor(agg *aggregator, run sources.RunRecord, id string, known map[string]bool, touch func()) {
	for i := 0; i+1 < len(run.SkillIDs); i++ {
		a, b := run.SkillIDs[i], run.SkillIDs[i+1]
		if a == b || (a != id && b != id) {
			continue
		}
		if !known[a] || !known[b] {
			continue
		}
		agg.add(a, b, graphtypes.EdgeSequence, 1, run.ID)
	}

	involved := false
	var others []string
	seen := make(map[string]bool, len(run.SkillIDs))
	for _, sid := range run.SkillIDs {
		if seen[sid] {
			continue
		}
		seen[sid] = true
		if sid == id {
			involved = true
			continue
		}
		if known[sid] {
			others = append(others, sid)
		}
	}
	if !involved {
		return
	}
	touch()
	for _, other := range others {
		agg.add(id, other, graphtypes.EdgeCoExecuted, 1, run.ID)
	}
}
