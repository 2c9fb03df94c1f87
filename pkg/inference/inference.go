// Package inference derives the edge set of the skill graph from the three
// sources: declared dependencies and shared tags from the registry,
// sequence and co-execution signals from the run archive, and improvement
// events from the improvement log. One pass also yields per-skill usage
// statistics and the missing-dependency findings.
package inference

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jingkaihe/skillgraph/pkg/logger"
	graphtypes "github.com/jingkaihe/skillgraph/pkg/types/graph"
	"github.com/jingkaihe/skillgraph/pkg/types/sources"
)

// ManifestEvidence marks edges derived from registry declarations rather
// than execution history.
const ManifestEvidence = "manifest"

// Engine derives edges for build and refresh passes.
type Engine struct{}

// NewEngine returns an inference engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Inputs bundles one consistent read of the three sources.
type Inputs struct {
	Skills []sources.SkillDefinition
	Runs   []sources.RunRecord
	Events []sources.ImprovementEvent
}

// Usage is what the run archive says about one skill.
type Usage struct {
	Count    int
	LastUsed *time.Time
}

// Result is the outcome of an inference pass. Edges come out aggregated
// (unique per source/target/type) in first-derived order, which later
// becomes the build's edge insertion order.
type Result struct {
	Edges   []*graphtypes.Edge
	Missing []graphtypes.MissingDependency
	Usage   map[string]Usage
}

// Infer derives the full edge set for a build. Skills are processed in
// sorted-id order and runs in (timestamp, id) order so identical inputs
// always produce the identical edge list. Records referencing ids absent
// from the registry are skipped: runs and improvement events outlive
// retired skills, and only declared dependencies surface as
// missing-dependency findings.
func (e *Engine) Infer(ctx context.Context, in Inputs) *Result {
	log := logger.G(ctx)
	skills := sortedSkills(in.Skills)
	known := make(map[string]bool, len(skills))
	for _, sk := range skills {
		known[sk.ID] = true
	}

	agg := newAggregator()
	res := &Result{Usage: make(map[string]Usage, len(skills))}

	// depends_on from declarations
	missingSeen := make(map[graphtypes.MissingDependency]bool)
	for _, sk := range skills {
		for _, dep := range uniqueStrings(sk.Dependencies) {
			if dep == sk.ID {
				log.WithField("skill", sk.ID).Debug("ignoring self-dependency")
				continue
			}
			if !known[dep] {
				md := graphtypes.MissingDependency{SourceID: sk.ID, TargetID: dep}
				if !missingSeen[md] {
					missingSeen[md] = true
					res.Missing = append(res.Missing, md)
				}
				continue
			}
			agg.add(sk.ID, dep, graphtypes.EdgeDependsOn, 1, ManifestEvidence)
		}
	}

	// tag_cluster for every unordered pair sharing at least one tag
	for i := 0; i < len(skills); i++ {
		for j := i + 1; j < len(skills); j++ {
			shared := sharedTags(skills[i].Tags, skills[j].Tags)
			if len(shared) == 0 {
				continue
			}
			agg.add(skills[i].ID, skills[j].ID, graphtypes.EdgeTagCluster, float64(len(shared)), shared...)
		}
	}

	// sequence + co_executed + usage from the archive
	for _, run := range sortedRuns(in.Runs) {
		deriveRun(log, agg, run, known, func(id string) {
			u := res.Usage[id]
			u.Count++
			if u.LastUsed == nil || u.LastUsed.Before(run.StartedAt) {
				ts := run.StartedAt
				u.LastUsed = &ts
			}
			res.Usage[id] = u
		})
	}

	// improved_by from the improvement log
	for _, ev := range sortedEvents(in.Events) {
		deriveEvent(log, agg, ev, known)
	}

	res.Edges = agg.edges
	return res
}

// deriveRun adds one run's sequence and co_executed edges. Consecutive
// means consecutive as recorded: a pair is dropped, not bridged, when
// either side is unknown. touch is invoked once per distinct known skill in
// the run.
func deriveRun(log *logrus.Entry, agg *aggregator, run sources.RunRecord, known map[string]bool, touch func(string)) {
	for i := 0; i+1 < len(run.SkillIDs); i++ {
		a, b := run.SkillIDs[i], run.SkillIDs[i+1]
		if a == b {
			continue
		}
		if !known[a] || !known[b] {
			continue
		}
		agg.add(a, b, graphtypes.EdgeSequence, 1, run.ID)
	}

	distinct := make([]string, 0, len(run.SkillIDs))
	seen := make(map[string]bool, len(run.SkillIDs))
	var unknown []string
	for _, id := range run.SkillIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if !known[id] {
			unknown = append(unknown, id)
			continue
		}
		distinct = append(distinct, id)
	}
	if len(unknown) > 0 {
		log.WithFields(logrus.Fields{"run": run.ID, "skills": unknown}).Debug("run references unknown skills")
	}

	sort.Strings(distinct)
	for i := 0; i < len(distinct); i++ {
		touch(distinct[i])
		for j := i + 1; j < len(distinct); j++ {
			agg.add(distinct[i], distinct[j], graphtypes.EdgeCoExecuted, 1, run.ID)
		}
	}
}

// deriveEvent adds one improvement event's improved_by edge, directed from
// the triggering skill to the improved skill.
func deriveEvent(log *logrus.Entry, agg *aggregator, ev sources.ImprovementEvent, known map[string]bool) {
	if ev.ImprovedID == ev.TriggerID {
		log.WithField("skill", ev.ImprovedID).Debug("ignoring self-improvement event")
		return
	}
	if !known[ev.ImprovedID] || !known[ev.TriggerID] {
		log.WithFields(logrus.Fields{
			"improved": ev.ImprovedID,
			"trigger":  ev.TriggerID,
		}).Debug("improvement event references unknown skills")
		return
	}
	evidence := ev.ID
	if evidence == "" {
		evidence = ev.OccurredAt.UTC().Format(time.RFC3339)
	}
	agg.add(ev.TriggerID, ev.ImprovedID, graphtypes.EdgeImprovedBy, 1, evidence)
}
