package inference

import (
	"slices"
	"sort"

	graphtypes "github.com/jingkaihe/skillgraph/pkg/types/graph"
	"github.com/jingkaihe/skillgraph/pkg/types/sources"
)

// aggregator collects edges keyed by (source, target, type), accumulating
// weight and evidence on repeats. Edges keep first-derived order, which the
// graph later preserves as insertion order.
type aggregator struct {
	edges []*graphtypes.Edge
	index map[graphtypes.EdgeKey]int
}

func newAggregator() *aggregator {
	return &aggregator{index: make(map[graphtypes.EdgeKey]int)}
}

func (a *aggregator) add(source, target string, t graphtypes.EdgeType, weight float64, evidence ...string) {
	key := graphtypes.CanonicalKey(source, target, t)
	if i, ok := a.index[key]; ok {
		e := a.edges[i]
		e.Weight += weight
		e.Evidence = appendEvidence(e.Evidence, evidence)
		return
	}
	a.index[key] = len(a.edges)
	a.edges = append(a.edges, &graphtypes.Edge{
		Source:   key.Source,
		Target:   key.Target,
		Type:     t,
		Weight:   weight,
		Evidence: appendEvidence(nil, evidence),
	})
}

func appendEvidence(dst []string, add []string) []string {
	for _, ev := range add {
		if ev == "" || slices.Contains(dst, ev) {
			continue
		}
		dst = append(dst, ev)
	}
	return dst
}

func sortedSkills(skills []sources.SkillDefinition) []sources.SkillDefinition {
	out := append([]sources.SkillDefinition(nil), skills...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedRuns(runs []sources.RunRecord) []sources.RunRecord {
	out := append([]sources.RunRecord(nil), runs...)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortedEvents(events []sources.ImprovementEvent) []sources.ImprovementEvent {
	out := append([]sources.ImprovementEvent(nil), events...)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.Before(out[j].OccurredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func uniqueStrings(in []string) []string {
	var out []string
	for _, s := range in {
		if s == "" || slices.Contains(out, s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// sharedTags returns the sorted intersection of two tag sets.
func sharedTags(a, b []string) []string {
	var shared []string
	for _, tag := range uniqueStrings(a) {
		if slices.Contains(b, tag) {
			shared = append(shared, tag)
		}
	}
	sort.Strings(shared)
	return shared
}
