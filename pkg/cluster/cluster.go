// Package cluster groups skills by tag and measures how interconnected
// each group actually is.
package cluster

import (
	"sort"

	"github.com/jingkaihe/skillgraph/pkg/graphstore"
	graphtypes "github.com/jingkaihe/skillgraph/pkg/types/graph"
)

// Build derives one cluster per distinct tag present on at least one node.
// Members are sorted by id. Cohesion is the count of tag_cluster edges with
// both endpoints inside the cluster divided by the maximum possible pairs
// n·(n−1)/2; single-member clusters have cohesion 0, which flags a tag that
// fails to cluster anything.
func Build(g *graphstore.Graph) []*graphtypes.Cluster {
	byTag := make(map[string][]string)
	for _, node := range g.Nodes() {
		for _, tag := range node.Tags {
			byTag[tag] = append(byTag[tag], node.ID)
		}
	}

	tags := make([]string, 0, len(byTag))
	for tag := range byTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	clusters := make([]*graphtypes.Cluster, 0, len(tags))
	for _, tag := range tags {
		members := byTag[tag]
		sort.Strings(members)
		clusters = append(clusters, &graphtypes.Cluster{
			Tag:      tag,
			Members:  members,
			Cohesion: cohesion(g, members),
		})
	}
	return clusters
}

func cohesion(g *graphstore.Graph, members []string) float64 {
	n := len(members)
	if n < 2 {
		return 0
	}
	inside := make(map[string]bool, n)
	for _, id := range members {
		inside[id] = true
	}
	internal := 0
	for _, e := range g.Edges() {
		if e.Type == graphtypes.EdgeTagCluster && inside[e.Source] && inside[e.Target] {
			internal++
		}
	}
	maxPairs := n * (n - 1) / 2
	return float64(internal) / float64(maxPairs)
}

// ByTag returns the cluster for one tag from a derived cluster list.
func ByTag(clusters []*graphtypes.Cluster, tag string) (*graphtypes.Cluster, bool) {
	for _, c := range clusters {
		if c.Tag == tag {
			return c, true
		}
	}
	return nil, false
}
