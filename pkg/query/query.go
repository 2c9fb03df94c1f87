// Package query answers read-only questions against one published graph
// snapshot. Every operation is a pure function of the immutable snapshot,
// so any number of queries may run concurrently with each other and with an
// in-progress build.
package query

import (
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillgraph/pkg/gaps"
	"github.com/jingkaihe/skillgraph/pkg/graphstore"
	graphtypes "github.com/jingkaihe/skillgraph/pkg/types/graph"
)

// Direction selects which incident edges a neighbor query follows.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

// ParseDirection converts a string into a Direction; empty means both.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionOutgoing:
		return DirectionOutgoing, nil
	case DirectionIncoming:
		return DirectionIncoming, nil
	case DirectionBoth, Direction(""):
		return DirectionBoth, nil
	}
	return "", errors.Errorf("unknown direction %q", s)
}

// NodeDetail is a node together with every edge touching it.
type NodeDetail struct {
	Node  *graphtypes.Node   `json:"node"`
	Edges []*graphtypes.Edge `json:"edges"`
}

// Stats summarizes a snapshot.
type Stats struct {
	Nodes       int                         `json:"nodes"`
	Edges       int                         `json:"edges"`
	EdgesByType map[graphtypes.EdgeType]int `json:"edgesByType"`
	Density     float64                     `json:"density"`
	Clusters    int                         `json:"clusters"`
	BuiltAt     time.Time                   `json:"builtAt"`
	Scoring     graphtypes.ScoringStats     `json:"scoring"`
	Missing     int                         `json:"missingDependencies"`
}

// Engine wraps one snapshot.
type Engine struct {
	snap *graphstore.Snapshot
}

// New returns a query engine over the given snapshot.
func New(snap *graphstore.Snapshot) *Engine {
	return &Engine{snap: snap}
}

// Node returns the node and its incident edges, or ErrNotFound.
func (e *Engine) Node(id string) (*NodeDetail, error) {
	node, ok := e.snap.Graph.Node(id)
	if !ok {
		return nil, errors.Wrapf(graphstore.ErrNotFound, "skill %q", id)
	}
	return &NodeDetail{Node: node, Edges: e.snap.Graph.Incident(id)}, nil
}

// Neighbors returns the nodes one hop from id, optionally restricted to a
// single edge type. Undirected edges answer both directions. The result is
// deduplicated and sorted by id.
func (e *Engine) Neighbors(id string, dir Direction, typ *graphtypes.EdgeType) ([]*graphtypes.Node, error) {
	g := e.snap.Graph
	if !g.HasNode(id) {
		return nil, errors.Wrapf(graphstore.ErrNotFound, "skill %q", id)
	}

	var edges []*graphtypes.Edge
	switch dir {
	case DirectionOutgoing:
		edges = g.Outgoing(id)
	case DirectionIncoming:
		edges = g.Incoming(id)
	default:
		edges = g.Incident(id)
	}

	seen := make(map[string]bool)
	var neighbors []*graphtypes.Node
	for _, edge := range edges {
		if typ != nil && edge.Type != *typ {
			continue
		}
		other, ok := edge.Other(id)
		if !ok || seen[other] {
			continue
		}
		seen[other] = true
		if node, ok := g.Node(other); ok {
			neighbors = append(neighbors, node)
		}
	}
	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].ID < neighbors[j].ID })
	return neighbors, nil
}

// FindPath returns the shortest path from one skill to another by edge
// count, walking the directed propagation set (tag_cluster excluded,
// undirected co_executed walkable both ways). Ties resolve to the path
// whose edges were inserted earliest during the last build. FindPath(a, a)
// is the zero-length path [a]. Absent ids or disconnected endpoints return
// ok=false, never an error.
func (e *Engine) FindPath(from, to string) ([]string, bool) {
	g := e.snap.Graph
	if !g.HasNode(from) || !g.HasNode(to) {
		return nil, false
	}
	if from == to {
		return []string{from}, true
	}

	parent := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, edge := range g.Outgoing(current) {
			if !edge.Type.Propagates() {
				continue
			}
			next, ok := edge.Other(current)
			if !ok {
				continue
			}
			// directed edges only traverse source -> target
			if !edge.Type.Undirected() && edge.Source != current {
				continue
			}
			if _, visited := parent[next]; visited {
				continue
			}
			parent[next] = current
			if next == to {
				return assemblePath(parent, from, to), true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

func assemblePath(parent map[string]string, from, to string) []string {
	var reversed []string
	for id := to; id != ""; id = parent[id] {
		reversed = append(reversed, id)
		if id == from {
			break
		}
	}
	path := make([]string, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}
	return path
}

// Nodes returns every node in the snapshot, sorted by id.
func (e *Engine) Nodes() []*graphtypes.Node {
	return e.snap.Graph.Nodes()
}

// Edges returns every stored edge in insertion order.
func (e *Engine) Edges() []*graphtypes.Edge {
	return e.snap.Graph.Edges()
}

// NodesByPhase returns every node in the given phase, sorted by id.
func (e *Engine) NodesByPhase(phase graphtypes.Phase) []*graphtypes.Node {
	var out []*graphtypes.Node
	for _, node := range e.snap.Graph.Nodes() {
		if node.Phase == phase {
			out = append(out, node)
		}
	}
	return out
}

// NodesByTag returns every node carrying the tag, sorted by id.
func (e *Engine) NodesByTag(tag string) []*graphtypes.Node {
	var out []*graphtypes.Node
	for _, node := range e.snap.Graph.Nodes() {
		if node.HasTag(tag) {
			out = append(out, node)
		}
	}
	return out
}

// EdgesByType returns every edge of the given type in insertion order.
func (e *Engine) EdgesByType(typ graphtypes.EdgeType) []*graphtypes.Edge {
	var out []*graphtypes.Edge
	for _, edge := range e.snap.Graph.Edges() {
		if edge.Type == typ {
			out = append(out, edge)
		}
	}
	return out
}

// HighLeverageSkills returns the top n nodes by leverage score, ties broken
// by id ascending.
func (e *Engine) HighLeverageSkills(n int) []*graphtypes.Node {
	if n <= 0 {
		return nil
	}
	nodes := e.snap.Graph.Nodes()
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Leverage != nodes[j].Leverage {
			return nodes[i].Leverage > nodes[j].Leverage
		}
		return nodes[i].ID < nodes[j].ID
	})
	if n > len(nodes) {
		n = len(nodes)
	}
	return nodes[:n]
}

// IsolatedSkills returns the build-time cached isolation findings.
func (e *Engine) IsolatedSkills() []string {
	return e.snap.Gaps.IsolatedSkills
}

// UnusedSkills returns the unused findings for the given staleness
// threshold. The build-time cache answers the build's own threshold; any
// other threshold is recomputed from the snapshot's node fields.
func (e *Engine) UnusedSkills(olderThanDays int) []graphtypes.UnusedSkill {
	if olderThanDays <= 0 || olderThanDays == e.snap.Gaps.UnusedAfterDays {
		return e.snap.Gaps.UnusedSkills
	}
	return gaps.Unused(e.snap.Graph, olderThanDays, e.snap.Graph.BuiltAt())
}

// Gaps returns the full gap report cached at build time.
func (e *Engine) Gaps() *graphtypes.GapReport {
	return e.snap.Gaps
}

// Clusters returns the derived tag clusters.
func (e *Engine) Clusters() []*graphtypes.Cluster {
	return e.snap.Graph.Clusters()
}

// ClusterByTag returns the cluster for one tag, or ErrNotFound.
func (e *Engine) ClusterByTag(tag string) (*graphtypes.Cluster, error) {
	for _, c := range e.snap.Graph.Clusters() {
		if c.Tag == tag {
			return c, nil
		}
	}
	return nil, errors.Wrapf(graphstore.ErrNotFound, "cluster %q", tag)
}

// Stats summarizes the snapshot: counts, density over the stored edge list
// (undirected edges stored once), clusters and scoring convergence.
func (e *Engine) Stats() Stats {
	g := e.snap.Graph
	stats := Stats{
		Nodes:       g.NodeCount(),
		Edges:       g.EdgeCount(),
		EdgesByType: make(map[graphtypes.EdgeType]int),
		Clusters:    len(g.Clusters()),
		BuiltAt:     g.BuiltAt(),
		Scoring:     e.snap.Scoring,
		Missing:     len(e.snap.Gaps.MissingDependencies),
	}
	for _, edge := range g.Edges() {
		stats.EdgesByType[edge.Type]++
	}
	if n := g.NodeCount(); n > 1 {
		stats.Density = float64(g.EdgeCount()) / float64(n*(n-1))
	}
	return stats
}

// Document renders the snapshot in the persisted layout.
func (e *Engine) Document() *graphtypes.Document {
	return e.snap.Document()
}
