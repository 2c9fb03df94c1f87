// Package graphstore owns graph state: the mutable Graph used while a build
// mutates collections and indices, and the Store that publishes immutable
// snapshots for readers. Nothing else in the system holds graph state.
package graphstore

import (
	"slices"
	"sort"
	"time"

	"github.com/pkg/errors"

	graphtypes "github.com/jingkaihe/skillgraph/pkg/types/graph"
)

// ErrNotFound signals an operation against a node id the graph does not
// contain.
var ErrNotFound = errors.New("not found")

// Graph is the mutable working representation of the skill graph. It keeps
// the edge list in insertion order (path tie-breaking depends on it) plus a
// dedup index and per-node adjacency. Undirected edges are stored once with
// canonically ordered endpoints and indexed under both endpoints.
//
// A Graph published inside a Snapshot must not be mutated afterwards.
type Graph struct {
	nodes    map[string]*graphtypes.Node
	edges    []*graphtypes.Edge
	edgeIdx  map[graphtypes.EdgeKey]int
	out      map[string][]*graphtypes.Edge
	in       map[string][]*graphtypes.Edge
	clusters []*graphtypes.Cluster
	builtAt  time.Time
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[string]*graphtypes.Node),
		edgeIdx: make(map[graphtypes.EdgeKey]int),
		out:     make(map[string][]*graphtypes.Edge),
		in:      make(map[string][]*graphtypes.Edge),
	}
}

// AddNode inserts a node. Node ids are unique within a graph.
func (g *Graph) AddNode(n *graphtypes.Node) error {
	if n == nil || n.ID == "" {
		return errors.New("node must have an id")
	}
	if _, ok := g.nodes[n.ID]; ok {
		return errors.Errorf("duplicate node id %q", n.ID)
	}
	g.nodes[n.ID] = n
	return nil
}

// Node returns the node for id.
func (g *Graph) Node(id string) (*graphtypes.Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// HasNode reports whether id exists in the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of stored edges. Undirected edges count once.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// NodeIDs returns every node id sorted ascending.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Nodes returns every node sorted by id.
func (g *Graph) Nodes() []*graphtypes.Node {
	out := make([]*graphtypes.Node, 0, len(g.nodes))
	for _, id := range g.NodeIDs() {
		out = append(out, g.nodes[id])
	}
	return out
}

// Edges returns the edge list in insertion order. Callers must not modify
// the returned slice or the edges it points to.
func (g *Graph) Edges() []*graphtypes.Edge {
	return g.edges
}

// Outgoing returns the edges leaving id, in insertion order. Undirected
// edges appear regardless of stored endpoint order.
func (g *Graph) Outgoing(id string) []*graphtypes.Edge {
	return g.out[id]
}

// Incoming returns the edges arriving at id, in insertion order.
func (g *Graph) Incoming(id string) []*graphtypes.Edge {
	return g.in[id]
}

// Incident returns every edge touching id, in insertion order.
func (g *Graph) Incident(id string) []*graphtypes.Edge {
	var edges []*graphtypes.Edge
	for _, e := range g.edges {
		if e.Touches(id) {
			edges = append(edges, e)
		}
	}
	return edges
}

// UpsertEdge inserts an edge or, when the (source, target, type) triple
// already exists, accumulates weight and evidence on the existing edge.
// Both endpoints must exist; the edge type must be one of the known five;
// self-loops and non-positive weights are rejected. Inserting a new edge
// bumps the endpoint degrees so they stay consistent with the edge set;
// merging into an existing edge leaves degrees untouched.
func (g *Graph) UpsertEdge(source, target string, t graphtypes.EdgeType, weight float64, evidence ...string) error {
	if !t.Valid() {
		return errors.Errorf("unknown edge type %q", t)
	}
	if source == target {
		return errors.Errorf("self-loop on %q rejected", source)
	}
	if weight <= 0 {
		return errors.Errorf("edge weight must be positive, got %v", weight)
	}
	key := graphtypes.CanonicalKey(source, target, t)
	if !g.HasNode(key.Source) {
		return errors.Wrapf(ErrNotFound, "edge source %q", key.Source)
	}
	if !g.HasNode(key.Target) {
		return errors.Wrapf(ErrNotFound, "edge target %q", key.Target)
	}
	if i, ok := g.edgeIdx[key]; ok {
		e := g.edges[i]
		e.Weight += weight
		e.Evidence = mergeEvidence(e.Evidence, evidence)
		return nil
	}
	e := &graphtypes.Edge{
		Source:   key.Source,
		Target:   key.Target,
		Type:     t,
		Weight:   weight,
		Evidence: mergeEvidence(nil, evidence),
	}
	g.edgeIdx[key] = len(g.edges)
	g.edges = append(g.edges, e)
	g.indexEdge(e)
	g.bumpDegrees(e)
	return nil
}

// bumpDegrees applies one edge's degree contribution. Not called from
// rebuildIndices: a rebuild is followed by RecomputeDegrees, and Clone
// carries degrees over on the copied nodes.
func (g *Graph) bumpDegrees(e *graphtypes.Edge) {
	g.nodes[e.Source].OutDegree++
	g.nodes[e.Target].InDegree++
	if e.Type.Undirected() {
		g.nodes[e.Source].InDegree++
		g.nodes[e.Target].OutDegree++
	}
}

func (g *Graph) indexEdge(e *graphtypes.Edge) {
	g.out[e.Source] = append(g.out[e.Source], e)
	g.in[e.Target] = append(g.in[e.Target], e)
	if e.Type.Undirected() {
		g.out[e.Target] = append(g.out[e.Target], e)
		g.in[e.Source] = append(g.in[e.Source], e)
	}
}

func mergeEvidence(dst []string, add []string) []string {
	for _, ev := range add {
		if ev == "" || slices.Contains(dst, ev) {
			continue
		}
		dst = append(dst, ev)
	}
	return dst
}

// RemoveNode deletes a node and every edge referencing it, then recomputes
// degrees. Returns ErrNotFound for an unknown id.
func (g *Graph) RemoveNode(id string) error {
	if !g.HasNode(id) {
		return errors.Wrapf(ErrNotFound, "node %q", id)
	}
	delete(g.nodes, id)
	kept := g.edges[:0]
	for _, e := range g.edges {
		if !e.Touches(id) {
			kept = append(kept, e)
		}
	}
	g.edges = kept
	g.rebuildIndices()
	g.RecomputeDegrees()
	return nil
}

// ReplaceEdgesFor drops every edge touching id and inserts the replacements,
// then recomputes degrees. Used by single-node refresh: only the touched
// node's edge slice changes, the rest of the edge list keeps its order.
func (g *Graph) ReplaceEdgesFor(id string, edges []*graphtypes.Edge) error {
	if !g.HasNode(id) {
		return errors.Wrapf(ErrNotFound, "node %q", id)
	}
	kept := make([]*graphtypes.Edge, 0, len(g.edges))
	for _, e := range g.edges {
		if !e.Touches(id) {
			kept = append(kept, e)
		}
	}
	g.edges = kept
	g.rebuildIndices()
	for _, e := range edges {
		if !e.Touches(id) {
			return errors.Errorf("replacement edge %s->%s does not touch %q", e.Source, e.Target, id)
		}
		if err := g.UpsertEdge(e.Source, e.Target, e.Type, e.Weight, e.Evidence...); err != nil {
			return err
		}
	}
	g.RecomputeDegrees()
	return nil
}

func (g *Graph) rebuildIndices() {
	g.edgeIdx = make(map[graphtypes.EdgeKey]int, len(g.edges))
	g.out = make(map[string][]*graphtypes.Edge)
	g.in = make(map[string][]*graphtypes.Edge)
	for i, e := range g.edges {
		g.edgeIdx[e.Key()] = i
		g.indexEdge(e)
	}
}

// RecomputeDegrees rederives every node's in/out degree from the edge set.
// Degrees count all five edge types; an undirected edge contributes to both
// directions of both endpoints.
func (g *Graph) RecomputeDegrees() {
	for _, n := range g.nodes {
		n.InDegree = 0
		n.OutDegree = 0
	}
	for _, e := range g.edges {
		src := g.nodes[e.Source]
		tgt := g.nodes[e.Target]
		src.OutDegree++
		tgt.InDegree++
		if e.Type.Undirected() {
			src.InDegree++
			tgt.OutDegree++
		}
	}
}

// Clusters returns the derived tag clusters.
func (g *Graph) Clusters() []*graphtypes.Cluster {
	return g.clusters
}

// SetClusters replaces the derived cluster list.
func (g *Graph) SetClusters(clusters []*graphtypes.Cluster) {
	g.clusters = clusters
}

// BuiltAt returns when the graph was built.
func (g *Graph) BuiltAt() time.Time {
	return g.builtAt
}

// SetBuiltAt stamps the build time.
func (g *Graph) SetBuiltAt(t time.Time) {
	g.builtAt = t
}

// Clone returns a deep copy. Mutating the clone never affects the original,
// which is what makes refresh and remove rollback-safe: they mutate a clone
// and publish it only on success.
func (g *Graph) Clone() *Graph {
	out := NewGraph()
	out.builtAt = g.builtAt
	for id, n := range g.nodes {
		out.nodes[id] = n.Clone()
	}
	out.edges = make([]*graphtypes.Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out.edges = append(out.edges, e.Clone())
	}
	out.rebuildIndices()
	out.clusters = make([]*graphtypes.Cluster, 0, len(g.clusters))
	for _, c := range g.clusters {
		out.clusters = append(out.clusters, c.Clone())
	}
	return out
}
