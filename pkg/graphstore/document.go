package graphstore

import (
	"github.com/pkg/errors"

	graphtypes "github.com/jingkaihe/skillgraph/pkg/types/graph"
)

// ToDocument renders the graph into the persisted layout: nodes sorted by
// id, edges in insertion order, clusters as derived.
func (g *Graph) ToDocument() *graphtypes.Document {
	doc := &graphtypes.Document{
		SchemaVersion: graphtypes.SchemaVersion,
		BuiltAt:       g.builtAt,
		Nodes:         make([]*graphtypes.Node, 0, len(g.nodes)),
		Edges:         make([]*graphtypes.Edge, 0, len(g.edges)),
		Clusters:      make([]*graphtypes.Cluster, 0, len(g.clusters)),
	}
	for _, n := range g.Nodes() {
		doc.Nodes = append(doc.Nodes, n.Clone())
	}
	for _, e := range g.edges {
		doc.Edges = append(doc.Edges, e.Clone())
	}
	for _, c := range g.clusters {
		doc.Clusters = append(doc.Clusters, c.Clone())
	}
	return doc
}

// FromDocument rebuilds a graph from a persisted document. Structural
// corruption (duplicate node ids, an edge whose source is unknown, an
// unknown edge type or phase) fails hard. An edge whose target is unknown
// is tolerated the same way a build tolerates an unresolved dependency: it
// becomes a missing-dependency finding and the edge is dropped from the
// indices.
func FromDocument(doc *graphtypes.Document) (*Graph, []graphtypes.MissingDependency, error) {
	if doc == nil {
		return nil, nil, errors.New("nil document")
	}
	g := NewGraph()
	g.builtAt = doc.BuiltAt
	for _, n := range doc.Nodes {
		if !n.Phase.Valid() {
			return nil, nil, errors.Errorf("node %q has unknown phase %q", n.ID, n.Phase)
		}
		if err := g.AddNode(n.Clone()); err != nil {
			return nil, nil, err
		}
	}
	var missing []graphtypes.MissingDependency
	for _, e := range doc.Edges {
		if !e.Type.Valid() {
			return nil, nil, errors.Errorf("edge %s->%s has unknown type %q", e.Source, e.Target, e.Type)
		}
		if !g.HasNode(e.Source) {
			return nil, nil, errors.Errorf("edge %s->%s references unknown source node", e.Source, e.Target)
		}
		if !g.HasNode(e.Target) {
			missing = append(missing, graphtypes.MissingDependency{SourceID: e.Source, TargetID: e.Target})
			continue
		}
		if err := g.UpsertEdge(e.Source, e.Target, e.Type, e.Weight, e.Evidence...); err != nil {
			return nil, nil, errors.Wrapf(err, "edge %s->%s", e.Source, e.Target)
		}
	}
	for _, c := range doc.Clusters {
		g.clusters = append(g.clusters, c.Clone())
	}
	g.RecomputeDegrees()
	return g, missing, nil
}
