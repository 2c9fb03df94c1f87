package graph

import (
	"github.com/pkg/errors"
)

// EdgeType is the closed set of relationship kinds the inference engine
// produces. Unknown types are rejected at ingestion rather than stored.
type EdgeType string

const (
	// EdgeDependsOn records an explicit dependency declared on a skill.
	EdgeDependsOn EdgeType = "depends_on"
	// EdgeTagCluster connects two skills sharing at least one tag. Signal
	// only: it feeds clustering and gap analysis but is excluded from
	// leverage propagation and from isolation degree counting.
	EdgeTagCluster EdgeType = "tag_cluster"
	// EdgeSequence records that the target ran immediately after the source
	// within one run.
	EdgeSequence EdgeType = "sequence"
	// EdgeCoExecuted connects two skills that appeared anywhere in the same
	// run, regardless of order.
	EdgeCoExecuted EdgeType = "co_executed"
	// EdgeImprovedBy records that a revision of the target skill was
	// triggered by observations of the source skill's execution.
	EdgeImprovedBy EdgeType = "improved_by"
)

// AllEdgeTypes returns every edge type in canonical order.
func AllEdgeTypes() []EdgeType {
	return []EdgeType{EdgeDependsOn, EdgeTagCluster, EdgeSequence, EdgeCoExecuted, EdgeImprovedBy}
}

// Valid reports whether t is one of the five known types.
func (t EdgeType) Valid() bool {
	switch t {
	case EdgeDependsOn, EdgeTagCluster, EdgeSequence, EdgeCoExecuted, EdgeImprovedBy:
		return true
	}
	return false
}

// Undirected reports whether edges of this type carry no direction. They are
// stored once with canonically ordered endpoints and answer queries in both
// directions.
func (t EdgeType) Undirected() bool {
	return t == EdgeTagCluster || t == EdgeCoExecuted
}

// Propagates reports whether edges of this type participate in leverage
// propagation. Tag co-membership is not endorsement, so tag_cluster edges
// stay out of the scorer.
func (t EdgeType) Propagates() bool {
	return t != EdgeTagCluster
}

func (t EdgeType) String() string {
	return string(t)
}

// ParseEdgeType converts a string into an EdgeType, rejecting unknown kinds.
func ParseEdgeType(s string) (EdgeType, error) {
	t := EdgeType(s)
	if !t.Valid() {
		return "", errors.Errorf("unknown edge type %q", s)
	}
	return t, nil
}

// Edge is a typed, weighted relation between two skills. Edges are unique
// per (source, target, type); repeated evidence accumulates weight on the
// existing edge instead of creating a duplicate.
type Edge struct {
	Source   string   `json:"sourceId"`
	Target   string   `json:"targetId"`
	Type     EdgeType `json:"type"`
	Weight   float64  `json:"weight"`
	Evidence []string `json:"evidence,omitempty"`
}

// EdgeKey identifies an edge for deduplication.
type EdgeKey struct {
	Source string
	Target string
	Type   EdgeType
}

// CanonicalKey returns the dedup key for an edge, swapping the endpoints of
// undirected types so the lexicographically smaller id comes first.
func CanonicalKey(source, target string, t EdgeType) EdgeKey {
	if t.Undirected() && target < source {
		source, target = target, source
	}
	return EdgeKey{Source: source, Target: target, Type: t}
}

// Key returns the edge's dedup key.
func (e *Edge) Key() EdgeKey {
	return CanonicalKey(e.Source, e.Target, e.Type)
}

// Touches reports whether the edge references the given node id at either
// endpoint.
func (e *Edge) Touches(id string) bool {
	return e.Source == id || e.Target == id
}

// Other returns the opposite endpoint from id. The second return is false
// when the edge does not touch id.
func (e *Edge) Other(id string) (string, bool) {
	switch id {
	case e.Source:
		return e.Target, true
	case e.Target:
		return e.Source, true
	}
	return "", false
}

// Clone returns a deep copy of the edge.
func (e *Edge) Clone() *Edge {
	out := *e
	if e.Evidence != nil {
		out.Evidence = append([]string(nil), e.Evidence...)
	}
	return &out
}
