// Package graph defines the data model of the skill knowledge graph: nodes,
// typed edges, tag clusters, gap findings and the persisted document layout
// shared across the build, query and persistence layers.
package graph

import (
	"slices"
	"time"
)

// DefaultLeverage is the score every node carries until a scoring pass
// completes.
const DefaultLeverage = 1.0

// SchemaVersion is the persisted document version this build reads and
// writes. Loading any other version is a hard failure.
const SchemaVersion = 1

// Node is a skill in the graph.
type Node struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Phase       Phase      `json:"phase"`
	Tags        []string   `json:"tags,omitempty"` // set semantics, kept sorted
	Version     string     `json:"version,omitempty"`
	UsageCount  int        `json:"usageCount"`
	LastUsedAt  *time.Time `json:"lastUsedAt,omitempty"`
	Leverage    float64    `json:"leverageScore"`
	InDegree    int        `json:"inDegree"`  // derived from the edge set
	OutDegree   int        `json:"outDegree"` // derived from the edge set
}

// HasTag reports whether the node carries the given tag.
func (n *Node) HasTag(tag string) bool {
	return slices.Contains(n.Tags, tag)
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	out := *n
	if n.Tags != nil {
		out.Tags = append([]string(nil), n.Tags...)
	}
	if n.LastUsedAt != nil {
		t := *n.LastUsedAt
		out.LastUsedAt = &t
	}
	return &out
}

// WeakCohesionThreshold is the cohesion below which a cluster is flagged
// weak.
const WeakCohesionThreshold = 0.3

// Cluster groups every skill carrying one tag, with a cohesion measure of
// how interconnected the group actually is. Clusters are derived at build
// time, never stored on nodes.
type Cluster struct {
	Tag      string   `json:"tag"`
	Members  []string `json:"memberIds"` // sorted node ids
	Cohesion float64  `json:"cohesion"`
}

// Weak reports whether the cluster falls below the cohesion threshold.
func (c *Cluster) Weak() bool {
	return c.Cohesion < WeakCohesionThreshold
}

// Clone returns a deep copy of the cluster.
func (c *Cluster) Clone() *Cluster {
	out := *c
	if c.Members != nil {
		out.Members = append([]string(nil), c.Members...)
	}
	return &out
}

// MissingDependency records a declared dependency whose target id had no
// matching skill. A finding, never an error.
type MissingDependency struct {
	SourceID string `json:"sourceId"`
	TargetID string `json:"targetId"`
}

// ScoringStats describes how the last leverage computation ended.
type ScoringStats struct {
	Iterations int  `json:"iterations"`
	Converged  bool `json:"converged"`
}

// Document is the persisted snapshot layout.
type Document struct {
	SchemaVersion int        `json:"schemaVersion"`
	BuiltAt       time.Time  `json:"builtAt"`
	Nodes         []*Node    `json:"nodes"`
	Edges         []*Edge    `json:"edges"`
	Clusters      []*Cluster `json:"clusters"`
}
