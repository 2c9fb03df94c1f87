package graphstore

import (
	"sync/atomic"

	graphtypes "github.com/jingkaihe/skillgraph/pkg/types/graph"
)

// Snapshot couples a finished graph with the gap report and scoring stats
// computed for it. Once published a snapshot is immutable; readers may hold
// one across any number of queries without observing later builds.
type Snapshot struct {
	Graph   *Graph
	Gaps    *graphtypes.GapReport
	Scoring graphtypes.ScoringStats
}

// Document renders the snapshot into the persisted layout.
func (s *Snapshot) Document() *graphtypes.Document {
	return s.Graph.ToDocument()
}

// Store publishes snapshots. Publication is an atomic pointer swap: readers
// see either the previous complete snapshot or the new one, never anything
// in between. Serializing the builds that produce snapshots is the service
// layer's single-writer lock; the store itself never blocks a reader.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore returns a store with no published snapshot.
func NewStore() *Store {
	return &Store{}
}

// Publish atomically replaces the current snapshot.
func (s *Store) Publish(snap *Snapshot) {
	s.current.Store(snap)
}

// Current returns the last published snapshot, or nil before the first
// completed build.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}
