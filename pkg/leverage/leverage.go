// Package leverage computes the centrality score of every skill via
// PageRank-style power iteration over the propagation edge set (depends_on,
// sequence, co_executed and improved_by; tag_cluster carries no endorsement
// signal and stays out).
package leverage

import (
	"math"

	"github.com/jingkaihe/skillgraph/pkg/graphstore"
	graphtypes "github.com/jingkaihe/skillgraph/pkg/types/graph"
)

const (
	// DefaultDamping is the fraction of score mass that flows along edges
	// each iteration; the remainder is the uniform base.
	DefaultDamping = 0.85
	// DefaultMaxIterations caps the power iteration.
	DefaultMaxIterations = 100
	// DefaultTolerance stops iteration once the largest per-node change
	// falls below it.
	DefaultTolerance = 1e-6
)

// Options tunes the power iteration.
type Options struct {
	Damping       float64
	MaxIterations int
	Tolerance     float64
}

// DefaultOptions returns the standard scorer configuration.
func DefaultOptions() Options {
	return Options{
		Damping:       DefaultDamping,
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
	}
}

// Result holds the converged scores keyed by node id.
type Result struct {
	Scores     map[string]float64
	Iterations int
	Converged  bool
}

// Stats returns the convergence summary for the snapshot.
func (r *Result) Stats() graphtypes.ScoringStats {
	return graphtypes.ScoringStats{Iterations: r.Iterations, Converged: r.Converged}
}

type link struct {
	to     int
	weight float64
}

// Score runs the power iteration over g. Every node starts at 1.0 unless
// warm supplies a previous converged score for it (warm-starting a refresh
// converges to the same result as a cold start, just faster). Each
// iteration a node distributes its score across outgoing propagation edges
// proportional to weight share; dangling nodes redistribute their whole
// score evenly across all nodes so no mass leaks out of the system. The new
// score is damping-mixed with a uniform base, and after the iteration stops
// all scores are rescaled to sum to the node count so scores stay
// comparable across builds of different sizes.
//
// Deterministic: nodes are indexed in sorted-id order and edges aggregated
// into adjacency before iterating, so identical inputs yield identical
// scores.
func Score(g *graphstore.Graph, warm map[string]float64, opts Options) *Result {
	if opts.Damping <= 0 || opts.Damping >= 1 {
		opts.Damping = DefaultDamping
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}

	ids := g.NodeIDs()
	n := len(ids)
	if n == 0 {
		return &Result{Scores: map[string]float64{}, Converged: true}
	}

	idx := make(map[string]int, n)
	for i, id := range ids {
		idx[id] = i
	}

	out := make([][]link, n)
	outWeight := make([]float64, n)
	for _, e := range g.Edges() {
		if !e.Type.Propagates() {
			continue
		}
		si, ti := idx[e.Source], idx[e.Target]
		out[si] = append(out[si], link{to: ti, weight: e.Weight})
		outWeight[si] += e.Weight
		if e.Type.Undirected() {
			out[ti] = append(out[ti], link{to: si, weight: e.Weight})
			outWeight[ti] += e.Weight
		}
	}

	scores := make([]float64, n)
	for i, id := range ids {
		if w, ok := warm[id]; ok && w >= 0 {
			scores[i] = w
		} else {
			scores[i] = graphtypes.DefaultLeverage
		}
	}

	next := make([]float64, n)
	res := &Result{}
	for iter := 0; iter < opts.MaxIterations; iter++ {
		var dangling float64
		for i := range next {
			next[i] = 0
		}
		for i, score := range scores {
			if outWeight[i] == 0 {
				dangling += score
				continue
			}
			for _, l := range out[i] {
				next[l.to] += score * l.weight / outWeight[i]
			}
		}
		share := dangling / float64(n)

		var maxDelta float64
		for i := range next {
			next[i] = (1 - opts.Damping) + opts.Damping*(next[i]+share)
			if d := math.Abs(next[i] - scores[i]); d > maxDelta {
				maxDelta = d
			}
		}
		scores, next = next, scores
		res.Iterations = iter + 1
		if maxDelta < opts.Tolerance {
			res.Converged = true
			break
		}
	}

	var total float64
	for _, s := range scores {
		total += s
	}
	if total > 0 {
		factor := float64(n) / total
		for i := range scores {
			scores[i] *= factor
		}
	}

	res.Scores = make(map[string]float64, n)
	for i, id := range ids {
		res.Scores[id] = scores[i]
	}
	return res
}

// Apply writes the computed scores back onto the graph's nodes.
func Apply(g *graphstore.Graph, res *Result) {
	for _, id := range g.NodeIDs() {
		if node, ok := g.Node(id); ok {
			if s, ok := res.Scores[id]; ok {
				node.Leverage = s
			}
		}
	}
}

// Warm extracts the current scores from a graph for use as a warm-start
// vector.
func Warm(g *graphstore.Graph) map[string]float64 {
	warm := make(map[string]float64, g.NodeCount())
	for _, node := range g.Nodes() {
		warm[node.ID] = node.Leverage
	}
	return warm
}
