// Package graph holds the pure operations on graph values: sanitizing raw
// provider output, merging a base graph with an expansion overlay, and the
// small derived measures the layout needs.
//
// Everything in this package is side-effect free. Inputs are never mutated
// and the output slices preserve input order, so repeated calls over the
// same data produce identical results.
package graph

import (
	"github.com/skeinhq/skein/backend/pkg/common"
)

// Sanitize returns a copy of g with malformed and duplicate elements
// removed:
//
//   - nodes without an id are dropped
//   - duplicate node ids keep the first occurrence
//   - edges without an id, source, or target are dropped
//   - edges referencing a node that is not present are dropped
//   - duplicate edge ids keep the first occurrence
//
// Providers are not trusted to uphold these rules, so every graph entering
// the engine passes through here once.
func Sanitize(g common.Graph) common.Graph {
	out := common.Graph{
		Nodes: make([]common.Node, 0, len(g.Nodes)),
		Edges: make([]common.Edge, 0, len(g.Edges)),
	}

	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" || seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		out.Nodes = append(out.Nodes, n)
	}

	seenEdge := make(map[string]bool, len(g.Edges))
	for _, e := range g.Edges {
		if e.ID == "" || e.Source == "" || e.Target == "" {
			continue
		}
		if !seen[e.Source] || !seen[e.Target] {
			continue
		}
		if seenEdge[e.ID] {
			continue
		}
		seenEdge[e.ID] = true
		out.Edges = append(out.Edges, e)
	}

	return out
}

// Degrees counts, per node id, how many edge endpoints touch it. A self
// referencing edge counts twice. Nodes without edges are present with a
// count of zero so callers can range over the full node set.
func Degrees(g common.Graph) map[string]int {
	deg := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		deg[n.ID] = 0
	}
	for _, e := range g.Edges {
		if _, ok := deg[e.Source]; ok {
			deg[e.Source]++
		}
		if _, ok := deg[e.Target]; ok {
			deg[e.Target]++
		}
	}
	return deg
}

// NodeIDs returns the ids of g's nodes in graph order.
func NodeIDs(g common.Graph) []string {
	ids := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// HasNode reports whether the graph contains a node with the given id.
func HasNode(g common.Graph, id string) bool {
	for _, n := range g.Nodes {
		if n.ID == id {
			return true
		}
	}
	return false
}
