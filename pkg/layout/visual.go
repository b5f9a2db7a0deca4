package layout

import (
	"math"

	"github.com/skeinhq/skein/backend/pkg/common"
	"github.com/skeinhq/skein/backend/pkg/graph"
)

// Rendering bounds. Radii scale with the square root of a node's weight so
// heavy hubs grow visibly without dwarfing everything else, and both radius
// and stroke width are clamped to keep extreme data readable.
const (
	MinNodeRadius = 6.0
	MaxNodeRadius = 28.0
	radiusScale   = 2.5

	MinEdgeWidth = 1.0
	MaxEdgeWidth = 6.0
	widthScale   = 0.75
)

// NodeVisual is the per-node rendering hint shipped with a view.
type NodeVisual struct {
	Radius float64 `json:"radius"`
}

// EdgeVisual is the per-edge rendering hint shipped with a view. Dashed is
// false only for KNOWS relationships, which render as solid lines.
type EdgeVisual struct {
	Width  float64 `json:"width"`
	Dashed bool    `json:"dashed"`
}

// NodeRadius derives a node's radius from its weight property, with
// meeting_count as the historical alias. Nodes without a weight fall back
// to their degree so connected nodes still read as heavier. The result is
// monotone in the weight and clamped to [MinNodeRadius, MaxNodeRadius].
func NodeRadius(n common.Node, degree int) float64 {
	weight, ok := n.Properties.Number("weight", "meeting_count")
	if !ok {
		weight = float64(degree)
	}
	if weight < 0 {
		weight = 0
	}
	return clamp(MinNodeRadius+radiusScale*math.Sqrt(weight), MinNodeRadius, MaxNodeRadius)
}

// EdgeWidth maps relationship strength to a stroke width. Strength starts
// at 1 for a freshly observed relationship, which maps to the minimum
// width.
func EdgeWidth(e common.Edge) float64 {
	s := e.Strength
	if s < 1 {
		s = 1
	}
	return clamp(MinEdgeWidth+widthScale*(s-1), MinEdgeWidth, MaxEdgeWidth)
}

// EdgeDashed reports whether the edge renders dashed. KNOWS is the one
// relationship drawn solid.
func EdgeDashed(e common.Edge) bool {
	return e.Type != common.EdgeTypeKnows
}

// Visuals computes the rendering hints for every node and edge of g.
func Visuals(g common.Graph) (map[string]NodeVisual, map[string]EdgeVisual) {
	degrees := graph.Degrees(g)

	nodes := make(map[string]NodeVisual, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes[n.ID] = NodeVisual{Radius: NodeRadius(n, degrees[n.ID])}
	}

	edges := make(map[string]EdgeVisual, len(g.Edges))
	for _, e := range g.Edges {
		edges[e.ID] = EdgeVisual{Width: EdgeWidth(e), Dashed: EdgeDashed(e)}
	}
	return nodes, edges
}
