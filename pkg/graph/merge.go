package graph

import (
	"github.com/skeinhq/skein/backend/pkg/common"
)

// Merge combines a base graph with an optional expansion overlay into a new
// graph. A nil overlay returns a sanitized copy of the base.
//
// Nodes are unioned by id with the base winning collisions, so an overlay
// can never degrade a node the base already carries (the overlay's copy of a
// shared node may be sparser, coming from a narrower query). Edges are
// unioned by id the same way, then filtered so that only edges with both
// endpoints in the combined node set survive.
//
// Ordering is deterministic: base nodes in base order, then overlay-only
// nodes in overlay order, and likewise for edges. Merging a graph with
// itself is therefore the identity.
func Merge(base common.Graph, overlay *common.Graph) common.Graph {
	if overlay == nil {
		return Sanitize(base)
	}

	combined := common.Graph{
		Nodes: make([]common.Node, 0, len(base.Nodes)+len(overlay.Nodes)),
		Edges: make([]common.Edge, 0, len(base.Edges)+len(overlay.Edges)),
	}
	combined.Nodes = append(combined.Nodes, base.Nodes...)
	combined.Nodes = append(combined.Nodes, overlay.Nodes...)
	combined.Edges = append(combined.Edges, base.Edges...)
	combined.Edges = append(combined.Edges, overlay.Edges...)

	// Sanitize keeps first occurrences, which is exactly the base-wins rule,
	// and re-checks edge endpoints against the combined node set.
	return Sanitize(combined)
}
