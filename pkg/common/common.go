package common

// Graph is a collection of nodes and the edges between them. It is the unit
// of exchange for every provider fetch and for the exploration views built
// on top of them.
//
// A graph is a plain value: functions that combine or filter graphs return
// new slices and never mutate their inputs. Node and edge order is
// significant and preserved, which keeps downstream layout runs
// reproducible.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node represents an entity in the graph: a person, an organization, a
// topic, a project, or a meeting. The Label is the display name resolved
// from the entity's properties, with the id as last resort.
type Node struct {
	ID         string     `json:"id"`
	Label      string     `json:"label"`
	Type       NodeType   `json:"type"`
	Properties Properties `json:"properties"`
}

// Edge represents a directional relationship between two nodes, identified
// by the ids of its endpoints. Strength grows each time the relationship is
// observed again and feeds the rendered stroke width.
type Edge struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	Target     string     `json:"target"`
	Type       EdgeType   `json:"type"`
	Strength   float64    `json:"strength"`
	Properties Properties `json:"properties"`
}

// NodeType classifies a node. The zero value means untyped.
type NodeType string

const (
	NodeTypePerson       NodeType = "person"
	NodeTypeOrganization NodeType = "organization"
	NodeTypeTopic        NodeType = "topic"
	NodeTypeProject      NodeType = "project"
	NodeTypeMeeting      NodeType = "meeting"
)

// FilterableNodeTypes are the types an overview fetch may be narrowed to.
// Meetings are reachable through expansions only, never as a base filter.
var FilterableNodeTypes = []NodeType{
	NodeTypePerson,
	NodeTypeOrganization,
	NodeTypeTopic,
	NodeTypeProject,
}

// ParseNodeType maps a wire string to a known node type. The second return
// is false for unknown or empty input.
func ParseNodeType(s string) (NodeType, bool) {
	switch NodeType(s) {
	case NodeTypePerson, NodeTypeOrganization, NodeTypeTopic, NodeTypeProject, NodeTypeMeeting:
		return NodeType(s), true
	}
	return "", false
}

// Filterable reports whether the type may be used as a base graph filter.
func (t NodeType) Filterable() bool {
	for _, ft := range FilterableNodeTypes {
		if t == ft {
			return true
		}
	}
	return false
}

// EdgeType classifies a relationship.
type EdgeType string

const (
	EdgeTypeAttended    EdgeType = "ATTENDED"
	EdgeTypeDiscussed   EdgeType = "DISCUSSED"
	EdgeTypeWorksAt     EdgeType = "WORKS_AT"
	EdgeTypeKnows       EdgeType = "KNOWS"
	EdgeTypeAssignedTo  EdgeType = "ASSIGNED_TO"
	EdgeTypeRelatesTo   EdgeType = "RELATES_TO"
	EdgeTypeMentionedIn EdgeType = "MENTIONED_IN"
)

// Properties carries the open-ended attributes of a node or edge, as stored
// and as serialized to clients.
type Properties map[string]any

// Number returns the first of the given keys that holds a numeric value.
// JSON decoding yields float64, the stores may produce ints, both are
// accepted.
func (p Properties) Number(keys ...string) (float64, bool) {
	for _, k := range keys {
		switch v := p[k].(type) {
		case float64:
			return v, true
		case float32:
			return float64(v), true
		case int:
			return float64(v), true
		case int32:
			return float64(v), true
		case int64:
			return float64(v), true
		}
	}
	return 0, false
}

// String returns the named property if it is a non-empty string.
func (p Properties) String(key string) (string, bool) {
	if v, ok := p[key].(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// Clone returns a shallow copy of the property map. A nil map clones to nil.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// EdgeID builds the canonical relationship id from its endpoints and type.
func EdgeID(source string, t EdgeType, target string) string {
	return source + "-" + string(t) + "-" + target
}

// LabelFor resolves the display label for a node from its properties,
// preferring name over title, falling back to the id.
func LabelFor(props Properties, id string) string {
	if v, ok := props.String("name"); ok {
		return v
	}
	if v, ok := props.String("title"); ok {
		return v
	}
	return id
}
