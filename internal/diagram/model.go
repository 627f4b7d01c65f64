// Package diagram renders graph documents as Mermaid flowcharts, Graphviz
// PNGs or ASCII previews, with optional execution status overlays.
package diagram

// NodeKind classifies a diagram node by its role in the graph.
type NodeKind string

const (
	NodeKindSource    NodeKind = "source"
	NodeKindTransform NodeKind = "transform"
	NodeKindOutput    NodeKind = "output"
	NodeKindMacro     NodeKind = "macro"
	NodeKindGroup     NodeKind = "group"
)

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title  string
	Nodes  []*Node
	Edges  []Edge
	Levels [][]string
}

// Node represents a single graph node in the diagram.
type Node struct {
	ID       string
	Label    string
	Kind     NodeKind
	Status   *StatusOverlay
	Children []*SubGraph // macro subgraphs
}

// SubGraph holds the nested nodes of a macro.
type SubGraph struct {
	Label string
	Nodes []*Node
	Edges []Edge
}

// StatusOverlay carries runtime state for a node.
type StatusOverlay struct {
	Status string // from schema.NodeStatus
	Error  string
}

// Edge represents a connection between two nodes. Label is the target port
// when it is not the primary image port.
type Edge struct {
	From  string
	To    string
	Label string
}
