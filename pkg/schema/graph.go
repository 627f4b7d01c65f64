// Package schema defines the graph document format shared by the engine,
// the registry and external callers.
package schema

// Value is an opaque payload flowing across edges. In this domain it is
// typically a data-URL string (image) or plain text, but the engine never
// inspects it.
type Value = any

// PortType tags a port with its advisory payload type. The engine does not
// enforce type compatibility at evaluation time; mismatches are an editor
// concern.
type PortType string

const (
	PortTypeImage PortType = "image"
	PortTypeText  PortType = "text"
	PortTypeData  PortType = "data"
	PortTypeAny   PortType = "any"
)

// Port is a named connection point on a node.
type Port struct {
	ID    string   `json:"id"`
	Label string   `json:"label,omitempty"`
	Type  PortType `json:"type,omitempty"`
}

// NodeStatus is the lifecycle state of a node, as surfaced to the editor.
type NodeStatus string

const (
	StatusIdle       NodeStatus = "idle"
	StatusProcessing NodeStatus = "processing"
	StatusCompleted  NodeStatus = "completed"
	StatusError      NodeStatus = "error"
	// StatusDirty is set by the caller to force re-evaluation of a node
	// whose inputs changed. The engine treats it as not-yet-completed.
	StatusDirty NodeStatus = "dirty"
	// StatusPendingChanges is set by external collaborators (e.g. the mask
	// editor) and never produced by the engine itself.
	StatusPendingChanges NodeStatus = "pending_changes"
)

// Terminal reports whether the status is a final evaluation outcome.
func (s NodeStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Position is the node's placement on the editor canvas. Irrelevant to
// execution; carried so graph documents round-trip.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a unit of computation in the graph.
type Node struct {
	ID       string   `json:"id"`
	Kind     string   `json:"kind"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// NodeData is the mutable bag attached to a node: configuration set by the
// editor plus evaluation outcome written back through the status callback.
type NodeData struct {
	Params map[string]any `json:"params,omitempty"`
	Result Value          `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
	Status NodeStatus     `json:"status,omitempty"`
	// DynamicInputs/DynamicOutputs override the registry port set for node
	// kinds whose shape is not fixed (macros).
	DynamicInputs  []Port `json:"dynamicInputs,omitempty"`
	DynamicOutputs []Port `json:"dynamicOutputs,omitempty"`
	// Subgraph is the embedded graph of a macro node. Nil for every other
	// kind.
	Subgraph *Subgraph `json:"subgraph,omitempty"`
}

// Graph is a full editor document: the node set and the edges between them.
type Graph struct {
	Nodes []Node `json:"nodes,omitempty"`
	Edges []Edge `json:"edges,omitempty"`
}

// Subgraph is the nested node/edge collection a macro node expands into.
type Subgraph struct {
	Nodes []Node `json:"nodes,omitempty"`
	Edges []Edge `json:"edges,omitempty"`
}

// Clone returns a deep copy of the graph. Param values are copied by key;
// the opaque payloads themselves are shared.
func (g *Graph) Clone() *Graph {
	if g == nil {
		return nil
	}
	out := &Graph{
		Nodes: make([]Node, len(g.Nodes)),
		Edges: make([]Edge, len(g.Edges)),
	}
	copy(out.Edges, g.Edges)
	for i, n := range g.Nodes {
		out.Nodes[i] = n.Clone()
	}
	return out
}

// Clone returns a deep copy of the subgraph.
func (sg *Subgraph) Clone() *Subgraph {
	if sg == nil {
		return nil
	}
	g := Graph{Nodes: sg.Nodes, Edges: sg.Edges}
	c := g.Clone()
	return &Subgraph{Nodes: c.Nodes, Edges: c.Edges}
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	c := n
	if n.Data.Params != nil {
		c.Data.Params = make(map[string]any, len(n.Data.Params))
		for k, v := range n.Data.Params {
			c.Data.Params[k] = v
		}
	}
	c.Data.DynamicInputs = append([]Port(nil), n.Data.DynamicInputs...)
	c.Data.DynamicOutputs = append([]Port(nil), n.Data.DynamicOutputs...)
	c.Data.Subgraph = n.Data.Subgraph.Clone()
	return c
}

// Edge is a directed connection from one node's output port to another
// node's input port.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle"`
}

// NodeDefinition is a registry entry describing a node kind. Immutable,
// loaded once at process start.
type NodeDefinition struct {
	Kind          string         `json:"kind"`
	Label         string         `json:"label"`
	Category      string         `json:"category"`
	Inputs        []Port         `json:"inputs"`
	Outputs       []Port         `json:"outputs"`
	DefaultParams map[string]any `json:"defaultParams,omitempty"`
}

// Well-known param keys consumed by the evaluator.
const (
	ParamImage  = "image"  // literal image payload on source.image nodes
	ParamPrompt = "prompt" // literal text payload on source.prompt nodes
	ParamLight  = "light"  // light description, inherited one hop upstream
	ParamCamera = "camera" // camera description, inherited one hop upstream
	ParamMaps   = "structuralMaps" // pre-supplied guidance maps
)

// Well-known port IDs on the built-in kinds.
const (
	PortImage     = "image"
	PortReference = "reference"
	PortMask      = "mask"
	PortPrompt    = "prompt"
	PortOutput    = "output"
)
