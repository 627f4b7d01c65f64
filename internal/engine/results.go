package engine

import (
	"github.com/atelier-studio/atelier/internal/registry"
	"github.com/atelier-studio/atelier/pkg/schema"
)

// ResultKey builds the Result Store key for a node output (or pre-seeded
// input) port.
func ResultKey(nodeID, portID string) string {
	return nodeID + "-" + portID
}

// Results is the per-execution map from (node, port) to the value currently
// available at that port. It is owned by a single evaluation loop; macro
// sub-executions get their own isolated instance.
type Results struct {
	values map[string]schema.Value
}

// NewResults creates an empty Result Store.
func NewResults() *Results {
	return &Results{values: make(map[string]schema.Value)}
}

// Get returns the value at the given node/port, if any.
func (r *Results) Get(nodeID, portID string) (schema.Value, bool) {
	v, ok := r.values[ResultKey(nodeID, portID)]
	return v, ok
}

// Set stores a value under the given node/port.
func (r *Results) Set(nodeID, portID string, v schema.Value) {
	r.values[ResultKey(nodeID, portID)] = v
}

// Len returns the number of stored entries.
func (r *Results) Len() int {
	return len(r.values)
}

// Snapshot returns a copy of the underlying map, keyed by ResultKey.
func (r *Results) Snapshot() map[string]schema.Value {
	out := make(map[string]schema.Value, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// merge copies seed entries (raw ResultKey-keyed values) into the store.
func (r *Results) merge(seed map[string]schema.Value) {
	for k, v := range seed {
		r.values[k] = v
	}
}

// seed pre-populates the Result Store before iteration and returns the set
// of node IDs whose evaluation can be skipped.
//
// Two sources are seeded: direct literal params on source kinds, and cached
// results of nodes already completed in a previous execution. The engine
// never hashes inputs to invalidate the cache; a node is re-evaluated only
// when the caller marked it dirty (or anything other than completed).
func (r *Results) seed(reg *registry.Registry, nodes []schema.Node) map[string]bool {
	skip := make(map[string]bool)

	for i := range nodes {
		node := &nodes[i]

		switch node.Kind {
		case registry.KindSourceImage:
			if v, ok := node.Data.Params[schema.ParamImage]; ok && v != nil && v != "" {
				r.Set(node.ID, schema.PortImage, v)
			}
		case registry.KindSourcePrompt:
			if v, ok := node.Data.Params[schema.ParamPrompt]; ok && v != nil && v != "" {
				r.Set(node.ID, schema.PortPrompt, v)
			}
		}

		if node.Data.Status == schema.StatusCompleted && node.Data.Result != nil {
			for _, port := range outputPorts(reg, node) {
				r.Set(node.ID, port.ID, node.Data.Result)
			}
			skip[node.ID] = true
		}
	}

	return skip
}

// outputPorts returns the node's effective output ports: the dynamic set
// when present (macros), else the registry declaration.
func outputPorts(reg *registry.Registry, node *schema.Node) []schema.Port {
	if len(node.Data.DynamicOutputs) > 0 {
		return node.Data.DynamicOutputs
	}
	def, err := reg.Get(node.Kind)
	if err != nil {
		return nil
	}
	return def.Outputs
}

// inputPorts returns the node's effective input ports.
func inputPorts(reg *registry.Registry, node *schema.Node) []schema.Port {
	if len(node.Data.DynamicInputs) > 0 {
		return node.Data.DynamicInputs
	}
	def, err := reg.Get(node.Kind)
	if err != nil {
		return nil
	}
	return def.Inputs
}
