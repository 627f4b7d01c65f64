package engine

import "github.com/atelier-studio/atelier/pkg/schema"

// resolveInherited returns the value for a config key, falling back one hop
// along the primary image edge when the node itself does not set it. The
// lookup is deliberately single-hop: a node two edges away does not leak its
// lighting into this one.
func (ec *evalContext) resolveInherited(node *schema.Node, key string) any {
	if v, ok := node.Data.Params[key]; ok && v != nil {
		return v
	}
	edge := ec.findIncomingEdge(node.ID, schema.PortImage)
	if edge == nil {
		return nil
	}
	upstream, ok := ec.byID[edge.Source]
	if !ok {
		return nil
	}
	if v, ok := upstream.Data.Params[key]; ok && v != nil {
		return v
	}
	return nil
}

// upstreamParams returns the params of the node feeding the primary image
// port, for prompt interpolation scope. Nil when unconnected.
func (ec *evalContext) upstreamParams(node *schema.Node) map[string]any {
	edge := ec.findIncomingEdge(node.ID, schema.PortImage)
	if edge == nil {
		return nil
	}
	upstream, ok := ec.byID[edge.Source]
	if !ok {
		return nil
	}
	return upstream.Data.Params
}
