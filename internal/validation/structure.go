package validation

import (
	"fmt"
	"strings"

	"github.com/atelier-studio/atelier/pkg/schema"
)

// validateStructure performs the checks JSON Schema cannot express:
// duplicate IDs, edge reference integrity, multiple edges into one input
// port, macro port wiring, and cycle detection. Subgraphs are validated
// recursively.
func validateStructure(g *schema.Graph, kinds KindLookup) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	validateGraphAt(g, "", kinds, result)
	return result
}

func validateGraphAt(g *schema.Graph, path string, kinds KindLookup, result *schema.ValidationResult) {
	nodeIDs := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		npath := fmt.Sprintf("%snodes[%d]", path, i)
		if _, dup := nodeIDs[n.ID]; dup {
			result.AddError(npath, schema.ErrCodeValidation,
				fmt.Sprintf("duplicate node id %q", n.ID))
			continue
		}
		nodeIDs[n.ID] = i

		if kinds != nil && !kinds.Has(n.Kind) {
			// The engine skips unknown kinds instead of failing, so this
			// is advisory.
			result.AddWarning(npath+".kind", schema.ErrCodeValidation,
				fmt.Sprintf("unknown node kind %q", n.Kind))
		}
	}

	edgeIDs := make(map[string]bool, len(g.Edges))
	targetPorts := make(map[string]int, len(g.Edges))
	for i, e := range g.Edges {
		epath := fmt.Sprintf("%sedges[%d]", path, i)
		if edgeIDs[e.ID] {
			result.AddError(epath, schema.ErrCodeValidation,
				fmt.Sprintf("duplicate edge id %q", e.ID))
		}
		edgeIDs[e.ID] = true

		if _, ok := nodeIDs[e.Source]; !ok {
			result.AddError(epath+".source", schema.ErrCodeValidation,
				fmt.Sprintf("references non-existent node %q", e.Source))
		}
		if _, ok := nodeIDs[e.Target]; !ok {
			result.AddError(epath+".target", schema.ErrCodeValidation,
				fmt.Sprintf("references non-existent node %q", e.Target))
		}

		// Two edges into one input port is ambiguous: the engine would
		// silently use whichever comes first.
		portKey := e.Target + "\x00" + e.TargetHandle
		if prev, conflict := targetPorts[portKey]; conflict {
			result.AddError(epath, schema.ErrCodeValidation,
				fmt.Sprintf("input port %q of node %q already connected by edges[%d]",
					e.TargetHandle, e.Target, prev))
		} else {
			targetPorts[portKey] = i
		}
	}

	detectCycles(g, path, nodeIDs, result)

	for i := range g.Nodes {
		n := &g.Nodes[i]
		npath := fmt.Sprintf("%snodes[%d]", path, i)
		if n.Data.Subgraph != nil {
			validateMacroPorts(n, npath, result)
			inner := &schema.Graph{Nodes: n.Data.Subgraph.Nodes, Edges: n.Data.Subgraph.Edges}
			validateGraphAt(inner, npath+".data.subgraph.", kinds, result)
		}
	}
}

// validateMacroPorts checks that every dynamic port names an existing inner
// node using the nodeID__portID convention.
func validateMacroPorts(n *schema.Node, path string, result *schema.ValidationResult) {
	inner := make(map[string]bool, len(n.Data.Subgraph.Nodes))
	for _, in := range n.Data.Subgraph.Nodes {
		inner[in.ID] = true
	}

	check := func(ports []schema.Port, field string) {
		for j, p := range ports {
			idx := strings.LastIndex(p.ID, "__")
			if idx < 0 {
				result.AddError(fmt.Sprintf("%s.data.%s[%d]", path, field, j),
					schema.ErrCodeValidation,
					fmt.Sprintf("port %q does not follow the node__port convention", p.ID))
				continue
			}
			if nodeID := p.ID[:idx]; !inner[nodeID] {
				result.AddError(fmt.Sprintf("%s.data.%s[%d]", path, field, j),
					schema.ErrCodeValidation,
					fmt.Sprintf("port %q references inner node %q which does not exist", p.ID, nodeID))
			}
		}
	}
	check(n.Data.DynamicInputs, "dynamicInputs")
	check(n.Data.DynamicOutputs, "dynamicOutputs")
}

// detectCycles warns (not errors) about cycles: the engine evaluates cyclic
// graphs best-effort, but results inside the cycle are order-dependent.
func detectCycles(g *schema.Graph, path string, nodeIDs map[string]int, result *schema.ValidationResult) {
	adjacency := make(map[string][]string)
	inDegree := make(map[string]int, len(g.Nodes))
	for id := range nodeIDs {
		inDegree[id] = 0
	}
	for _, e := range g.Edges {
		if _, ok := nodeIDs[e.Source]; !ok {
			continue
		}
		if _, ok := nodeIDs[e.Target]; !ok {
			continue
		}
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
		inDegree[e.Target]++
	}

	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range adjacency[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if visited < len(nodeIDs) {
		var cyclic []string
		for id, deg := range inDegree {
			if deg > 0 {
				cyclic = append(cyclic, id)
			}
		}
		result.AddWarning(path+"edges", schema.ErrCodeValidation,
			fmt.Sprintf("graph contains a cycle involving %d node(s): evaluation order inside the cycle is undefined", len(cyclic)))
	}
}
