package diagram

import (
	"fmt"
	"strings"

	"github.com/atelier-studio/atelier/pkg/schema"
)

// Build constructs a DiagramModel from a graph document. Node statuses come
// straight off the document; callers that replayed an event log write the
// reconstructed states back into the graph before rendering.
func Build(title string, g *schema.Graph) *DiagramModel {
	nodes := make([]*Node, 0, len(g.Nodes))
	for i := range g.Nodes {
		n := &g.Nodes[i]
		dn := &Node{
			ID:     n.ID,
			Label:  nodeLabel(n),
			Kind:   kindOf(n.Kind),
			Status: overlay(n),
		}
		if n.Data.Subgraph != nil && len(n.Data.Subgraph.Nodes) > 0 {
			dn.Children = append(dn.Children, buildSubGraph(n.ID, n.Data.Subgraph))
		}
		nodes = append(nodes, dn)
	}

	edges := make([]Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		edges = append(edges, Edge{
			From:  e.Source,
			To:    e.Target,
			Label: edgeLabel(e.TargetHandle),
		})
	}

	return &DiagramModel{
		Title:  title,
		Nodes:  nodes,
		Edges:  edges,
		Levels: buildLevels(g.Nodes, g.Edges),
	}
}

// kindOf maps a node kind string to a diagram NodeKind. Namespaced kinds
// classify by their prefix; unknown kinds render as transforms.
func kindOf(kind string) NodeKind {
	if kind == "macro" {
		return NodeKindMacro
	}
	if kind == "group" {
		return NodeKindGroup
	}
	prefix, _, _ := strings.Cut(kind, ".")
	switch prefix {
	case "source":
		return NodeKindSource
	case "output":
		return NodeKindOutput
	default:
		return NodeKindTransform
	}
}

// nodeLabel creates a human-readable label for a node.
func nodeLabel(n *schema.Node) string {
	if label, ok := n.Data.Params["label"].(string); ok && label != "" {
		return fmt.Sprintf("%s\n(%s)", label, n.Kind)
	}
	return fmt.Sprintf("%s\n(%s)", n.ID, n.Kind)
}

// edgeLabel returns the target port as an edge label, except for the
// primary image port which stays unlabeled.
func edgeLabel(targetHandle string) string {
	if targetHandle == schema.PortImage {
		return ""
	}
	return targetHandle
}

// overlay extracts the runtime state of a node, if any.
func overlay(n *schema.Node) *StatusOverlay {
	if n.Data.Status == "" {
		return nil
	}
	return &StatusOverlay{
		Status: string(n.Data.Status),
		Error:  n.Data.Error,
	}
}

// buildSubGraph flattens a macro's subgraph one level deep. Inner IDs are
// qualified with the macro ID so they never collide with outer nodes.
func buildSubGraph(macroID string, sg *schema.Subgraph) *SubGraph {
	out := &SubGraph{Label: "subgraph"}
	for i := range sg.Nodes {
		inner := &sg.Nodes[i]
		out.Nodes = append(out.Nodes, &Node{
			ID:     qualifiedID(macroID, inner.ID),
			Label:  nodeLabel(inner),
			Kind:   kindOf(inner.Kind),
			Status: overlay(inner),
		})
	}
	for _, e := range sg.Edges {
		out.Edges = append(out.Edges, Edge{
			From:  qualifiedID(macroID, e.Source),
			To:    qualifiedID(macroID, e.Target),
			Label: edgeLabel(e.TargetHandle),
		})
	}
	return out
}

func qualifiedID(macroID, innerID string) string {
	return macroID + "." + innerID
}

// buildLevels computes a longest-path layering of the graph for the ASCII
// renderer. Nodes caught in a cycle land together on a final level.
func buildLevels(nodes []schema.Node, edges []schema.Edge) [][]string {
	known := make(map[string]bool, len(nodes))
	for i := range nodes {
		known[nodes[i].ID] = true
	}

	indegree := make(map[string]int, len(nodes))
	out := make(map[string][]string, len(nodes))
	for _, e := range edges {
		if !known[e.Source] || !known[e.Target] {
			continue
		}
		indegree[e.Target]++
		out[e.Source] = append(out[e.Source], e.Target)
	}

	depth := make(map[string]int, len(nodes))
	placed := make(map[string]bool, len(nodes))
	var frontier []string
	for i := range nodes {
		if indegree[nodes[i].ID] == 0 {
			frontier = append(frontier, nodes[i].ID)
		}
	}
	for len(frontier) > 0 {
		var next []string
		for _, id := range frontier {
			placed[id] = true
			for _, to := range out[id] {
				if d := depth[id] + 1; d > depth[to] {
					depth[to] = d
				}
				indegree[to]--
				if indegree[to] == 0 {
					next = append(next, to)
				}
			}
		}
		frontier = next
	}

	maxDepth := 0
	for _, d := range depth {
		if d > maxDepth {
			maxDepth = d
		}
	}

	levels := make([][]string, maxDepth+1)
	for i := range nodes {
		id := nodes[i].ID
		if placed[id] {
			levels[depth[id]] = append(levels[depth[id]], id)
		}
	}

	var cyclic []string
	for i := range nodes {
		if !placed[nodes[i].ID] {
			cyclic = append(cyclic, nodes[i].ID)
		}
	}
	if len(cyclic) > 0 {
		levels = append(levels, cyclic)
	}

	var compact [][]string
	for _, lvl := range levels {
		if len(lvl) > 0 {
			compact = append(compact, lvl)
		}
	}
	return compact
}
