package engine

import "github.com/atelier-studio/atelier/pkg/schema"

// Order computes an evaluation order for the given nodes using Kahn's
// algorithm. Edges referencing unknown node IDs are ignored. If the graph
// contains a cycle, the not-yet-visited nodes are appended at the end in
// their original sequence position: the result always contains every node
// exactly once, but dependency order is not guaranteed inside the cycle.
func Order(nodes []schema.Node, edges []schema.Edge) []schema.Node {
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		index[n.ID] = i
	}

	adjacency := make(map[string][]string, len(nodes))
	inDegree := make(map[string]int, len(nodes))
	for _, n := range nodes {
		inDegree[n.ID] = 0
	}

	for _, e := range edges {
		if _, ok := index[e.Source]; !ok {
			continue
		}
		if _, ok := index[e.Target]; !ok {
			continue
		}
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
		inDegree[e.Target]++
	}

	// Seed the queue with zero in-degree nodes in input order so the
	// result is deterministic for a given snapshot.
	queue := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	ordered := make([]schema.Node, 0, len(nodes))
	visited := make(map[string]bool, len(nodes))

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		ordered = append(ordered, nodes[index[id]])
		visited[id] = true

		for _, next := range adjacency[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	// Cycle remainder: best-effort, never an error.
	if len(ordered) < len(nodes) {
		for _, n := range nodes {
			if !visited[n.ID] {
				ordered = append(ordered, n)
			}
		}
	}

	return ordered
}
