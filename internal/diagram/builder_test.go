package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-studio/atelier/pkg/schema"
)

// linearGraph is source.image -> transform.generate -> output.canvas.
func linearGraph() *schema.Graph {
	return &schema.Graph{
		Nodes: []schema.Node{
			{ID: "photo", Kind: "source.image"},
			{ID: "enhance", Kind: "transform.generate"},
			{ID: "canvas", Kind: "output.canvas"},
		},
		Edges: []schema.Edge{
			{ID: "e1", Source: "photo", SourceHandle: "output", Target: "enhance", TargetHandle: "image"},
			{ID: "e2", Source: "enhance", SourceHandle: "output", Target: "canvas", TargetHandle: "image"},
		},
	}
}

// referenceGraph adds a reference edge onto the generate node.
func referenceGraph() *schema.Graph {
	g := linearGraph()
	g.Nodes = append(g.Nodes, schema.Node{ID: "style", Kind: "source.image"})
	g.Edges = append(g.Edges, schema.Edge{
		ID: "e3", Source: "style", SourceHandle: "output", Target: "enhance", TargetHandle: "reference",
	})
	return g
}

// macroGraph has a macro with a one-node subgraph.
func macroGraph() *schema.Graph {
	return &schema.Graph{
		Nodes: []schema.Node{
			{ID: "photo", Kind: "source.image"},
			{ID: "pipeline", Kind: "macro", Data: schema.NodeData{
				Subgraph: &schema.Subgraph{
					Nodes: []schema.Node{
						{ID: "inner", Kind: "transform.generate"},
					},
				},
			}},
		},
		Edges: []schema.Edge{
			{ID: "e1", Source: "photo", SourceHandle: "output", Target: "pipeline", TargetHandle: "inner__image"},
		},
	}
}

func statusGraph() *schema.Graph {
	g := linearGraph()
	g.Nodes[0].Data.Status = schema.StatusCompleted
	g.Nodes[1].Data.Status = schema.StatusProcessing
	g.Nodes[2].Data.Status = schema.StatusError
	g.Nodes[2].Data.Error = "backend unavailable"
	return g
}

func TestBuildLinear(t *testing.T) {
	model := Build("Portrait", linearGraph())

	assert.Equal(t, "Portrait", model.Title)
	require.Len(t, model.Nodes, 3)
	assert.Equal(t, NodeKindSource, model.Nodes[0].Kind)
	assert.Equal(t, NodeKindTransform, model.Nodes[1].Kind)
	assert.Equal(t, NodeKindOutput, model.Nodes[2].Kind)
	require.Len(t, model.Edges, 2)

	// Three sequential levels.
	require.Len(t, model.Levels, 3)
	assert.Equal(t, []string{"photo"}, model.Levels[0])
	assert.Equal(t, []string{"enhance"}, model.Levels[1])
	assert.Equal(t, []string{"canvas"}, model.Levels[2])
}

func TestBuildEdgeLabels(t *testing.T) {
	model := Build("", referenceGraph())

	labels := make(map[string]string)
	for _, e := range model.Edges {
		labels[e.From+">"+e.To] = e.Label
	}
	assert.Equal(t, "", labels["photo>enhance"], "primary image edge stays unlabeled")
	assert.Equal(t, "reference", labels["style>enhance"])
}

func TestBuildMacroChildren(t *testing.T) {
	model := Build("", macroGraph())

	var macro *Node
	for _, n := range model.Nodes {
		if n.ID == "pipeline" {
			macro = n
		}
	}
	require.NotNil(t, macro)
	assert.Equal(t, NodeKindMacro, macro.Kind)
	require.Len(t, macro.Children, 1)
	require.Len(t, macro.Children[0].Nodes, 1)
	assert.Equal(t, "pipeline.inner", macro.Children[0].Nodes[0].ID)
}

func TestBuildStatusOverlay(t *testing.T) {
	model := Build("", statusGraph())

	require.NotNil(t, model.Nodes[2].Status)
	assert.Equal(t, "error", model.Nodes[2].Status.Status)
	assert.Equal(t, "backend unavailable", model.Nodes[2].Status.Error)
	assert.Nil(t, Build("", linearGraph()).Nodes[0].Status, "no status means no overlay")
}

func TestBuildLevelsParallelBranches(t *testing.T) {
	g := referenceGraph()
	model := Build("", g)

	// photo and style share level 0.
	require.Len(t, model.Levels, 3)
	assert.ElementsMatch(t, []string{"photo", "style"}, model.Levels[0])
}

func TestBuildLevelsCycle(t *testing.T) {
	g := &schema.Graph{
		Nodes: []schema.Node{
			{ID: "a", Kind: "transform.generate"},
			{ID: "b", Kind: "transform.generate"},
		},
		Edges: []schema.Edge{
			{ID: "e1", Source: "a", SourceHandle: "output", Target: "b", TargetHandle: "image"},
			{ID: "e2", Source: "b", SourceHandle: "output", Target: "a", TargetHandle: "image"},
		},
	}
	model := Build("", g)

	// Cyclic nodes still get placed.
	require.Len(t, model.Levels, 1)
	assert.ElementsMatch(t, []string{"a", "b"}, model.Levels[0])
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, NodeKindSource, kindOf("source.prompt"))
	assert.Equal(t, NodeKindOutput, kindOf("output.canvas"))
	assert.Equal(t, NodeKindMacro, kindOf("macro"))
	assert.Equal(t, NodeKindGroup, kindOf("group"))
	assert.Equal(t, NodeKindTransform, kindOf("transform.generate"))
	assert.Equal(t, NodeKindTransform, kindOf("something.else"))
}
