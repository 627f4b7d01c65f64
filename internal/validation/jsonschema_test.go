package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-studio/atelier/internal/registry"
	"github.com/atelier-studio/atelier/pkg/schema"
)

func newValidator(t *testing.T) *GraphValidator {
	t.Helper()
	v, err := NewGraphValidator(registry.Builtin())
	require.NoError(t, err)
	return v
}

func validGraph() *schema.Graph {
	return &schema.Graph{
		Nodes: []schema.Node{
			{ID: "src", Kind: registry.KindSourceImage, Data: schema.NodeData{
				Params: map[string]any{"image": "data:image/png;base64,AAAA"},
			}},
			{ID: "gen", Kind: registry.KindGenerate},
			{ID: "out", Kind: registry.KindCanvas},
		},
		Edges: []schema.Edge{
			{ID: "e1", Source: "src", SourceHandle: "image", Target: "gen", TargetHandle: "image"},
			{ID: "e2", Source: "gen", SourceHandle: "output", Target: "out", TargetHandle: "image"},
		},
	}
}

func TestNewGraphValidator(t *testing.T) {
	v, err := NewGraphValidator(nil)
	require.NoError(t, err)
	assert.NotNil(t, v.graphSchema)
}

func TestValidateGraph_Nil(t *testing.T) {
	v := newValidator(t)
	result := v.ValidateGraph(nil)
	assert.False(t, result.Valid())
}

func TestValidateGraph_Valid(t *testing.T) {
	v := newValidator(t)
	result := v.ValidateGraph(validGraph())
	assert.True(t, result.Valid(), "errors: %v", result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidateGraph_MissingNodeID(t *testing.T) {
	v := newValidator(t)
	g := &schema.Graph{Nodes: []schema.Node{{Kind: registry.KindSourceImage}}}
	result := v.ValidateGraph(g)
	assert.False(t, result.Valid())
}

func TestValidateGraph_BadStatusValue(t *testing.T) {
	v := newValidator(t)
	g := validGraph()
	g.Nodes[1].Data.Status = "exploded"
	result := v.ValidateGraph(g)
	assert.False(t, result.Valid())
}

func TestValidateGraph_EmptyGraphIsValid(t *testing.T) {
	v := newValidator(t)
	result := v.ValidateGraph(&schema.Graph{Nodes: []schema.Node{}})
	assert.True(t, result.Valid(), "errors: %v", result.Errors)
}

func TestValidateGraph_NestedSubgraphShape(t *testing.T) {
	v := newValidator(t)
	g := validGraph()
	g.Nodes = append(g.Nodes, schema.Node{
		ID:   "macro",
		Kind: registry.KindMacro,
		Data: schema.NodeData{
			Subgraph: &schema.Subgraph{
				Nodes: []schema.Node{{ID: "", Kind: registry.KindGenerate}}, // invalid: empty id
			},
		},
	})
	result := v.ValidateGraph(g)
	assert.False(t, result.Valid())
}
