package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAtelierServer(t *testing.T) {
	s := NewAtelierServer(AtelierServerDeps{})
	require.NotNil(t, s)
	assert.NotNil(t, s.mcpServer)
	assert.NotNil(t, s.logger)
	assert.NotNil(t, s.sessions)
	assert.NotNil(t, s.notifier)
}

func TestToolRegistration(t *testing.T) {
	s := NewAtelierServer(AtelierServerDeps{})

	tools := s.mcpServer.ListTools()
	require.Len(t, tools, 7)

	expectedTools := []string{
		"atelier.execute",
		"atelier.validate",
		"atelier.diagram",
		"atelier.drag",
		"atelier.detect",
		"atelier.schedule",
		"atelier.runs",
	}
	for _, name := range expectedTools {
		tool := s.mcpServer.GetTool(name)
		assert.NotNil(t, tool, "tool %s should be registered", name)
	}
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name        string
		toolName    string
		description string
	}{
		{"execute", "atelier.execute", "Execute a node graph and return the resulting node states"},
		{"validate", "atelier.validate", "Validate a node graph without executing it"},
		{"detect", "atelier.detect", "Detect draggable landmark points on an image"},
		{"schedule", "atelier.schedule", "Manage recurring graph executions"},
		{"runs", "atelier.runs", "Query execution history: runs or the per-run event log"},
	}

	s := NewAtelierServer(AtelierServerDeps{})

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tool := s.mcpServer.GetTool(tc.toolName)
			require.NotNil(t, tool)
			assert.Equal(t, tc.description, tool.Tool.Description)
		})
	}
}
