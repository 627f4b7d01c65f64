package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-studio/atelier/internal/engine"
	"github.com/atelier-studio/atelier/internal/scheduler"
	"github.com/atelier-studio/atelier/internal/store"
	"github.com/atelier-studio/atelier/pkg/schema"
)

// --- Fakes ---

// fakeExecutor completes every node with a canned result.
type fakeExecutor struct {
	executed bool
	err      error
}

func (f *fakeExecutor) Execute(_ context.Context, nodes []schema.Node, _ []schema.Edge, onStatus engine.StatusCallback) error {
	f.executed = true
	if f.err != nil {
		return f.err
	}
	for i := range nodes {
		if onStatus != nil {
			onStatus(nodes[i].ID, schema.StatusCompleted, "result-"+nodes[i].ID, "")
		}
	}
	return nil
}

type fakeValidator struct {
	result *schema.ValidationResult
}

func (f *fakeValidator) ValidateGraph(_ *schema.Graph) *schema.ValidationResult {
	if f.result != nil {
		return f.result
	}
	return &schema.ValidationResult{}
}

type fakeScheduler struct {
	registered []string
	jobs       []scheduler.Job
	enabled    map[string]bool
}

func (f *fakeScheduler) Register(label, cronExpr string, _ *schema.Graph) (string, error) {
	if cronExpr == "bad" {
		return "", errors.New("parse cron expression")
	}
	f.registered = append(f.registered, label)
	return "job-1", nil
}

func (f *fakeScheduler) Unregister(jobID string) {
	f.registered = nil
}

func (f *fakeScheduler) SetEnabled(jobID string, enabled bool) error {
	if f.enabled == nil {
		f.enabled = make(map[string]bool)
	}
	f.enabled[jobID] = enabled
	return nil
}

func (f *fakeScheduler) Jobs() []scheduler.Job { return f.jobs }

// mockStore backs the runs tool.
type mockStore struct {
	store.Store // embed for unimplemented methods

	runs   []*store.Run
	events []*store.Event
}

func (m *mockStore) ListRuns(_ context.Context, filter store.RunFilter) ([]*store.Run, error) {
	result := make([]*store.Run, 0)
	for _, r := range m.runs {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.Label != "" && r.Label != filter.Label {
			continue
		}
		result = append(result, r)
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *mockStore) GetEvents(_ context.Context, runID string, _ int64) ([]*store.Event, error) {
	result := make([]*store.Event, 0)
	for _, e := range m.events {
		if e.RunID == runID {
			result = append(result, e)
		}
	}
	return result, nil
}

// --- Helpers ---

func buildRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
}

func graphArg() map[string]any {
	return map[string]any{
		"nodes": []any{
			map[string]any{"id": "src", "kind": "source.prompt", "data": map[string]any{
				"params": map[string]any{"prompt": "a boat"},
			}},
			map[string]any{"id": "canvas", "kind": "output.canvas", "data": map[string]any{}},
		},
		"edges": []any{
			map[string]any{"id": "e1", "source": "src", "sourceHandle": "output",
				"target": "canvas", "targetHandle": "prompt"},
		},
	}
}

func newTestServer(exec *fakeExecutor) *AtelierServer {
	return NewAtelierServer(AtelierServerDeps{
		Executor:  exec,
		Validator: &fakeValidator{},
		Store:     &mockStore{},
		Scheduler: &fakeScheduler{},
	})
}

func extractText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	return mcp.GetTextFromContent(result.Content[0])
}

func unmarshalResult(t *testing.T, result *mcp.CallToolResult, target any) {
	t.Helper()
	text := extractText(t, result)
	require.NoError(t, json.Unmarshal([]byte(text), target))
}

// --- Execute ---

func TestExecuteTool(t *testing.T) {
	exec := &fakeExecutor{}
	s := newTestServer(exec)

	result, err := s.handleExecute(context.Background(), buildRequest("atelier.execute", map[string]any{
		"graph": graphArg(),
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.True(t, exec.executed)

	var out struct {
		Executed bool                 `json:"executed"`
		Nodes    map[string]nodeState `json:"nodes"`
	}
	unmarshalResult(t, result, &out)
	assert.True(t, out.Executed)
	require.Len(t, out.Nodes, 2)
	assert.Equal(t, schema.StatusCompleted, out.Nodes["src"].Status)
	assert.Equal(t, "result-canvas", out.Nodes["canvas"].Result)
}

func TestExecuteToolMissingGraph(t *testing.T) {
	s := newTestServer(&fakeExecutor{})
	result, err := s.handleExecute(context.Background(), buildRequest("atelier.execute", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestExecuteToolValidationBlocks(t *testing.T) {
	invalid := &schema.ValidationResult{}
	invalid.AddError("/nodes/0", "duplicate_node_id", "duplicate node id")

	exec := &fakeExecutor{}
	s := NewAtelierServer(AtelierServerDeps{
		Executor:  exec,
		Validator: &fakeValidator{result: invalid},
	})

	result, err := s.handleExecute(context.Background(), buildRequest("atelier.execute", map[string]any{
		"graph": graphArg(),
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.False(t, exec.executed, "invalid graphs must not execute")

	var out struct {
		Executed bool `json:"executed"`
	}
	unmarshalResult(t, result, &out)
	assert.False(t, out.Executed)
}

func TestExecuteToolSkipValidation(t *testing.T) {
	invalid := &schema.ValidationResult{}
	invalid.AddError("/nodes/0", "duplicate_node_id", "duplicate node id")

	exec := &fakeExecutor{}
	s := NewAtelierServer(AtelierServerDeps{
		Executor:  exec,
		Validator: &fakeValidator{result: invalid},
	})

	result, err := s.handleExecute(context.Background(), buildRequest("atelier.execute", map[string]any{
		"graph":           graphArg(),
		"skip_validation": "true",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.True(t, exec.executed)
}

func TestExecuteToolEngineError(t *testing.T) {
	s := newTestServer(&fakeExecutor{err: errors.New("store down")})
	result, err := s.handleExecute(context.Background(), buildRequest("atelier.execute", map[string]any{
		"graph": graphArg(),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// --- Validate ---

func TestValidateTool(t *testing.T) {
	s := newTestServer(&fakeExecutor{})
	result, err := s.handleValidate(context.Background(), buildRequest("atelier.validate", map[string]any{
		"graph": graphArg(),
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var out struct {
		Valid bool `json:"valid"`
	}
	unmarshalResult(t, result, &out)
	assert.True(t, out.Valid)
}

func TestValidateToolReportsIssues(t *testing.T) {
	invalid := &schema.ValidationResult{}
	invalid.AddError("/edges/0", "dangling_edge", "edge references unknown node")
	invalid.AddWarning("/nodes/1", "unknown_kind", "unknown node kind")

	s := NewAtelierServer(AtelierServerDeps{Validator: &fakeValidator{result: invalid}})
	result, err := s.handleValidate(context.Background(), buildRequest("atelier.validate", map[string]any{
		"graph": graphArg(),
	}))
	require.NoError(t, err)

	var out struct {
		Valid    bool                     `json:"valid"`
		Errors   []schema.ValidationIssue `json:"errors"`
		Warnings []schema.ValidationIssue `json:"warnings"`
	}
	unmarshalResult(t, result, &out)
	assert.False(t, out.Valid)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "dangling_edge", out.Errors[0].Code)
	require.Len(t, out.Warnings, 1)
}

// --- Diagram ---

func TestDiagramToolMermaid(t *testing.T) {
	s := newTestServer(&fakeExecutor{})
	result, err := s.handleDiagram(context.Background(), buildRequest("atelier.diagram", map[string]any{
		"graph":  graphArg(),
		"format": "mermaid",
		"title":  "Boat",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := extractText(t, result)
	assert.Contains(t, text, "graph TD")
	assert.Contains(t, text, "%% Boat")
	assert.Contains(t, text, "src")
}

func TestDiagramToolASCII(t *testing.T) {
	s := newTestServer(&fakeExecutor{})
	result, err := s.handleDiagram(context.Background(), buildRequest("atelier.diagram", map[string]any{
		"graph":  graphArg(),
		"format": "ascii",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, extractText(t, result), "src")
}

func TestDiagramToolMissingFormat(t *testing.T) {
	s := newTestServer(&fakeExecutor{})
	result, err := s.handleDiagram(context.Background(), buildRequest("atelier.diagram", map[string]any{
		"graph": graphArg(),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// --- Drag / Detect ---

func TestDragToolMissingPoints(t *testing.T) {
	s := newTestServer(&fakeExecutor{})
	result, err := s.handleDrag(context.Background(), buildRequest("atelier.drag", map[string]any{
		"image": "data:image/png;base64,AAAA",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestDetectToolBadImage(t *testing.T) {
	s := newTestServer(&fakeExecutor{})
	result, err := s.handleDetect(context.Background(), buildRequest("atelier.detect", map[string]any{
		"image": "not an image",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// --- Schedule ---

func TestScheduleToolRegister(t *testing.T) {
	sched := &fakeScheduler{}
	s := NewAtelierServer(AtelierServerDeps{Scheduler: sched})

	result, err := s.handleSchedule(context.Background(), buildRequest("atelier.schedule", map[string]any{
		"action": "register",
		"label":  "nightly",
		"cron":   "0 3 * * *",
		"graph":  graphArg(),
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, []string{"nightly"}, sched.registered)

	var out struct {
		JobID string `json:"job_id"`
	}
	unmarshalResult(t, result, &out)
	assert.Equal(t, "job-1", out.JobID)
}

func TestScheduleToolRegisterRequiresCron(t *testing.T) {
	s := NewAtelierServer(AtelierServerDeps{Scheduler: &fakeScheduler{}})
	result, err := s.handleSchedule(context.Background(), buildRequest("atelier.schedule", map[string]any{
		"action": "register",
		"graph":  graphArg(),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestScheduleToolPauseResume(t *testing.T) {
	sched := &fakeScheduler{}
	s := NewAtelierServer(AtelierServerDeps{Scheduler: sched})

	result, err := s.handleSchedule(context.Background(), buildRequest("atelier.schedule", map[string]any{
		"action": "pause",
		"job_id": "job-1",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.False(t, sched.enabled["job-1"])

	result, err = s.handleSchedule(context.Background(), buildRequest("atelier.schedule", map[string]any{
		"action": "resume",
		"job_id": "job-1",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.True(t, sched.enabled["job-1"])
}

func TestScheduleToolList(t *testing.T) {
	sched := &fakeScheduler{jobs: []scheduler.Job{{ID: "job-1", Label: "nightly"}}}
	s := NewAtelierServer(AtelierServerDeps{Scheduler: sched})

	result, err := s.handleSchedule(context.Background(), buildRequest("atelier.schedule", map[string]any{
		"action": "list",
	}))
	require.NoError(t, err)

	var out struct {
		Jobs []scheduler.Job `json:"jobs"`
	}
	unmarshalResult(t, result, &out)
	require.Len(t, out.Jobs, 1)
	assert.Equal(t, "nightly", out.Jobs[0].Label)
}

// --- Runs ---

func TestRunsToolListRuns(t *testing.T) {
	ms := &mockStore{runs: []*store.Run{
		{ID: "r1", Label: "portrait", Status: store.RunStatusCompleted},
		{ID: "r2", Label: "boat", Status: store.RunStatusFailed},
	}}
	s := NewAtelierServer(AtelierServerDeps{Store: ms})

	result, err := s.handleRuns(context.Background(), buildRequest("atelier.runs", map[string]any{
		"resource": "runs",
		"filter":   map[string]any{"status": store.RunStatusCompleted},
	}))
	require.NoError(t, err)

	var out struct {
		Runs []*store.Run `json:"runs"`
	}
	unmarshalResult(t, result, &out)
	require.Len(t, out.Runs, 1)
	assert.Equal(t, "r1", out.Runs[0].ID)
}

func TestRunsToolEvents(t *testing.T) {
	ms := &mockStore{events: []*store.Event{
		{RunID: "r1", Type: schema.EventRunStarted, Sequence: 1},
		{RunID: "r2", Type: schema.EventRunStarted, Sequence: 1},
	}}
	s := NewAtelierServer(AtelierServerDeps{Store: ms})

	result, err := s.handleRuns(context.Background(), buildRequest("atelier.runs", map[string]any{
		"resource": "events",
		"run_id":   "r1",
	}))
	require.NoError(t, err)

	var out struct {
		Events []*store.Event `json:"events"`
	}
	unmarshalResult(t, result, &out)
	require.Len(t, out.Events, 1)
}

func TestRunsToolEventsRequireRunID(t *testing.T) {
	s := NewAtelierServer(AtelierServerDeps{Store: &mockStore{}})
	result, err := s.handleRuns(context.Background(), buildRequest("atelier.runs", map[string]any{
		"resource": "events",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestExtractInt(t *testing.T) {
	assert.Equal(t, 50, extractInt(nil, "limit", 50))
	assert.Equal(t, 10, extractInt(map[string]any{"limit": float64(10)}, "limit", 50))
	assert.Equal(t, 7, extractInt(map[string]any{"limit": "7"}, "limit", 50))
	assert.Equal(t, 50, extractInt(map[string]any{"limit": true}, "limit", 50))
}
