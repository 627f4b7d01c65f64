package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/atelier-studio/atelier/internal/diagram"
	"github.com/atelier-studio/atelier/internal/store"
	"github.com/atelier-studio/atelier/internal/warp"
	"github.com/atelier-studio/atelier/pkg/schema"
)

// nodeState is the per-node outcome returned by atelier.execute.
type nodeState struct {
	Status schema.NodeStatus `json:"status"`
	Result schema.Value      `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// handleExecute validates and runs a graph, streaming node status updates
// to the calling client and returning the final node states.
func (s *AtelierServer) handleExecute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, err := parseGraph(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	clientID := req.GetString("client_id", "")
	if clientID != "" {
		s.captureSession(ctx, clientID)
	}

	if req.GetString("skip_validation", "false") != "true" && s.validator != nil {
		if result := s.validator.ValidateGraph(g); !result.Valid() {
			return marshalResult(map[string]any{
				"executed": false,
				"errors":   result.Errors,
				"warnings": result.Warnings,
			})
		}
	}

	states := make(map[string]*nodeState)
	onStatus := func(nodeID string, status schema.NodeStatus, result schema.Value, errMsg string) {
		states[nodeID] = &nodeState{Status: status, Result: result, Error: errMsg}
		if clientID != "" {
			_ = s.notifier.Notify(ctx, clientID, map[string]any{
				"type":    "node_status",
				"node_id": nodeID,
				"status":  status,
				"error":   errMsg,
			})
		}
	}

	if execErr := s.executor.Execute(ctx, g.Nodes, g.Edges, onStatus); execErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("execution failed: %v", execErr)), nil
	}

	return marshalResult(map[string]any{
		"executed": true,
		"nodes":    states,
	})
}

// handleValidate checks a graph and returns its issues.
func (s *AtelierServer) handleValidate(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, err := parseGraph(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.validator == nil {
		return mcp.NewToolResultError("no validator configured"), nil
	}

	result := s.validator.ValidateGraph(g)
	return marshalResult(map[string]any{
		"valid":    result.Valid(),
		"errors":   result.Errors,
		"warnings": result.Warnings,
	})
}

// handleDiagram renders a graph in the requested format.
func (s *AtelierServer) handleDiagram(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}

	g, gErr := parseGraph(req)
	if gErr != nil {
		return mcp.NewToolResultError(gErr.Error()), nil
	}

	model := diagram.Build(req.GetString("title", ""), g)

	switch format {
	case "ascii":
		return mcp.NewToolResultText(diagram.RenderASCII(model)), nil
	case "mermaid":
		return mcp.NewToolResultText(diagram.RenderMermaid(model)), nil
	case "image":
		png, imgErr := diagram.RenderImage(model)
		if imgErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("image render failed: %v", imgErr)), nil
		}
		return mcp.NewToolResultText(base64.StdEncoding.EncodeToString(png)), nil
	default:
		return mcp.NewToolResultError("format must be ascii, mermaid, or image"), nil
	}
}

// handleDrag applies a thin plate spline warp to an image.
func (s *AtelierServer) handleDrag(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	img, err := req.RequireString("image")
	if err != nil {
		return mcp.NewToolResultError("image is required"), nil
	}

	raw, ok := req.GetArguments()["points"]
	if !ok {
		return mcp.NewToolResultError("points is required"), nil
	}
	var pairs []warp.DragPair
	if err := reparse(raw, &pairs); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid points: %v", err)), nil
	}

	warped, dragErr := warp.Drag(img, pairs)
	if dragErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("drag failed: %v", dragErr)), nil
	}
	return marshalResult(map[string]any{"image": warped})
}

// handleDetect returns draggable landmarks for an image.
func (s *AtelierServer) handleDetect(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	img, err := req.RequireString("image")
	if err != nil {
		return mcp.NewToolResultError("image is required"), nil
	}

	points, detectErr := warp.Detect(img)
	if detectErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("detect failed: %v", detectErr)), nil
	}
	return marshalResult(map[string]any{"points": points})
}

// handleSchedule manages recurring graph executions.
func (s *AtelierServer) handleSchedule(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action, err := req.RequireString("action")
	if err != nil {
		return mcp.NewToolResultError("action is required"), nil
	}
	if s.scheduler == nil {
		return mcp.NewToolResultError("no scheduler configured"), nil
	}

	switch action {
	case "register":
		cronExpr := req.GetString("cron", "")
		if cronExpr == "" {
			return mcp.NewToolResultError("cron is required for register"), nil
		}
		g, gErr := parseGraph(req)
		if gErr != nil {
			return mcp.NewToolResultError(gErr.Error()), nil
		}
		jobID, regErr := s.scheduler.Register(req.GetString("label", ""), cronExpr, g)
		if regErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("register failed: %v", regErr)), nil
		}
		return marshalResult(map[string]any{"job_id": jobID})

	case "unregister":
		jobID, idErr := req.RequireString("job_id")
		if idErr != nil {
			return mcp.NewToolResultError("job_id is required for unregister"), nil
		}
		s.scheduler.Unregister(jobID)
		return marshalResult(map[string]any{"ok": true})

	case "pause", "resume":
		jobID, idErr := req.RequireString("job_id")
		if idErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("job_id is required for %s", action)), nil
		}
		if setErr := s.scheduler.SetEnabled(jobID, action == "resume"); setErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", action, setErr)), nil
		}
		return marshalResult(map[string]any{"ok": true})

	case "list":
		return marshalResult(map[string]any{"jobs": s.scheduler.Jobs()})

	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown action: %s", action)), nil
	}
}

// handleRuns queries execution history.
func (s *AtelierServer) handleRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resource, err := req.RequireString("resource")
	if err != nil {
		return mcp.NewToolResultError("resource is required"), nil
	}
	if s.store == nil {
		return mcp.NewToolResultError("no store configured"), nil
	}

	switch resource {
	case "runs":
		filter := mcp.ParseStringMap(req, "filter", nil)
		rf := store.RunFilter{Limit: extractInt(filter, "limit", 50)}
		if status, ok := filter["status"].(string); ok {
			rf.Status = status
		}
		if label, ok := filter["label"].(string); ok {
			rf.Label = label
		}
		runs, listErr := s.store.ListRuns(ctx, rf)
		if listErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", listErr)), nil
		}
		return marshalResult(map[string]any{"runs": runs})

	case "events":
		runID, idErr := req.RequireString("run_id")
		if idErr != nil {
			return mcp.NewToolResultError("run_id is required for events"), nil
		}
		events, evErr := s.store.GetEvents(ctx, runID, 0)
		if evErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", evErr)), nil
		}
		return marshalResult(map[string]any{"events": events})

	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown resource type: %s", resource)), nil
	}
}

// --- Internal helpers ---

// parseGraph extracts the "graph" argument into a schema.Graph.
func parseGraph(req mcp.CallToolRequest) (*schema.Graph, error) {
	raw := mcp.ParseStringMap(req, "graph", nil)
	if raw == nil {
		return nil, fmt.Errorf("graph is required")
	}
	var g schema.Graph
	if err := reparse(raw, &g); err != nil {
		return nil, fmt.Errorf("invalid graph: %v", err)
	}
	return &g, nil
}

// reparse round-trips a decoded JSON value into a typed destination.
func reparse(src any, dst any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// extractInt safely extracts an integer from a filter map.
func extractInt(filter map[string]any, key string, defaultVal int) int {
	if filter == nil {
		return defaultVal
	}
	v, ok := filter[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
