// Package mcp exposes the graph engine to agents over the Model Context
// Protocol: execute and validate graphs, render diagrams, drag-warp images
// and manage scheduled re-runs.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/atelier-studio/atelier/internal/engine"
	"github.com/atelier-studio/atelier/internal/scheduler"
	"github.com/atelier-studio/atelier/internal/store"
	"github.com/atelier-studio/atelier/pkg/schema"
)

// GraphExecutor runs a graph snapshot. Satisfied by engine.Engine.
type GraphExecutor interface {
	Execute(ctx context.Context, nodes []schema.Node, edges []schema.Edge, onStatus engine.StatusCallback) error
}

// GraphValidator checks a graph document. Satisfied by validation.GraphValidator.
type GraphValidator interface {
	ValidateGraph(g *schema.Graph) *schema.ValidationResult
}

// JobScheduler manages cron re-execution jobs. Satisfied by scheduler.Scheduler.
type JobScheduler interface {
	Register(label, cronExpr string, g *schema.Graph) (string, error)
	Unregister(jobID string)
	SetEnabled(jobID string, enabled bool) error
	Jobs() []scheduler.Job
}

// AtelierServerDeps holds the dependencies for creating an AtelierServer.
type AtelierServerDeps struct {
	Executor  GraphExecutor
	Validator GraphValidator
	Store     store.Store
	Scheduler JobScheduler
	Logger    *slog.Logger
}

// AtelierServer wraps an MCP server with atelier-specific tool handlers.
type AtelierServer struct {
	executor  GraphExecutor
	validator GraphValidator
	store     store.Store
	scheduler JobScheduler
	logger    *slog.Logger
	sessions  *SessionRegistry
	notifier  *ClientNotifier
	mcpServer *server.MCPServer
}

// NewAtelierServer creates a new AtelierServer with all tools registered.
func NewAtelierServer(deps AtelierServerDeps) *AtelierServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &AtelierServer{
		executor:  deps.Executor,
		validator: deps.Validator,
		store:     deps.Store,
		scheduler: deps.Scheduler,
		logger:    logger,
		sessions:  NewSessionRegistry(),
	}

	mcpSrv := server.NewMCPServer(
		"atelier",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Atelier executes node graphs for generative image editing. Use atelier.execute to run a graph, atelier.validate to check one, atelier.diagram to visualize it, atelier.drag to warp an image by dragging points, atelier.detect to find drag handles, atelier.schedule to manage recurring runs, and atelier.runs to inspect execution history."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	s.notifier = NewClientNotifier(mcpSrv, s.sessions)
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *AtelierServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *AtelierServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *AtelierServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: executeTool(), Handler: s.handleExecute},
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: diagramTool(), Handler: s.handleDiagram},
		{Tool: dragTool(), Handler: s.handleDrag},
		{Tool: detectTool(), Handler: s.handleDetect},
		{Tool: scheduleTool(), Handler: s.handleSchedule},
		{Tool: runsTool(), Handler: s.handleRuns},
	}
}

// --- Tool definitions ---

func executeTool() mcp.Tool {
	return mcp.NewTool("atelier.execute",
		mcp.WithDescription("Execute a node graph and return the resulting node states"),
		mcp.WithObject("graph", mcp.Required(), mcp.Description("Graph document with nodes and edges")),
		mcp.WithString("client_id", mcp.Description("ID of the calling client, used for status push notifications")),
		mcp.WithString("skip_validation", mcp.Description("Skip validation before executing (default: false)")),
	)
}

func validateTool() mcp.Tool {
	return mcp.NewTool("atelier.validate",
		mcp.WithDescription("Validate a node graph without executing it"),
		mcp.WithObject("graph", mcp.Required(), mcp.Description("Graph document with nodes and edges")),
	)
}

func diagramTool() mcp.Tool {
	return mcp.NewTool("atelier.diagram",
		mcp.WithDescription("Render a node graph as a diagram. Returns ASCII art, Mermaid flowchart syntax, or base64-encoded PNG image"),
		mcp.WithObject("graph", mcp.Required(), mcp.Description("Graph document with nodes and edges")),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum("ascii", "mermaid", "image"),
			mcp.Description("Output format: ascii (text), mermaid (flowchart syntax), or image (base64 PNG)"),
		),
		mcp.WithString("title", mcp.Description("Diagram title")),
	)
}

func dragTool() mcp.Tool {
	return mcp.NewTool("atelier.drag",
		mcp.WithDescription("Warp an image by dragging handle points to target positions. Returns the warped image as a PNG data URL"),
		mcp.WithString("image", mcp.Required(), mcp.Description("Image as a base64 data URL")),
		mcp.WithArray("points", mcp.Required(), mcp.Description("Point pairs: [{handle: {x, y}, target: {x, y}}, ...]")),
	)
}

func detectTool() mcp.Tool {
	return mcp.NewTool("atelier.detect",
		mcp.WithDescription("Detect draggable landmark points on an image"),
		mcp.WithString("image", mcp.Required(), mcp.Description("Image as a base64 data URL")),
	)
}

func scheduleTool() mcp.Tool {
	return mcp.NewTool("atelier.schedule",
		mcp.WithDescription("Manage recurring graph executions"),
		mcp.WithString("action", mcp.Required(),
			mcp.Enum("register", "unregister", "pause", "resume", "list"),
			mcp.Description("Schedule operation"),
		),
		mcp.WithString("job_id", mcp.Description("Job ID (for unregister, pause, resume)")),
		mcp.WithString("label", mcp.Description("Job label (for register)")),
		mcp.WithString("cron", mcp.Description("Cron expression, five fields (for register)")),
		mcp.WithObject("graph", mcp.Description("Graph document to snapshot (for register)")),
	)
}

func runsTool() mcp.Tool {
	return mcp.NewTool("atelier.runs",
		mcp.WithDescription("Query execution history: runs or the per-run event log"),
		mcp.WithString("resource", mcp.Required(),
			mcp.Enum("runs", "events"),
			mcp.Description("Type of resource to query"),
		),
		mcp.WithString("run_id", mcp.Description("Run ID (required for events)")),
		mcp.WithObject("filter", mcp.Description("Run filter criteria (status, label, limit)")),
	)
}
