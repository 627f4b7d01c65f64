// Package engine evaluates node graphs: it orders nodes by dependency,
// seeds the Result Store from literals and cached results, dispatches each
// node by kind and reports status transitions back to the caller.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/atelier-studio/atelier/internal/guidance"
	"github.com/atelier-studio/atelier/internal/logging"
	"github.com/atelier-studio/atelier/internal/prompt"
	"github.com/atelier-studio/atelier/internal/registry"
	"github.com/atelier-studio/atelier/internal/store"
	"github.com/atelier-studio/atelier/pkg/generate"
	"github.com/atelier-studio/atelier/pkg/schema"
)

// StatusCallback receives every externally visible node status change during
// an execution. result and errMsg accompany completed and error statuses
// respectively, and are zero otherwise. Macro-internal transitions are not
// reported.
type StatusCallback func(nodeID string, status schema.NodeStatus, result schema.Value, errMsg string)

// SynthesizeFunc produces guidance maps from raw light/camera param values.
type SynthesizeFunc func(light, camera any) (*generate.MapSet, error)

// Config assembles an Engine.
type Config struct {
	Registry  *registry.Registry
	Generator generate.Generator
	// Events receives execution events; nil means no event log.
	Events EventAppender
	// Runs records run lifecycle rows; nil means no run history.
	Runs   RunRecorder
	Logger *slog.Logger
	// Synthesize overrides guidance map synthesis, mainly for tests.
	Synthesize SynthesizeFunc
}

// Engine executes graph snapshots. Safe for concurrent use: all mutable
// state lives in the per-execution Result Store.
type Engine struct {
	reg        *registry.Registry
	generator  generate.Generator
	events     EventAppender
	runs       RunRecorder
	logger     *slog.Logger
	synthesize SynthesizeFunc
	interp     *prompt.Interpolator
}

// New creates an Engine from the config, applying defaults for optional
// collaborators.
func New(cfg Config) *Engine {
	e := &Engine{
		reg:        cfg.Registry,
		generator:  cfg.Generator,
		events:     cfg.Events,
		runs:       cfg.Runs,
		logger:     cfg.Logger,
		synthesize: cfg.Synthesize,
		interp:     prompt.New(),
	}
	if e.reg == nil {
		e.reg = registry.Builtin()
	}
	if e.events == nil {
		e.events = NoopAppender{}
	}
	if e.runs == nil {
		e.runs = NoopRecorder{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.synthesize == nil {
		e.synthesize = guidance.Synthesize
	}
	return e
}

// Execute evaluates a graph snapshot. Nodes are mutated in place (status,
// result, error) and every change is also reported through onStatus. The
// returned error covers infrastructure failures only; individual node
// failures are recorded on the nodes and do not stop the run.
func (e *Engine) Execute(ctx context.Context, nodes []schema.Node, edges []schema.Edge, onStatus StatusCallback) error {
	runID := uuid.New().String()
	ctx = logging.WithRunID(ctx, runID)
	e.logger.InfoContext(ctx, "execution started",
		slog.Int("nodes", len(nodes)), slog.Int("edges", len(edges)))

	if err := e.runs.CreateRun(ctx, &store.Run{
		ID:        runID,
		Status:    store.RunStatusRunning,
		NodeCount: len(nodes),
		EdgeCount: len(edges),
		StartedAt: time.Now().UTC(),
	}); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "record run: %s", err.Error()).WithCause(err)
	}
	if err := e.events.AppendEvent(ctx, &store.Event{RunID: runID, Type: schema.EventRunStarted}); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "record run start: %s", err.Error()).WithCause(err)
	}

	runErr := e.run(ctx, runID, nodes, edges, onStatus, NewResults(), nil, e.events)

	// Node failures do not fail the run; only infrastructure errors do.
	runStatus, runErrMsg := store.RunStatusCompleted, ""
	if runErr != nil {
		runStatus, runErrMsg = store.RunStatusFailed, runErr.Error()
	}
	if err := e.events.AppendEvent(ctx, &store.Event{RunID: runID, Type: schema.EventRunCompleted}); err != nil {
		e.logger.WarnContext(ctx, "record run completion failed", slog.String("error", err.Error()))
	}
	if err := e.runs.CompleteRun(ctx, runID, runStatus, runErrMsg); err != nil {
		e.logger.WarnContext(ctx, "record run outcome failed", slog.String("error", err.Error()))
	}
	e.logger.InfoContext(ctx, "execution finished")
	return runErr
}

// run is the core evaluation loop, shared by top-level executions and macro
// sub-executions (which pass their own Results, seed and a NoopAppender).
func (e *Engine) run(ctx context.Context, runID string, nodes []schema.Node, edges []schema.Edge,
	onStatus StatusCallback, results *Results, seedVals map[string]schema.Value, events EventAppender) error {

	byID := make(map[string]*schema.Node, len(nodes))
	for i := range nodes {
		byID[nodes[i].ID] = &nodes[i]
	}

	skip := results.seed(e.reg, nodes)
	results.merge(seedVals)

	ec := &evalContext{
		runID:   runID,
		edges:   edges,
		byID:    byID,
		results: results,
		events:  events,
	}

	for _, ordered := range Order(nodes, edges) {
		if err := ctx.Err(); err != nil {
			return err
		}

		node := byID[ordered.ID]
		if node.Kind == registry.KindGroup {
			// Groups are visual containers with no computation.
			continue
		}
		if skip[node.ID] {
			// Completed with a cached result; seed already published it.
			continue
		}

		e.evaluate(ctx, ec, node, onStatus)
	}

	return nil
}

// evaluate runs a single node's dispatch and applies its outcome: outputs
// into the Result Store, status/result/error onto the node and out through
// the callback.
func (e *Engine) evaluate(ctx context.Context, ec *evalContext, node *schema.Node, onStatus StatusCallback) {
	nctx := logging.WithNodeID(ctx, node.ID)

	began := false
	begin := func() {
		if began {
			return
		}
		began = true
		e.setStatus(nctx, ec, node, schema.StatusProcessing, nil, "", onStatus)
	}

	out := e.evaluateNode(nctx, ec, node, begin)

	for portID, v := range out.outputs {
		ec.results.Set(node.ID, portID, v)
	}
	if out.skipped {
		return
	}
	e.setStatus(nctx, ec, node, out.status, out.result, out.errMsg, onStatus)
}

// setStatus validates and applies a node status change. Invalid transitions
// indicate a dispatch defect; they are logged and dropped rather than
// aborting the run.
func (e *Engine) setStatus(ctx context.Context, ec *evalContext, node *schema.Node,
	to schema.NodeStatus, result schema.Value, errMsg string, onStatus StatusCallback) {

	from := node.Data.Status
	if from == "" {
		from = schema.StatusIdle
	}
	if from == to && to != schema.StatusCompleted {
		return
	}
	if err := transition(ctx, ec.events, ec.runID, node.ID, from, to); err != nil {
		e.logger.WarnContext(ctx, "status transition rejected",
			slog.String("from", string(from)), slog.String("to", string(to)),
			slog.String("error", err.Error()))
		return
	}

	node.Data.Status = to
	switch to {
	case schema.StatusCompleted:
		node.Data.Result = result
		node.Data.Error = ""
	case schema.StatusError:
		node.Data.Error = errMsg
	case schema.StatusProcessing:
		node.Data.Error = ""
	}

	if onStatus != nil {
		onStatus(node.ID, to, result, errMsg)
	}
}

// evalContext carries the per-execution collaborators through dispatch.
type evalContext struct {
	runID   string
	edges   []schema.Edge
	byID    map[string]*schema.Node
	results *Results
	events  EventAppender
}
