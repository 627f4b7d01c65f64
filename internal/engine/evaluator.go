package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/atelier-studio/atelier/internal/prompt"
	"github.com/atelier-studio/atelier/internal/registry"
	"github.com/atelier-studio/atelier/pkg/generate"
	"github.com/atelier-studio/atelier/pkg/schema"
)

// Default instructions used when a generative node has no prompt wired.
// The choice depends on which image inputs are present.
const (
	instructionEnhance          = "Enhance the primary image."
	instructionEnhanceWithRef   = "Enhance the primary image using the reference image."
	instructionGenerateFromRef  = "Generate a new image based on the reference image."
	instructionGenerateFromText = "Generate an image."
)

// outcome is the result of dispatching one node. outputs are published to
// the Result Store regardless of status; skipped means the node's status is
// left wherever the dispatch moved it (including mid-processing).
type outcome struct {
	outputs map[string]schema.Value
	status  schema.NodeStatus
	result  schema.Value
	errMsg  string
	skipped bool
}

func skippedOutcome() outcome {
	return outcome{skipped: true}
}

// evaluateNode dispatches a node by kind. begin must be called before any
// potentially slow work; it moves the node to processing exactly once.
func (e *Engine) evaluateNode(ctx context.Context, ec *evalContext, node *schema.Node, begin func()) outcome {
	switch node.Kind {
	case registry.KindSourceImage:
		return e.evaluateLiteral(node, schema.PortImage, begin)
	case registry.KindSourcePrompt:
		return e.evaluateLiteral(node, schema.PortPrompt, begin)
	case registry.KindMacro:
		return e.evaluateMacro(ctx, ec, node, begin)
	case registry.KindGenerate:
		return e.evaluateGenerative(ctx, ec, node, begin, false)
	case registry.KindCanvas:
		return e.evaluateGenerative(ctx, ec, node, begin, true)
	default:
		// Unknown kinds are tolerated: the editor may carry nodes this
		// build does not implement.
		e.logger.WarnContext(ctx, "unknown node kind skipped", slog.String("kind", node.Kind))
		return skippedOutcome()
	}
}

// evaluateLiteral completes a source node whose value was seeded from its
// params. A source without a value stays idle.
func (e *Engine) evaluateLiteral(node *schema.Node, portID string, begin func()) outcome {
	v, ok := e.resultOf(node, portID)
	if !ok {
		return outcome{status: schema.StatusIdle}
	}
	begin()
	return outcome{
		outputs: map[string]schema.Value{portID: v},
		status:  schema.StatusCompleted,
		result:  v,
	}
}

// resultOf is a thin helper so literal evaluation does not depend on the
// seeding pass having run: it checks params directly.
func (e *Engine) resultOf(node *schema.Node, portID string) (schema.Value, bool) {
	v, ok := node.Data.Params[portID]
	if !ok || v == nil || v == "" {
		return nil, false
	}
	return v, true
}

// evaluateGenerative handles transform and canvas nodes. Canvas nodes
// (sink=true) degrade to passthrough or cached display when no generative
// inputs are wired.
func (e *Engine) evaluateGenerative(ctx context.Context, ec *evalContext, node *schema.Node, begin func(), sink bool) outcome {
	primary, hasPrimary := ec.resolvePrimary(node)
	secondary, hasSecondary := ec.resolveInput(node, schema.PortReference)
	mask, _ := ec.resolveInput(node, schema.PortMask)
	promptVal, hasPrompt := ec.resolveInput(node, schema.PortPrompt)

	if sink {
		// A canvas only generates when something beyond the primary image
		// is wired; otherwise it displays what it is given.
		if !ec.hasEdge(node.ID, schema.PortReference) &&
			!ec.hasEdge(node.ID, schema.PortMask) &&
			!ec.hasEdge(node.ID, schema.PortPrompt) {
			return e.displayOnCanvas(node, primary, hasPrimary, begin)
		}
	}

	if !hasPrimary && !hasSecondary && !hasPrompt {
		return outcome{status: schema.StatusIdle}
	}

	begin()

	instruction := e.buildInstruction(ctx, ec, node, promptVal, hasPrimary, hasSecondary)
	config := e.buildConfig(ec, node)
	maps := e.buildMaps(ctx, node, config)

	value, err := e.generator.Generate(ctx, generate.Request{
		Primary:     primary,
		Secondary:   secondary,
		Mask:        mask,
		Instruction: instruction,
		Config:      config,
		Maps:        maps,
	})
	if err != nil {
		// The backend's message is surfaced verbatim on the node.
		return outcome{status: schema.StatusError, errMsg: err.Error()}
	}

	outputs := make(map[string]schema.Value)
	for _, port := range outputPorts(e.reg, node) {
		outputs[port.ID] = value
	}
	return outcome{outputs: outputs, status: schema.StatusCompleted, result: value}
}

// displayOnCanvas is the non-generative canvas path: pass the primary image
// through, fall back to the previously completed result, or stay in
// processing when there is nothing to show yet.
func (e *Engine) displayOnCanvas(node *schema.Node, primary schema.Value, hasPrimary bool, begin func()) outcome {
	if hasPrimary {
		begin()
		return outcome{
			outputs: map[string]schema.Value{schema.PortOutput: primary},
			status:  schema.StatusCompleted,
			result:  primary,
		}
	}
	if node.Data.Result != nil {
		begin()
		return outcome{
			outputs: map[string]schema.Value{schema.PortOutput: node.Data.Result},
			status:  schema.StatusCompleted,
			result:  node.Data.Result,
		}
	}
	// Wired but upstream produced nothing: the canvas stays in processing
	// until a later run feeds it.
	begin()
	return skippedOutcome()
}

// buildInstruction resolves the effective prompt text: the wired prompt if
// present (with ${{...}} interpolation), else a default derived from which
// image inputs exist.
func (e *Engine) buildInstruction(ctx context.Context, ec *evalContext, node *schema.Node,
	promptVal schema.Value, hasPrimary, hasSecondary bool) string {

	if s, ok := promptVal.(string); ok && s != "" {
		if !strings.Contains(s, "${{") {
			return s
		}
		resolved, err := e.interp.Resolve(s, prompt.Scope{
			Params:   node.Data.Params,
			Upstream: ec.upstreamParams(node),
		})
		if err != nil {
			// A broken expression degrades to the raw text rather than
			// failing the node.
			e.logger.WarnContext(ctx, "prompt interpolation failed", slog.String("error", err.Error()))
			return s
		}
		return resolved
	}

	switch {
	case hasPrimary && hasSecondary:
		return instructionEnhanceWithRef
	case hasSecondary:
		return instructionGenerateFromRef
	case hasPrimary:
		return instructionEnhance
	default:
		return instructionGenerateFromText
	}
}

// buildConfig assembles the generation config: the node's own params minus
// payload keys, with light/camera resolved through single-hop inheritance.
func (e *Engine) buildConfig(ec *evalContext, node *schema.Node) map[string]any {
	config := make(map[string]any)
	for k, v := range node.Data.Params {
		switch k {
		case schema.ParamImage, schema.ParamPrompt, schema.ParamMaps:
			continue
		}
		config[k] = v
	}
	if light := ec.resolveInherited(node, schema.ParamLight); light != nil {
		config[schema.ParamLight] = light
	}
	if camera := ec.resolveInherited(node, schema.ParamCamera); camera != nil {
		config[schema.ParamCamera] = camera
	}
	return config
}

// buildMaps picks pre-supplied structural maps off the params, or
// synthesizes them from light/camera. Synthesis failure degrades to no maps.
func (e *Engine) buildMaps(ctx context.Context, node *schema.Node, config map[string]any) *generate.MapSet {
	if m := mapSetFromParam(node.Data.Params[schema.ParamMaps]); m != nil {
		return m
	}

	light, camera := config[schema.ParamLight], config[schema.ParamCamera]
	if light == nil && camera == nil {
		return nil
	}
	maps, err := e.synthesize(light, camera)
	if err != nil {
		e.logger.WarnContext(ctx, "guidance synthesis failed", slog.String("error", err.Error()))
		return nil
	}
	return maps
}

func mapSetFromParam(v any) *generate.MapSet {
	switch t := v.(type) {
	case *generate.MapSet:
		return t
	case generate.MapSet:
		return &t
	case map[string]any:
		m := &generate.MapSet{Shadow: t["shadow"], Normal: t["normal"], Depth: t["depth"]}
		if m.Shadow == nil && m.Normal == nil && m.Depth == nil {
			return nil
		}
		return m
	default:
		return nil
	}
}

// resolvePrimary resolves the primary image port, accepting payloads only
// from generative-capable upstream kinds. A connection from any other kind
// behaves as if the port were unconnected.
func (ec *evalContext) resolvePrimary(node *schema.Node) (schema.Value, bool) {
	edge := ec.findIncomingEdge(node.ID, schema.PortImage)
	if edge == nil {
		if v, ok := node.Data.Params[schema.ParamImage]; ok && v != nil && v != "" {
			return v, true
		}
		return nil, false
	}
	upstream, ok := ec.byID[edge.Source]
	if !ok || !registry.GenerativeSourceKinds[upstream.Kind] {
		return nil, false
	}
	v, ok := ec.results.Get(edge.Source, edge.SourceHandle)
	return v, ok && v != nil
}

// resolveInput resolves an input port's value: the first matching edge wins
// even when its upstream value is absent; unconnected ports fall back to a
// same-named param (macro injection and direct uploads land there).
func (ec *evalContext) resolveInput(node *schema.Node, portID string) (schema.Value, bool) {
	edge := ec.findIncomingEdge(node.ID, portID)
	if edge == nil {
		if v, ok := node.Data.Params[portID]; ok && v != nil && v != "" {
			return v, true
		}
		return nil, false
	}
	v, ok := ec.results.Get(edge.Source, edge.SourceHandle)
	return v, ok && v != nil
}

// findIncomingEdge returns the first edge targeting the given port, in
// document order.
func (ec *evalContext) findIncomingEdge(nodeID, portID string) *schema.Edge {
	for i := range ec.edges {
		if ec.edges[i].Target == nodeID && ec.edges[i].TargetHandle == portID {
			return &ec.edges[i]
		}
	}
	return nil
}

// hasEdge reports whether any edge targets the given port.
func (ec *evalContext) hasEdge(nodeID, portID string) bool {
	return ec.findIncomingEdge(nodeID, portID) != nil
}
