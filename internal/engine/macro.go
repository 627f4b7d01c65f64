package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/atelier-studio/atelier/pkg/schema"
)

// macroPortSeparator joins an inner node ID and an inner port ID into a
// macro-facing port ID, e.g. "blur-1__image".
const macroPortSeparator = "__"

// splitMacroPort splits a macro port ID into the inner node and port it
// forwards to. Port IDs without a separator map to no inner node.
func splitMacroPort(portID string) (nodeID, innerPort string) {
	idx := strings.LastIndex(portID, macroPortSeparator)
	if idx < 0 {
		return "", portID
	}
	return portID[:idx], portID[idx+len(macroPortSeparator):]
}

// evaluateMacro executes a macro node's embedded subgraph in isolation: a
// deep copy of the subgraph, a private Result Store, no status reporting and
// no event log. External input values are injected as params on the inner
// nodes named by the macro's dynamic input ports; outputs are lifted from
// the inner Result Store.
func (e *Engine) evaluateMacro(ctx context.Context, ec *evalContext, node *schema.Node, begin func()) outcome {
	if node.Data.Subgraph == nil || len(node.Data.Subgraph.Nodes) == 0 {
		return outcome{status: schema.StatusIdle}
	}

	begin()

	// The document's embedded definition must never be mutated.
	sub := node.Data.Subgraph.Clone()
	innerByID := make(map[string]*schema.Node, len(sub.Nodes))
	for i := range sub.Nodes {
		innerByID[sub.Nodes[i].ID] = &sub.Nodes[i]
	}

	for _, port := range node.Data.DynamicInputs {
		v, ok := ec.resolveInput(node, port.ID)
		if !ok {
			continue
		}
		innerID, innerPort := splitMacroPort(port.ID)
		inner, found := innerByID[innerID]
		if !found {
			e.logger.WarnContext(ctx, "macro input names unknown inner node",
				slog.String("port", port.ID))
			continue
		}
		if inner.Data.Params == nil {
			inner.Data.Params = make(map[string]any)
		}
		inner.Data.Params[innerPort] = v
		// Injected values supersede whatever the subgraph last computed.
		inner.Data.Status = schema.StatusIdle
		inner.Data.Result = nil
	}

	innerResults := NewResults()
	if err := e.run(ctx, ec.runID, sub.Nodes, sub.Edges, nil, innerResults, nil, NoopAppender{}); err != nil {
		return outcome{status: schema.StatusError, errMsg: err.Error()}
	}

	outputs := make(map[string]schema.Value)
	var last schema.Value
	for _, port := range node.Data.DynamicOutputs {
		innerID, innerPort := splitMacroPort(port.ID)
		v, ok := innerResults.Get(innerID, innerPort)
		if !ok {
			if inner, found := innerByID[innerID]; found && inner.Data.Result != nil {
				v, ok = inner.Data.Result, true
			}
		}
		if !ok {
			continue
		}
		outputs[port.ID] = v
		last = v
	}

	// Any inner node ending in error fails the macro as a whole.
	for i := range sub.Nodes {
		if sub.Nodes[i].Data.Status == schema.StatusError {
			return outcome{
				outputs: outputs,
				status:  schema.StatusError,
				errMsg:  sub.Nodes[i].Data.Error,
			}
		}
	}

	return outcome{outputs: outputs, status: schema.StatusCompleted, result: last}
}
