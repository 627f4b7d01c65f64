package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/atelier-studio/atelier/pkg/schema"
)

// graphSchemaJSON is the JSON Schema for graph documents.
// Embedded as a constant to avoid filesystem dependencies.
const graphSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://atelier.studio/schemas/graph.json",
  "type": "object",
  "properties": {
    "nodes": {
      "type": "array",
      "items": { "$ref": "#/$defs/node" }
    },
    "edges": {
      "type": "array",
      "items": { "$ref": "#/$defs/edge" }
    }
  },
  "additionalProperties": false,
  "$defs": {
    "node": {
      "type": "object",
      "required": ["id", "kind"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "kind": { "type": "string", "minLength": 1 },
        "position": {
          "type": "object",
          "properties": {
            "x": { "type": "number" },
            "y": { "type": "number" }
          },
          "additionalProperties": false
        },
        "data": { "$ref": "#/$defs/nodeData" }
      },
      "additionalProperties": false
    },
    "nodeData": {
      "type": "object",
      "properties": {
        "params": { "type": "object" },
        "result": {},
        "error": { "type": "string" },
        "status": {
          "type": "string",
          "enum": ["idle", "processing", "completed", "error", "dirty", "pending_changes"]
        },
        "dynamicInputs": {
          "type": "array",
          "items": { "$ref": "#/$defs/port" }
        },
        "dynamicOutputs": {
          "type": "array",
          "items": { "$ref": "#/$defs/port" }
        },
        "subgraph": { "$ref": "#" }
      },
      "additionalProperties": false
    },
    "port": {
      "type": "object",
      "required": ["id"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "label": { "type": "string" },
        "type": {
          "type": "string",
          "enum": ["image", "text", "data", "any"]
        }
      },
      "additionalProperties": false
    },
    "edge": {
      "type": "object",
      "required": ["id", "source", "sourceHandle", "target", "targetHandle"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "source": { "type": "string", "minLength": 1 },
        "sourceHandle": { "type": "string", "minLength": 1 },
        "target": { "type": "string", "minLength": 1 },
        "targetHandle": { "type": "string", "minLength": 1 }
      },
      "additionalProperties": false
    }
  }
}`

// GraphValidator implements Validator using JSON Schema Draft 2020-12 for
// shape checks plus structural analysis. Safe for concurrent use.
type GraphValidator struct {
	graphSchema *jsonschema.Schema
	kinds       KindLookup
}

// NewGraphValidator compiles the embedded graph schema. kinds may be nil, in
// which case unknown-kind warnings are skipped.
func NewGraphValidator(kinds KindLookup) (*GraphValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(graphSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal graph schema: %w", err)
	}
	if err := c.AddResource("https://atelier.studio/schemas/graph.json", doc); err != nil {
		return nil, fmt.Errorf("add graph schema resource: %w", err)
	}
	compiled, err := c.Compile("https://atelier.studio/schemas/graph.json")
	if err != nil {
		return nil, fmt.Errorf("compile graph schema: %w", err)
	}

	return &GraphValidator{graphSchema: compiled, kinds: kinds}, nil
}

// ValidateGraph runs the shape check and, when it passes, the structural
// analysis.
func (v *GraphValidator) ValidateGraph(g *schema.Graph) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if g == nil {
		result.AddError("", schema.ErrCodeValidation, "graph is nil")
		return result
	}

	doc, err := toJSONValue(g)
	if err != nil {
		result.AddError("", schema.ErrCodeValidation, "failed to serialize graph: "+err.Error())
		return result
	}
	if err := v.graphSchema.Validate(doc); err != nil {
		for _, violation := range collectViolations(err) {
			result.AddError("", schema.ErrCodeValidation, violation)
		}
		return result
	}

	result.Merge(validateStructure(g, v.kinds))
	return result
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so the
// schema library sees json.Number and plain maps.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// collectViolations flattens a jsonschema validation error into messages.
func collectViolations(err error) []string {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}

	var out []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := "/"
			if len(e.InstanceLocation) > 0 {
				loc = "/" + strings.Join(e.InstanceLocation, "/")
			}
			out = append(out, fmt.Sprintf("%s: %s", loc, e.Error()))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)
	return out
}
