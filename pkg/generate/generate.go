// Package generate defines the contract of the external generative-image
// collaborator and a default HTTP-backed implementation.
package generate

import (
	"context"

	"github.com/atelier-studio/atelier/pkg/schema"
)

// MapSet carries the synthesized structural guidance images conditioning a
// generative call.
type MapSet struct {
	Shadow schema.Value `json:"shadow,omitempty"`
	Normal schema.Value `json:"normal,omitempty"`
	Depth  schema.Value `json:"depth,omitempty"`
}

// Request is the resolved input of one generative call.
type Request struct {
	// Primary is the main image to transform, nil when absent.
	Primary schema.Value `json:"primary,omitempty"`
	// Secondary is an optional reference image.
	Secondary schema.Value `json:"secondary,omitempty"`
	// Instruction is the text prompt, never empty (the evaluator resolves a
	// default when no prompt is connected).
	Instruction string `json:"instruction"`
	// Config is the merged node configuration, including inherited
	// light/camera directives.
	Config map[string]any `json:"config,omitempty"`
	// Mask restricts the transform to a painted region, nil when absent.
	Mask schema.Value `json:"mask,omitempty"`
	// Maps are the structural guidance images, nil when not synthesized.
	Maps *MapSet `json:"structuralMaps,omitempty"`
}

// Generator is the async generative collaborator. Implementations must
// either return an image-like value or an error whose message is surfaced
// verbatim as the node's error text.
type Generator interface {
	Generate(ctx context.Context, req Request) (schema.Value, error)
}

// Func adapts a plain function to the Generator interface.
type Func func(ctx context.Context, req Request) (schema.Value, error)

func (f Func) Generate(ctx context.Context, req Request) (schema.Value, error) {
	return f(ctx, req)
}
