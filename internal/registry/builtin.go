package registry

import "github.com/atelier-studio/atelier/pkg/schema"

// Node kind identifiers. The evaluator dispatches on these tags.
const (
	KindSourceImage  = "source.image"
	KindSourcePrompt = "source.prompt"
	KindGroup        = "group"
	KindMacro        = "macro"
	KindGenerate     = "transform.generate"
	KindCanvas       = "output.canvas"
)

// Node categories.
const (
	CategorySource    = "source"
	CategoryLayout    = "layout"
	CategoryComposite = "composite"
	CategoryTransform = "transform"
	CategoryOutput    = "output"
)

// Builtin returns a registry populated with the built-in node kinds.
func Builtin() *Registry {
	r := NewRegistry()
	for _, def := range builtinDefinitions() {
		// Definitions are static; duplicates here are a programming error.
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}

func builtinDefinitions() []schema.NodeDefinition {
	generativeInputs := []schema.Port{
		{ID: schema.PortImage, Label: "Image", Type: schema.PortTypeImage},
		{ID: schema.PortReference, Label: "Reference", Type: schema.PortTypeImage},
		{ID: schema.PortMask, Label: "Mask", Type: schema.PortTypeImage},
		{ID: schema.PortPrompt, Label: "Prompt", Type: schema.PortTypeText},
	}

	return []schema.NodeDefinition{
		{
			Kind:     KindSourceImage,
			Label:    "Image",
			Category: CategorySource,
			Outputs: []schema.Port{
				{ID: schema.PortImage, Label: "Image", Type: schema.PortTypeImage},
			},
			DefaultParams: map[string]any{},
		},
		{
			Kind:     KindSourcePrompt,
			Label:    "Prompt",
			Category: CategorySource,
			Outputs: []schema.Port{
				{ID: schema.PortPrompt, Label: "Prompt", Type: schema.PortTypeText},
			},
			DefaultParams: map[string]any{schema.ParamPrompt: ""},
		},
		{
			Kind:     KindGroup,
			Label:    "Group",
			Category: CategoryLayout,
		},
		{
			// Macro ports are dynamic; the definition carries none.
			Kind:     KindMacro,
			Label:    "Macro",
			Category: CategoryComposite,
		},
		{
			Kind:     KindGenerate,
			Label:    "Generate",
			Category: CategoryTransform,
			Inputs:   generativeInputs,
			Outputs: []schema.Port{
				{ID: schema.PortOutput, Label: "Result", Type: schema.PortTypeImage},
			},
			DefaultParams: map[string]any{},
		},
		{
			Kind:     KindCanvas,
			Label:    "Canvas",
			Category: CategoryOutput,
			Inputs:   generativeInputs,
			Outputs: []schema.Port{
				{ID: schema.PortOutput, Label: "Result", Type: schema.PortTypeImage},
			},
			DefaultParams: map[string]any{},
		},
	}
}

// GenerativeSourceKinds is the allow-list of upstream kinds accepted on the
// primary image port of a generative node. Payloads arriving from any other
// kind are discarded as if the port were unconnected.
var GenerativeSourceKinds = map[string]bool{
	KindSourceImage: true,
	KindGenerate:    true,
	KindCanvas:      true,
	KindMacro:       true,
}
