// Package validation checks graph documents before execution: shape via
// JSON Schema Draft 2020-12, then structural rules the schema cannot
// express (reference integrity, port conflicts, macro wiring).
package validation

import "github.com/atelier-studio/atelier/pkg/schema"

// KindLookup answers whether a node kind is registered. Satisfied by
// registry.Registry.
type KindLookup interface {
	Has(kind string) bool
}

// Validator checks graph documents for correctness before execution.
type Validator interface {
	// ValidateGraph runs the full pipeline: schema shape, then structural
	// analysis. The result carries errors and warnings separately; the
	// engine itself tolerates cycles and unknown kinds, so those are
	// warnings, not errors.
	ValidateGraph(g *schema.Graph) *schema.ValidationResult
}
