// Package prompt resolves ${{...}} expressions embedded in prompt text,
// letting prompts reference the parameters of the node itself and of the
// node feeding its primary input.
package prompt

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/atelier-studio/atelier/pkg/schema"
)

// Scope holds the data available to prompt expressions.
type Scope struct {
	// Params are the prompt-bearing node's own params.
	Params map[string]any
	// Upstream are the params of the node feeding the primary input port.
	Upstream map[string]any
}

// Interpolator resolves ${{...}} references in prompt text. Expressions are
// evaluated with expr against the scope, e.g. ${{ params.style }} or
// ${{ upstream.subject }}.
type Interpolator struct{}

// New creates an Interpolator.
func New() *Interpolator {
	return &Interpolator{}
}

// Resolve scans the text for ${{...}} tokens and replaces each with the
// evaluated expression result. Text without markers is returned unchanged.
func (interp *Interpolator) Resolve(text string, scope Scope) (string, error) {
	if !strings.Contains(text, "${{") {
		return text, nil
	}

	env := map[string]any{
		"params":   orEmpty(scope.Params),
		"upstream": orEmpty(scope.Upstream),
	}

	var result strings.Builder
	result.Grow(len(text))

	i := 0
	for i < len(text) {
		idx := strings.Index(text[i:], "${{")
		if idx == -1 {
			result.WriteString(text[i:])
			break
		}

		result.WriteString(text[i : i+idx])
		start := i + idx + 3 // skip "${{"

		end := strings.Index(text[start:], "}}")
		if end == -1 {
			return "", schema.NewError(schema.ErrCodeInterpolation, "unclosed ${{ expression")
		}
		end += start

		expression := strings.TrimSpace(text[start:end])
		if expression == "" {
			return "", schema.NewError(schema.ErrCodeInterpolation, "empty ${{ expression")
		}

		value, err := expr.Eval(expression, env)
		if err != nil {
			return "", schema.NewErrorf(schema.ErrCodeInterpolation,
				"evaluate %q: %s", expression, err.Error()).WithCause(err)
		}

		result.WriteString(stringify(value))
		i = end + 2 // skip "}}"
	}

	return result.String(), nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
