// Package condition evaluates node execution conditions.
//
// Conditions are boolean expressions in HCL expression syntax, evaluated
// against a closed set of context variables exposed under the "ctx"
// namespace:
//
//	ctx.flag == true
//	ctx.build.artifact_count > 0 && ctx.env != "prod"
//
// The evaluation context contains only the variables the scheduler exposes:
// global context keys and committed dependency outputs. No functions are
// registered and no host environment is reachable, so a condition can compare
// and combine values but never execute arbitrary code.
package condition

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// EvalError reports a condition that could not be parsed or evaluated, e.g.
// a syntax error, a reference to an absent variable, or a non-boolean result.
type EvalError struct {
	Expr   string
	Detail string
}

func (e *EvalError) Error() string {
	return "condition " + e.Expr + ": " + e.Detail
}

// Evaluate parses expr and evaluates it against the given variables, which
// become the fields of the "ctx" object. Returns the boolean result.
//
// Returns an *EvalError if the expression does not parse, references a
// variable outside the exposed set, calls a function, or does not produce a
// boolean.
func Evaluate(expr string, vars map[string]cty.Value) (bool, error) {
	parsed, diags := hclsyntax.ParseExpression([]byte(expr), "condition", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return false, &EvalError{Expr: expr, Detail: diags.Error()}
	}

	if vars == nil {
		vars = map[string]cty.Value{}
	}
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"ctx": cty.ObjectVal(vars),
		},
		// No Functions: function calls fail evaluation by construction.
	}

	val, diags := parsed.Value(evalCtx)
	if diags.HasErrors() {
		return false, &EvalError{Expr: expr, Detail: diags.Error()}
	}
	if val.IsNull() {
		return false, &EvalError{Expr: expr, Detail: "expression produced null"}
	}
	if !val.Type().Equals(cty.Bool) {
		return false, &EvalError{Expr: expr, Detail: fmt.Sprintf("expression produced %s, want bool", val.Type().FriendlyName())}
	}
	return val.True(), nil
}

// Variables converts the scheduler's view of the run context into cty values.
//
// Global keys appear directly (ctx.key); each dependency's committed output
// appears as a nested object under the dependency's node ID (ctx.nodeID.field).
// Values that cannot be represented (channels, funcs) are dropped rather than
// failing the whole conversion; a condition referencing a dropped value fails
// at evaluation time with a missing-attribute diagnostic.
func Variables(globals map[string]any, outputs map[string]map[string]any) map[string]cty.Value {
	vars := make(map[string]cty.Value, len(globals)+len(outputs))
	for k, v := range globals {
		if cv, ok := toCty(v); ok {
			vars[k] = cv
		}
	}
	for nodeID, output := range outputs {
		fields := make(map[string]cty.Value, len(output))
		for k, v := range output {
			if cv, ok := toCty(v); ok {
				fields[k] = cv
			}
		}
		if len(fields) > 0 {
			vars[nodeID] = cty.ObjectVal(fields)
		} else {
			vars[nodeID] = cty.EmptyObjectVal
		}
	}
	return vars
}

// toCty maps the JSON-shaped values the engine traffics in onto cty values.
func toCty(v any) (cty.Value, bool) {
	switch val := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), true
	case bool:
		return cty.BoolVal(val), true
	case string:
		return cty.StringVal(val), true
	case int:
		return cty.NumberIntVal(int64(val)), true
	case int64:
		return cty.NumberIntVal(val), true
	case float64:
		return cty.NumberFloatVal(val), true
	case map[string]any:
		fields := make(map[string]cty.Value, len(val))
		for k, nested := range val {
			if cv, ok := toCty(nested); ok {
				fields[k] = cv
			}
		}
		if len(fields) == 0 {
			return cty.EmptyObjectVal, true
		}
		return cty.ObjectVal(fields), true
	case []any:
		if len(val) == 0 {
			return cty.EmptyTupleVal, true
		}
		elems := make([]cty.Value, 0, len(val))
		for _, nested := range val {
			cv, ok := toCty(nested)
			if !ok {
				return cty.NilVal, false
			}
			elems = append(elems, cv)
		}
		return cty.TupleVal(elems), true
	default:
		return cty.NilVal, false
	}
}
