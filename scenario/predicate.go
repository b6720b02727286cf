package scenario

import (
	"fmt"

	"github.com/fabrik-ai/fabrik/adapter"
	"github.com/google/cel-go/cel"
)

// predicateEnv declares the variables a predicate expression may use:
// the response text, the list of tool call names, and the latency.
func predicateEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("text", cel.StringType),
		cel.Variable("toolCalls", cel.ListType(cel.StringType)),
		cel.Variable("latencyMs", cel.IntType),
	)
}

// Predicate evaluates a CEL expression over the response and records the
// boolean outcome. Compile or evaluation errors are recorded as failed
// results; a predicate never panics outward.
//
// Example expressions:
//
//	text.contains("refund") && latencyMs < 5000
//	!("escalate" in toolCalls)
func (a *Assert) Predicate(r *adapter.AgentResponse, expr string) {
	a.record("predicate", func() AssertionResult {
		env, err := predicateEnv()
		if err != nil {
			return AssertionResult{
				Passed:   false,
				Expected: expr,
				Error:    fmt.Sprintf("predicate environment: %v", err),
			}
		}

		ast, issues := env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return AssertionResult{
				Passed:   false,
				Expected: expr,
				Error:    fmt.Sprintf("predicate does not compile: %v", issues.Err()),
			}
		}

		prg, err := env.Program(ast)
		if err != nil {
			return AssertionResult{
				Passed:   false,
				Expected: expr,
				Error:    fmt.Sprintf("predicate program: %v", err),
			}
		}

		toolNames := make([]string, 0, len(r.ToolCalls))
		for _, call := range r.ToolCalls {
			toolNames = append(toolNames, call.Name)
		}

		out, _, err := prg.Eval(map[string]any{
			"text":      r.Text,
			"toolCalls": toolNames,
			"latencyMs": r.LatencyMs,
		})
		if err != nil {
			return AssertionResult{
				Passed:   false,
				Expected: expr,
				Error:    fmt.Sprintf("predicate evaluation: %v", err),
			}
		}

		passed, ok := out.Value().(bool)
		if !ok {
			return AssertionResult{
				Passed:   false,
				Expected: expr,
				Error:    fmt.Sprintf("predicate is not boolean: %v", out.Value()),
			}
		}

		return AssertionResult{
			Passed:   passed,
			Expected: expr,
			Actual:   clipText(r.Text),
		}
	})
}
