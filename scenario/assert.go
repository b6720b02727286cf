package scenario

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/fabrik-ai/fabrik/adapter"
	"github.com/fabrik-ai/fabrik/llm"
	"github.com/fabrik-ai/fabrik/profile"
	"github.com/fabrik-ai/fabrik/schema"
)

// noToolsCalled is the Actual recorded when a tool assertion finds an
// empty call list.
const noToolsCalled = "(no tools called)"

// Assert is the assertion surface bound to one scenario's collector. Local
// assertions record synchronously; LLM-backed assertions (judge.go) spawn
// a goroutine and return a Pending handle.
type Assert struct {
	collector *Collector
	gateway   llm.Gateway
	profile   *profile.AgentProfile
}

// NewAssert binds an assertion surface to a collector. The gateway powers
// the LLM-backed assertions and may be nil when only local assertions are
// used; the profile, when present, adds agent context to judge prompts.
func NewAssert(collector *Collector, gateway llm.Gateway, p *profile.AgentProfile) *Assert {
	return &Assert{collector: collector, gateway: gateway, profile: p}
}

// Collector returns the bound collector.
func (a *Assert) Collector() *Collector {
	return a.collector
}

// record catches panics from the assertion body so no assertion ever
// propagates a failure to the scenario.
func (a *Assert) record(assertionType string, fn func() AssertionResult) {
	defer func() {
		if r := recover(); r != nil {
			a.collector.Record(AssertionResult{
				Type:   assertionType,
				Passed: false,
				Error:  fmt.Sprintf("assertion panicked: %v", r),
			})
		}
	}()

	result := fn()
	result.Type = assertionType
	a.collector.Record(result)
}

// Contains asserts that the response text contains the substring,
// case-insensitively.
func (a *Assert) Contains(r *adapter.AgentResponse, substr string) {
	a.record("contains", func() AssertionResult {
		passed := strings.Contains(strings.ToLower(r.Text), strings.ToLower(substr))
		return AssertionResult{
			Passed:   passed,
			Expected: fmt.Sprintf("text contains %q", substr),
			Actual:   clipText(r.Text),
		}
	})
}

// NotContains asserts that the response text does not contain the
// substring, case-insensitively.
func (a *Assert) NotContains(r *adapter.AgentResponse, substr string) {
	a.record("not_contains", func() AssertionResult {
		passed := !strings.Contains(strings.ToLower(r.Text), strings.ToLower(substr))
		return AssertionResult{
			Passed:   passed,
			Expected: fmt.Sprintf("text does not contain %q", substr),
			Actual:   clipText(r.Text),
		}
	})
}

// Matches asserts that the response text matches the regular expression.
// An invalid pattern records a failed result rather than panicking.
func (a *Assert) Matches(r *adapter.AgentResponse, pattern string) {
	a.record("matches", func() AssertionResult {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return AssertionResult{
				Passed:   false,
				Expected: fmt.Sprintf("text matches /%s/", pattern),
				Error:    fmt.Sprintf("invalid pattern: %v", err),
			}
		}
		return AssertionResult{
			Passed:   re.MatchString(r.Text),
			Expected: fmt.Sprintf("text matches /%s/", pattern),
			Actual:   clipText(r.Text),
		}
	})
}

// JSONSchema asserts that the response text parses as JSON conforming to
// the schema.
func (a *Assert) JSONSchema(r *adapter.AgentResponse, s schema.JSON) {
	a.record("json_schema", func() AssertionResult {
		var value any
		if err := json.Unmarshal([]byte(llm.StripFence(r.Text)), &value); err != nil {
			return AssertionResult{
				Passed:   false,
				Expected: "response is valid JSON matching schema",
				Actual:   clipText(r.Text),
				Error:    fmt.Sprintf("not JSON: %v", err),
			}
		}
		if err := s.Validate(value); err != nil {
			return AssertionResult{
				Passed:   false,
				Expected: "response matches schema",
				Actual:   clipText(r.Text),
				Error:    err.Error(),
			}
		}
		return AssertionResult{Passed: true, Expected: "response matches schema"}
	})
}

// LatencyOptions configures a latency assertion.
type LatencyOptions struct {
	// Max is the inclusive upper bound in milliseconds.
	Max int64
}

// Latency asserts that the response latency is within the bound.
func (a *Assert) Latency(r *adapter.AgentResponse, opts LatencyOptions) {
	a.record("latency", func() AssertionResult {
		return AssertionResult{
			Passed:   r.LatencyMs <= opts.Max,
			Expected: fmt.Sprintf("latency <= %dms", opts.Max),
			Actual:   fmt.Sprintf("%dms", r.LatencyMs),
		}
	})
}

// TokenUsageOptions configures a token usage assertion.
type TokenUsageOptions struct {
	// Max is the inclusive upper bound on total tokens.
	Max int
}

// TokenUsage asserts that the response's reported total tokens are within
// the bound. A response that reports no usage fails the assertion.
func (a *Assert) TokenUsage(r *adapter.AgentResponse, opts TokenUsageOptions) {
	a.record("token_usage", func() AssertionResult {
		if r.TokenUsage == nil {
			return AssertionResult{
				Passed:   false,
				Expected: fmt.Sprintf("total tokens <= %d", opts.Max),
				Actual:   "(no token usage reported)",
			}
		}
		return AssertionResult{
			Passed:   r.TokenUsage.TotalTokens <= opts.Max,
			Expected: fmt.Sprintf("total tokens <= %d", opts.Max),
			Actual:   fmt.Sprintf("%d tokens", r.TokenUsage.TotalTokens),
		}
	})
}

// ToolCalled asserts that the response invoked the named tool.
func (a *Assert) ToolCalled(r *adapter.AgentResponse, name string) {
	a.record("tool_called", func() AssertionResult {
		actual := toolCallNames(r)
		for _, call := range r.ToolCalls {
			if call.Name == name {
				return AssertionResult{
					Passed:   true,
					Expected: fmt.Sprintf("tool %q called", name),
					Actual:   actual,
				}
			}
		}
		return AssertionResult{
			Passed:   false,
			Expected: fmt.Sprintf("tool %q called", name),
			Actual:   actual,
		}
	})
}

// ToolNotCalled asserts that the response did not invoke the named tool.
func (a *Assert) ToolNotCalled(r *adapter.AgentResponse, name string) {
	a.record("tool_not_called", func() AssertionResult {
		for _, call := range r.ToolCalls {
			if call.Name == name {
				return AssertionResult{
					Passed:   false,
					Expected: fmt.Sprintf("tool %q not called", name),
					Actual:   toolCallNames(r),
				}
			}
		}
		return AssertionResult{
			Passed:   true,
			Expected: fmt.Sprintf("tool %q not called", name),
			Actual:   toolCallNames(r),
		}
	})
}

// toolCallNames renders the call list for the Actual field.
func toolCallNames(r *adapter.AgentResponse) string {
	if len(r.ToolCalls) == 0 {
		return noToolsCalled
	}
	names := make([]string, 0, len(r.ToolCalls))
	for _, call := range r.ToolCalls {
		names = append(names, call.Name)
	}
	return strings.Join(names, ", ")
}

// clipText shortens response text for result records.
func clipText(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
