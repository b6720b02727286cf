package scenario

import (
	"context"
	"fmt"

	"github.com/fabrik-ai/fabrik/adapter"
	"gopkg.in/yaml.v3"
)

// Document is the YAML scenario artifact shape.
type Document struct {
	Name       string          `yaml:"name"`
	Tags       []string        `yaml:"tags,omitempty"`
	Persona    Persona         `yaml:"persona"`
	Turns      []TurnSpec      `yaml:"turns"`
	Assertions []AssertionSpec `yaml:"assertions"`
}

// Persona describes who the simulated user is.
type Persona struct {
	Role      string `yaml:"role"`
	Tone      string `yaml:"tone,omitempty"`
	Backstory string `yaml:"backstory,omitempty"`
}

// TurnSpec is one persona message.
type TurnSpec struct {
	Says string `yaml:"says"`
}

// AssertionSpec is one tagged assertion record. The fields used depend on
// Type; unused fields are ignored.
type AssertionSpec struct {
	Type string `yaml:"type"`

	// contains / not_contains
	Value string `yaml:"value,omitempty"`

	// matches
	Pattern string `yaml:"pattern,omitempty"`

	// latency / token_usage
	Max int64 `yaml:"max,omitempty"`

	// tool_called / tool_not_called
	Name string `yaml:"name,omitempty"`

	// llm_judge
	Criteria  string  `yaml:"criteria,omitempty"`
	Threshold float64 `yaml:"threshold,omitempty"`

	// sentiment
	Expected string `yaml:"expected,omitempty"`

	// guardrail
	Rule string `yaml:"rule,omitempty"`

	// factuality
	Facts string `yaml:"facts,omitempty"`

	// custom
	Instruction string `yaml:"instruction,omitempty"`

	// predicate (CEL over text, toolCalls, latencyMs)
	Expr string `yaml:"expr,omitempty"`
}

// knownAssertionTypes validates assertion specs at compile time so a
// malformed artifact is rejected when loaded, not when run.
var knownAssertionTypes = map[string]bool{
	"contains":        true,
	"not_contains":    true,
	"matches":         true,
	"latency":         true,
	"token_usage":     true,
	"tool_called":     true,
	"tool_not_called": true,
	"llm_judge":       true,
	"sentiment":       true,
	"guardrail":       true,
	"factuality":      true,
	"custom":          true,
	"predicate":       true,
}

// CompileYAML parses a YAML artifact and compiles it into a Scenario whose
// body sends the persona turns in order and applies every assertion to the
// final response.
func CompileYAML(data []byte) (Scenario, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Scenario{}, fmt.Errorf("parsing scenario document: %w", err)
	}
	return doc.Compile()
}

// Compile validates the document and builds the in-memory Scenario.
func (d Document) Compile() (Scenario, error) {
	if d.Name == "" {
		return Scenario{}, fmt.Errorf("scenario document has no name")
	}
	if len(d.Turns) == 0 {
		return Scenario{}, fmt.Errorf("scenario %q has no turns", d.Name)
	}
	for i, turn := range d.Turns {
		if turn.Says == "" {
			return Scenario{}, fmt.Errorf("scenario %q: turn %d has no message", d.Name, i)
		}
	}
	for i, spec := range d.Assertions {
		if !knownAssertionTypes[spec.Type] {
			return Scenario{}, fmt.Errorf("scenario %q: assertion %d has unknown type %q", d.Name, i, spec.Type)
		}
	}

	doc := d
	return Scenario{
		Name: doc.Name,
		Tags: doc.Tags,
		Fn:   doc.run,
	}, nil
}

// run is the compiled scenario body.
func (d Document) run(ctx context.Context, sc *Context) error {
	var last *responseHolder

	for _, turn := range d.Turns {
		resp, err := sc.Agent.Send(ctx, turn.Says)
		if err != nil {
			return fmt.Errorf("sending %q: %w", clipText(turn.Says), err)
		}
		last = &responseHolder{resp: resp}
	}

	for _, spec := range d.Assertions {
		d.apply(ctx, sc, spec, last)
	}

	return nil
}

// apply dispatches one assertion spec against the final response. Pending
// handles from async assertions are awaited so YAML scenarios behave
// deterministically; the runner's drain still covers early exits.
func (d Document) apply(ctx context.Context, sc *Context, spec AssertionSpec, last *responseHolder) {
	r := last.resp

	switch spec.Type {
	case "contains":
		sc.Assert.Contains(r, spec.Value)
	case "not_contains":
		sc.Assert.NotContains(r, spec.Value)
	case "matches":
		sc.Assert.Matches(r, spec.Pattern)
	case "latency":
		sc.Assert.Latency(r, LatencyOptions{Max: spec.Max})
	case "token_usage":
		sc.Assert.TokenUsage(r, TokenUsageOptions{Max: int(spec.Max)})
	case "tool_called":
		sc.Assert.ToolCalled(r, spec.Name)
	case "tool_not_called":
		sc.Assert.ToolNotCalled(r, spec.Name)
	case "llm_judge":
		p := sc.Assert.LLMJudge(ctx, r, spec.Criteria, JudgeOptions{Threshold: spec.Threshold})
		_, _ = p.Wait(ctx)
	case "sentiment":
		p := sc.Assert.Sentiment(ctx, r, spec.Expected)
		_, _ = p.Wait(ctx)
	case "guardrail":
		p := sc.Assert.Guardrail(ctx, r, spec.Rule)
		_, _ = p.Wait(ctx)
	case "factuality":
		p := sc.Assert.Factuality(ctx, r, spec.Facts)
		_, _ = p.Wait(ctx)
	case "custom":
		p := sc.Assert.Custom(ctx, r, spec.Instruction)
		_, _ = p.Wait(ctx)
	case "predicate":
		sc.Assert.Predicate(r, spec.Expr)
	}
}

// responseHolder keeps the final response for assertion application.
type responseHolder struct {
	resp *adapter.AgentResponse
}
