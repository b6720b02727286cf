package generate

import (
	"context"
	"fmt"
	"strings"

	fabrik "github.com/fabrik-ai/fabrik"
	"github.com/fabrik-ai/fabrik/llm"
	"github.com/fabrik-ai/fabrik/profile"
	"github.com/fabrik-ai/fabrik/scenario"
	"gopkg.in/yaml.v3"
)

const writerSystemPrompt = `You write one Go test scenario for a conversational AI agent, using the fabrik scenario API.

Rules:
- Emit only Go source, no markdown fences, no prose.
- The file is "package scenarios" and imports "github.com/fabrik-ai/fabrik/scenario".
- Register the scenario in an init function:
    func init() {
        scenario.Register(scenario.Scenario{Name: "...", Tags: []string{...}, Fn: run<Slug>})
    }
- The body has the signature func(ctx context.Context, sc *scenario.Context) error.
- Drive the conversation with sc.Agent.Send(ctx, "...") for every persona turn, in order.
- Assert ONLY with: sc.Assert.Contains, sc.Assert.NotContains, sc.Assert.Matches, sc.Assert.JSONSchema, sc.Assert.Latency, sc.Assert.TokenUsage, and sc.Assert.LLMJudge.
- Always consume LLMJudge's handle: _, _ = sc.Assert.LLMJudge(ctx, resp, "...").Wait(ctx)
- Never use any other assertion method.`

// WriteScenario makes one gateway call producing Go scenario source and
// applies the mandatory sanitizer before returning it.
func (g *Generator) WriteScenario(ctx context.Context, p *profile.AgentProfile, category string, spec ScenarioSpec) (string, error) {
	const op = "Generator.WriteScenario"

	resp, err := g.gateway.Generate(ctx, llm.GenerateRequest{
		Messages: []llm.Message{
			llm.System(writerSystemPrompt),
			llm.User(renderSpec(p, category, spec)),
		},
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", fabrik.NewExecutionError(op,
			fmt.Errorf("writer produced empty output for %q", spec.Name))
	}
	if g.tracker != nil {
		g.tracker.Add("generate.write", resp.Usage)
	}

	return Sanitize(resp.Text), nil
}

// renderSpec builds the writer's user prompt.
func renderSpec(p *profile.AgentProfile, category string, spec ScenarioSpec) string {
	var sb strings.Builder

	sb.WriteString(projectProfile(p))
	sb.WriteString("\nCategory: " + category + "\n")
	sb.WriteString("Scenario: " + spec.Name + " (slug: " + spec.Slug + ")\n")
	sb.WriteString("Description: " + spec.Description + "\n")
	sb.WriteString("Persona: " + spec.Persona.Role)
	if spec.Persona.Tone != "" {
		sb.WriteString(", tone: " + spec.Persona.Tone)
	}
	if spec.Persona.Backstory != "" {
		sb.WriteString(", backstory: " + spec.Persona.Backstory)
	}
	sb.WriteString("\nTurns:\n")
	for i, turn := range spec.Turns {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, turn))
	}
	if spec.Intent != "" {
		sb.WriteString("Intent: " + spec.Intent + "\n")
	}
	if len(spec.SuccessCriteria) > 0 {
		sb.WriteString("Success criteria:\n- " + strings.Join(spec.SuccessCriteria, "\n- ") + "\n")
	}
	if len(spec.FailureIndicators) > 0 {
		sb.WriteString("Failure indicators:\n- " + strings.Join(spec.FailureIndicators, "\n- ") + "\n")
	}

	return sb.String()
}

// WriteYAML renders the spec as the equivalent YAML scenario artifact.
// No model is involved: the artifact is derived from the plan
// deterministically, with success criteria becoming judge assertions.
func (g *Generator) WriteYAML(category string, spec ScenarioSpec) ([]byte, error) {
	doc := scenario.Document{
		Name: spec.Slug,
		Tags: []string{category},
		Persona: scenario.Persona{
			Role:      spec.Persona.Role,
			Tone:      spec.Persona.Tone,
			Backstory: spec.Persona.Backstory,
		},
	}
	for _, turn := range spec.Turns {
		doc.Turns = append(doc.Turns, scenario.TurnSpec{Says: turn})
	}
	for _, criterion := range spec.SuccessCriteria {
		doc.Assertions = append(doc.Assertions, scenario.AssertionSpec{
			Type:     "llm_judge",
			Criteria: criterion,
		})
	}

	// The compiled form must round-trip: reject specs the loader would
	// also reject.
	if _, err := doc.Compile(); err != nil {
		return nil, fabrik.NewValidationError("Generator.WriteYAML", err)
	}

	return yaml.Marshal(doc)
}

// ArtifactName returns the writer's Go file name for a spec.
func ArtifactName(spec ScenarioSpec) string {
	return spec.Slug + ".test.go"
}

// YAMLArtifactName returns the YAML artifact file name for a spec.
func YAMLArtifactName(spec ScenarioSpec) string {
	return spec.Slug + ".yaml"
}
