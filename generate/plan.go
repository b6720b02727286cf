package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	fabrik "github.com/fabrik-ai/fabrik"
	"github.com/fabrik-ai/fabrik/llm"
	"github.com/fabrik-ai/fabrik/profile"
	"github.com/fabrik-ai/fabrik/schema"
)

// DefaultScenarioCount caps a plan when no count is configured.
const DefaultScenarioCount = 10

// BaseCategories are always planned. CategoryToolUse is added only when
// the profile lists at least one tool.
var BaseCategories = []string{
	"happy-path",
	"edge-case",
	"adversarial",
	"guardrail",
	"multi-turn",
	"tone",
}

// CategoryToolUse is the conditional tool-use category.
const CategoryToolUse = "tool-use"

// PersonaSpec describes the simulated user for one scenario.
type PersonaSpec struct {
	Role      string `json:"role"`
	Tone      string `json:"tone,omitempty"`
	Backstory string `json:"backstory,omitempty"`
}

// ScenarioSpec is one planned scenario.
type ScenarioSpec struct {
	Name              string      `json:"name"`
	Slug              string      `json:"slug"`
	Description       string      `json:"description"`
	Persona           PersonaSpec `json:"persona"`
	Turns             []string    `json:"turns"`
	Intent            string      `json:"intent"`
	SuccessCriteria   []string    `json:"successCriteria"`
	FailureIndicators []string    `json:"failureIndicators"`
}

// Category groups planned scenarios.
type Category struct {
	Name      string         `json:"name"`
	Scenarios []ScenarioSpec `json:"scenarios"`
}

// TestPlan is the planner's output.
type TestPlan struct {
	Categories []Category `json:"categories"`
}

// Count returns the total number of planned scenarios.
func (p *TestPlan) Count() int {
	n := 0
	for _, c := range p.Categories {
		n += len(c.Scenarios)
	}
	return n
}

// PlanOptions configures the planner.
type PlanOptions struct {
	// Count caps the total number of scenarios. Zero uses the default 10.
	Count int

	// Categories filters which categories are kept. The filter is applied
	// before truncation. Empty keeps everything.
	Categories []string
}

// Generator plans and writes scenarios.
type Generator struct {
	gateway llm.Gateway
	logger  *slog.Logger
	tracker *llm.TokenTracker
}

// New creates a Generator over a gateway.
func New(gateway llm.Gateway, logger *slog.Logger, tracker *llm.TokenTracker) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{gateway: gateway, logger: logger, tracker: tracker}
}

var planSchema = schema.Object(map[string]schema.JSON{
	"categories": schema.Array(schema.Object(map[string]schema.JSON{
		"name": schema.String(),
		"scenarios": schema.Array(schema.Object(map[string]schema.JSON{
			"name":        schema.String(),
			"slug":        schema.String(),
			"description": schema.String(),
			"persona": schema.Object(map[string]schema.JSON{
				"role":      schema.String(),
				"tone":      schema.String(),
				"backstory": schema.String(),
			}, "role"),
			"turns":             schema.Array(schema.String()),
			"intent":            schema.String(),
			"successCriteria":   schema.Array(schema.String()),
			"failureIndicators": schema.Array(schema.String()),
		}, "name", "description", "persona", "turns")),
	}, "name", "scenarios")),
}, "categories")

const planSystemPrompt = `You design behavioral test scenarios for a conversational AI agent from its profile.
Plan scenarios for these categories: %s.
Only plan scenarios that exercise tools when tools are listed, and only reference the listed tool names.
Every scenario needs: name, slug (kebab-case), description, persona (role, tone, backstory), turns (the persona's messages in order), intent, successCriteria, failureIndicators.
Respond with valid JSON only: {"categories": [{"name": "...", "scenarios": [...]}]}`

// Plan makes one gateway call and returns the filtered, truncated plan.
func (g *Generator) Plan(ctx context.Context, p *profile.AgentProfile, opts PlanOptions) (*TestPlan, error) {
	const op = "Generator.Plan"

	count := opts.Count
	if count <= 0 {
		count = DefaultScenarioCount
	}

	categories := make([]string, len(BaseCategories))
	copy(categories, BaseCategories)
	if p.HasTools() {
		categories = append(categories, CategoryToolUse)
	}

	resp, err := g.gateway.Generate(ctx, llm.GenerateRequest{
		Messages: []llm.Message{
			llm.System(fmt.Sprintf(planSystemPrompt, strings.Join(categories, ", "))),
			llm.User(projectProfile(p)),
		},
		OutputSchema: &planSchema,
	})
	if err != nil {
		return nil, err
	}
	if resp.Parsed == nil {
		return nil, fabrik.NewExecutionError(op,
			fmt.Errorf("planner reply did not match the plan schema"))
	}
	if g.tracker != nil {
		g.tracker.Add("generate.plan", resp.Usage)
	}

	plan, err := decodePlan(resp.Parsed)
	if err != nil {
		return nil, fabrik.NewExecutionError(op, err)
	}

	// Tool-use scenarios are dropped when the profile has no tools, even
	// if the model planned them anyway.
	if !p.HasTools() {
		plan = filterCategories(plan, BaseCategories)
	}

	if len(opts.Categories) > 0 {
		plan = filterCategories(plan, opts.Categories)
	}

	truncatePlan(plan, count)
	normalizeSlugs(plan)

	return plan, nil
}

// projectProfile renders the profile projection the planner sees.
func projectProfile(p *profile.AgentProfile) string {
	var sb strings.Builder

	if p.Name != "" {
		sb.WriteString("Name: " + p.Name + "\n")
	}
	if p.Description != "" {
		sb.WriteString("Description: " + p.Description + "\n")
	}
	if p.Domain != "" {
		sb.WriteString("Domain: " + p.Domain + "\n")
	}
	if p.ExpectedTone != "" {
		sb.WriteString("Expected tone: " + p.ExpectedTone + "\n")
	}
	if len(p.Tools) > 0 {
		sb.WriteString("Tools:\n")
		for _, tool := range p.Tools {
			sb.WriteString("- " + tool.Name)
			if tool.Description != "" {
				sb.WriteString(": " + tool.Description)
			}
			sb.WriteByte('\n')
		}
	}
	if len(p.KnownConstraints) > 0 {
		sb.WriteString("Constraints:\n- " + strings.Join(p.KnownConstraints, "\n- ") + "\n")
	}
	if p.SystemPrompt != "" {
		prompt := p.SystemPrompt
		if len(prompt) > 2000 {
			prompt = prompt[:2000] + "\n... [truncated]"
		}
		sb.WriteString("System prompt:\n" + prompt + "\n")
	}

	return sb.String()
}

// decodePlan maps the parsed reply onto a TestPlan.
func decodePlan(parsed map[string]any) (*TestPlan, error) {
	data, err := json.Marshal(parsed)
	if err != nil {
		return nil, fmt.Errorf("re-encoding plan: %w", err)
	}

	var plan TestPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}
	if len(plan.Categories) == 0 {
		return nil, fmt.Errorf("plan has no categories")
	}
	return &plan, nil
}

// filterCategories keeps only the named categories, preserving plan order.
func filterCategories(plan *TestPlan, keep []string) *TestPlan {
	want := make(map[string]bool, len(keep))
	for _, name := range keep {
		want[name] = true
	}

	filtered := &TestPlan{}
	for _, c := range plan.Categories {
		if want[c.Name] {
			filtered.Categories = append(filtered.Categories, c)
		}
	}
	return filtered
}

// truncatePlan caps the total scenario count, preserving within-category
// order and dropping from the end.
func truncatePlan(plan *TestPlan, count int) {
	remaining := count
	for i := range plan.Categories {
		c := &plan.Categories[i]
		if len(c.Scenarios) > remaining {
			c.Scenarios = c.Scenarios[:remaining]
		}
		remaining -= len(c.Scenarios)
	}

	var kept []Category
	for _, c := range plan.Categories {
		if len(c.Scenarios) > 0 {
			kept = append(kept, c)
		}
	}
	plan.Categories = kept
}

var slugCleaner = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify normalizes a name into a kebab-case slug.
func Slugify(name string) string {
	slug := strings.ToLower(name)
	slug = slugCleaner.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// normalizeSlugs fills missing or malformed slugs from scenario names.
func normalizeSlugs(plan *TestPlan) {
	for i := range plan.Categories {
		for j := range plan.Categories[i].Scenarios {
			s := &plan.Categories[i].Scenarios[j]
			if s.Slug == "" {
				s.Slug = Slugify(s.Name)
			} else {
				s.Slug = Slugify(s.Slug)
			}
		}
	}
}
