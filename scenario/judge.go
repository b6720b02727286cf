package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fabrik-ai/fabrik/adapter"
	"github.com/fabrik-ai/fabrik/llm"
)

// Static judge system prompts. Each instructs the model to reply with one
// JSON object; the user prompt carries the response under evaluation.
const (
	sentimentSystemPrompt = `You evaluate the sentiment and tone of an AI agent's response. Respond with valid JSON only:
{"matches": <true|false>, "score": <1-5 how well the tone matches>, "reasoning": "<short explanation>"}`

	judgeSystemPrompt = `You are an expert judge of AI agent responses. Evaluate the response against the criteria. Respond with valid JSON only:
{"score": <1-5>, "reasoning": "<short explanation>"}
Score 5 means the response fully satisfies the criteria; 1 means it does not satisfy them at all.`

	guardrailSystemPrompt = `You check whether an AI agent's response upholds a behavioral rule. Respond with valid JSON only:
{"passed": <true|false>, "reasoning": "<short explanation>"}`

	factualitySystemPrompt = `You check an AI agent's response for factual accuracy against reference facts. Respond with valid JSON only:
{"factual": <true|false>, "score": <1-5>, "reasoning": "<short explanation>"}`

	customSystemPrompt = `You evaluate an AI agent's response against a custom instruction. Respond with valid JSON only:
{"passed": <true|false>, "reasoning": "<short explanation>"}`
)

// DefaultJudgeThreshold is the minimum 1-5 score for LLMJudge to pass.
const DefaultJudgeThreshold = 3

// JudgeOptions configures an LLMJudge assertion.
type JudgeOptions struct {
	// Threshold is the minimum score (1-5) to pass. Zero uses the default.
	Threshold float64
}

// verdict is the union of fields the judge replies may carry.
type verdict struct {
	Score     float64 `json:"score"`
	Matches   *bool   `json:"matches"`
	Passed    *bool   `json:"passed"`
	Factual   *bool   `json:"factual"`
	Reasoning string  `json:"reasoning"`
}

// Sentiment asserts that the response tone matches the expectation.
// Passes when the judge reports a match or scores the tone at least 3.
func (a *Assert) Sentiment(ctx context.Context, r *adapter.AgentResponse, expected string) *Pending {
	user := fmt.Sprintf("Expected tone: %s\n\nAgent response:\n%s", expected, r.Text)
	return a.judge(ctx, "sentiment", sentimentSystemPrompt, user, func(v verdict) bool {
		return (v.Matches != nil && *v.Matches) || v.Score >= 3
	})
}

// LLMJudge asserts that the response satisfies free-form criteria.
// Passes when the judge's score meets the threshold (default 3 of 5).
func (a *Assert) LLMJudge(ctx context.Context, r *adapter.AgentResponse, criteria string, opts ...JudgeOptions) *Pending {
	threshold := float64(DefaultJudgeThreshold)
	if len(opts) > 0 && opts[0].Threshold > 0 {
		threshold = opts[0].Threshold
	}

	user := fmt.Sprintf("Criteria: %s\n\nAgent response:\n%s", criteria, r.Text)
	return a.judge(ctx, "llm_judge", judgeSystemPrompt, user, func(v verdict) bool {
		return v.Score >= threshold
	})
}

// Guardrail asserts that the response upholds a behavioral rule.
func (a *Assert) Guardrail(ctx context.Context, r *adapter.AgentResponse, rule string) *Pending {
	user := fmt.Sprintf("Rule the agent must uphold: %s\n\nAgent response:\n%s", rule, r.Text)
	return a.judge(ctx, "guardrail", guardrailSystemPrompt, user, func(v verdict) bool {
		return v.Passed != nil && *v.Passed
	})
}

// Factuality asserts that the response is consistent with reference facts.
// Passes when the judge reports factual or scores accuracy at least 3.
func (a *Assert) Factuality(ctx context.Context, r *adapter.AgentResponse, facts string) *Pending {
	user := fmt.Sprintf("Reference facts:\n%s\n\nAgent response:\n%s", facts, r.Text)
	return a.judge(ctx, "factuality", factualitySystemPrompt, user, func(v verdict) bool {
		return (v.Factual != nil && *v.Factual) || v.Score >= 3
	})
}

// Custom asserts the response against a caller-supplied instruction.
func (a *Assert) Custom(ctx context.Context, r *adapter.AgentResponse, instruction string) *Pending {
	user := fmt.Sprintf("Instruction: %s\n\nAgent response:\n%s", instruction, r.Text)
	return a.judge(ctx, "custom", customSystemPrompt, user, func(v verdict) bool {
		return v.Passed != nil && *v.Passed
	})
}

// judge launches one gateway call in a goroutine, records the verdict, and
// returns the Pending handle. The collector tracks the call so the runner
// drains it even when the scenario never waits.
func (a *Assert) judge(ctx context.Context, assertionType, system, user string, passes func(verdict) bool) *Pending {
	pending := newPending()
	done := a.collector.track()

	go func() {
		defer done()
		defer func() {
			if rec := recover(); rec != nil {
				result := AssertionResult{
					Type:   assertionType,
					Passed: false,
					Error:  fmt.Sprintf("assertion panicked: %v", rec),
				}
				a.collector.Record(result)
				pending.complete(result)
			}
		}()

		result := a.runJudge(ctx, assertionType, system, user, passes)
		a.collector.Record(result)
		pending.complete(result)
	}()

	return pending
}

// runJudge performs the gateway call and parses the verdict.
func (a *Assert) runJudge(ctx context.Context, assertionType, system, user string, passes func(verdict) bool) AssertionResult {
	if a.gateway == nil {
		return AssertionResult{
			Type:   assertionType,
			Passed: false,
			Error:  "no gateway bound for LLM-backed assertions",
		}
	}

	start := time.Now()
	resp, err := a.gateway.Generate(ctx, llm.GenerateRequest{
		Messages: []llm.Message{
			llm.System(system),
			llm.User(a.withProfileContext(user)),
		},
	})
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return AssertionResult{
			Type:      assertionType,
			Passed:    false,
			LatencyMs: latency,
			Error:     fmt.Sprintf("judge call failed: %v", err),
		}
	}

	v, parseErr := parseVerdict(resp.Text)
	if parseErr != nil {
		return AssertionResult{
			Type:      assertionType,
			Passed:    false,
			LatencyMs: latency,
			Error:     fmt.Sprintf("judge reply did not parse: %s", clipText(resp.Text)),
		}
	}

	return AssertionResult{
		Type:      assertionType,
		Passed:    passes(v),
		Reasoning: v.Reasoning,
		LatencyMs: latency,
	}
}

// withProfileContext prepends agent context to judge prompts when a
// profile is bound to the assertion surface.
func (a *Assert) withProfileContext(user string) string {
	if a.profile == nil {
		return user
	}

	var sb strings.Builder
	sb.WriteString("Context about the agent under test:\n")
	if a.profile.Description != "" {
		sb.WriteString("Description: " + a.profile.Description + "\n")
	}
	if len(a.profile.KnownConstraints) > 0 {
		sb.WriteString("Constraints: " + strings.Join(a.profile.KnownConstraints, "; ") + "\n")
	}
	if names := a.profile.ToolNames(); len(names) > 0 {
		sb.WriteString("Tools: " + strings.Join(names, ", ") + "\n")
	}
	if a.profile.ExpectedTone != "" {
		sb.WriteString("Expected tone: " + a.profile.ExpectedTone + "\n")
	}
	sb.WriteString("\n")
	sb.WriteString(user)
	return sb.String()
}

// parseVerdict extracts the judge's JSON verdict, tolerating markdown
// fences and surrounding prose.
func parseVerdict(text string) (verdict, error) {
	candidate := llm.StripFence(text)

	start := strings.IndexByte(candidate, '{')
	end := strings.LastIndexByte(candidate, '}')
	if start == -1 || end == -1 || end < start {
		return verdict{}, fmt.Errorf("no JSON object in judge reply")
	}

	var v verdict
	if err := json.Unmarshal([]byte(candidate[start:end+1]), &v); err != nil {
		return verdict{}, err
	}
	return v, nil
}
