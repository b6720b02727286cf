package adapter

import (
	"context"
	"encoding/json"

	"github.com/fabrik-ai/fabrik/llm"
)

// ToolCall records one tool invocation surfaced by the agent under test.
type ToolCall struct {
	// Name is the tool's identifier.
	Name string `json:"name"`

	// Arguments contains the invocation parameters.
	Arguments map[string]any `json:"arguments,omitempty"`
}

// AgentResponse is the normalized reply to one send. It is never mutated
// after construction.
type AgentResponse struct {
	// Text is the agent's reply text.
	Text string `json:"text"`

	// ToolCalls lists tool invocations found in the response, in order.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// LatencyMs is the wall-clock time between dispatch and complete read.
	LatencyMs int64 `json:"latency_ms"`

	// TokenUsage carries token statistics when the agent reports them.
	TokenUsage *llm.TokenUsage `json:"token_usage,omitempty"`

	// Raw preserves the unparsed response body for diagnostics.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// ConversationTurn is one prior exchange re-sent with a request.
type ConversationTurn struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`

	// Content is the turn's text.
	Content string `json:"content"`
}

// ConversationContext carries the accumulated conversation for multi-turn
// scenarios. Adapters re-send prior turns on every request.
type ConversationContext struct {
	// ConversationID labels the conversation (legacy framing sends it).
	ConversationID string

	// Turns holds the prior exchanges in order.
	Turns []ConversationTurn
}

// Append records a turn on the context.
func (c *ConversationContext) Append(role, content string) {
	c.Turns = append(c.Turns, ConversationTurn{Role: role, Content: content})
}

// Adapter sends user messages to the agent under test.
//
// Send is stateless: all conversation state travels in conv. Reset clears
// any adapter-held resources between scenario attempts; for inherently
// stateless adapters it is a no-op.
type Adapter interface {
	Send(ctx context.Context, message string, conv *ConversationContext) (*AgentResponse, error)
	Reset()
}

// Factory builds one adapter per scenario so parallel scenarios never
// share adapter state.
type Factory func() (Adapter, error)
