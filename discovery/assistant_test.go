package discovery

import (
	"testing"

	"github.com/fabrik-ai/fabrik/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverAssistant(t *testing.T) {
	e := New(nil, nil, Options{})

	p := e.DiscoverAssistant(AssistantPayload{
		ID:           "asst_123",
		Name:         "Billing Helper",
		Description:  "answers billing questions",
		Instructions: "You are a billing assistant. Never promise refunds.",
		Model:        "gpt-4o",
		Tools: []AssistantTool{
			{Type: "function", Name: "lookup_invoice", Description: "find an invoice"},
			{Type: "code_interpreter"},
			{Type: "function", Name: "lookup_invoice"}, // duplicate: first wins
		},
	})

	assert.Equal(t, profile.SourceAssistantID, p.Source.Kind)
	assert.Equal(t, "asst_123", p.Source.Value)
	assert.Equal(t, "Billing Helper", p.Name)
	assert.Equal(t, "You are a billing assistant. Never promise refunds.", p.SystemPrompt)
	require.NotNil(t, p.ModelInfo)
	assert.Equal(t, "gpt-4o", p.ModelInfo.Model)

	assert.Equal(t, []string{"lookup_invoice", "code_interpreter"}, p.ToolNames())

	assert.InDelta(t, assistantConfidence, p.Confidence, 1e-9)
	assert.LessOrEqual(t, p.Confidence, p.MaxEvidenceConfidence())
}

func TestDiscoverAssistant_EmptyPayload(t *testing.T) {
	e := New(nil, nil, Options{Description: "fallback description"})

	p := e.DiscoverAssistant(AssistantPayload{ID: "asst_x"})

	assert.Equal(t, "fallback description", p.Description)
	assert.Empty(t, p.Tools)
	assert.LessOrEqual(t, p.Confidence, p.MaxEvidenceConfidence())
}
