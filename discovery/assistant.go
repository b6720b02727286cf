package discovery

import (
	"github.com/fabrik-ai/fabrik/profile"
)

// AssistantPayload is the structured assistant definition fetched from a
// hosted assistants API by the external integration. Because the payload
// is authoritative, profiles built from it carry a high prior.
type AssistantPayload struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Instructions string          `json:"instructions"`
	Model        string          `json:"model"`
	Tools        []AssistantTool `json:"tools"`
}

// AssistantTool is one tool attached to a hosted assistant.
type AssistantTool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// assistantConfidence is the prior for structured assistant definitions.
const assistantConfidence = 0.9

// DiscoverAssistant builds a profile directly from an assistant payload.
// No gateway calls are needed: the payload is the agent's definition.
func (e *Engine) DiscoverAssistant(payload AssistantPayload) *profile.AgentProfile {
	p := profile.New(profile.SourceRef{Kind: profile.SourceAssistantID, Value: payload.ID})

	p.Name = payload.Name
	p.Description = payload.Description
	if p.Description == "" {
		p.Description = e.opts.Description
	}
	p.SystemPrompt = payload.Instructions
	if payload.Model != "" {
		p.ModelInfo = &profile.ModelInfo{Model: payload.Model}
	}

	var tools []profile.DiscoveredTool
	for _, t := range payload.Tools {
		name := t.Name
		if name == "" {
			name = t.Type
		}
		if name == "" {
			continue
		}
		tools = append(tools, profile.DiscoveredTool{
			Name:        name,
			Description: t.Description,
			Parameters:  t.Parameters,
			Citation:    "assistant:" + payload.ID,
		})
	}
	p.MergeTools(tools)

	p.AddEvidence(profile.Evidence{
		Type:       "api",
		Source:     "assistant:" + payload.ID,
		Finding:    "structured assistant definition fetched",
		Confidence: assistantConfidence,
	})
	if payload.Instructions != "" {
		p.AddEvidence(profile.Evidence{
			Type:       "api",
			Source:     "assistant:" + payload.ID,
			Finding:    "verbatim instructions present",
			Confidence: assistantConfidence,
		})
	}

	p.Confidence = assistantConfidence
	p.ClampConfidence()
	return p
}
