package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	fabrik "github.com/fabrik-ai/fabrik"
	"github.com/fabrik-ai/fabrik/llm"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// textKeys are probed in order when extracting reply text from a JSON body.
var textKeys = []string{"message", "text", "content", "response"}

// HTTPAdapter drives an agent exposed over HTTP.
type HTTPAdapter struct {
	config HTTPConfig
	client *http.Client
}

// NewHTTPAdapter creates an adapter for the configured endpoint.
func NewHTTPAdapter(config HTTPConfig) (*HTTPAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fabrik.NewConfigurationError("NewHTTPAdapter", err)
	}

	if config.RequestFormat == "" {
		config.RequestFormat = FormatMessages
	}

	return &HTTPAdapter{
		config: config,
		client: &http.Client{
			Timeout:   120 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

// Reset implements Adapter. The HTTP adapter holds no per-conversation
// state, so Reset is a no-op.
func (a *HTTPAdapter) Reset() {}

// Send implements Adapter.
func (a *HTTPAdapter) Send(ctx context.Context, message string, conv *ConversationContext) (*AgentResponse, error) {
	const op = "HTTPAdapter.Send"

	body, err := a.buildBody(message, conv)
	if err != nil {
		return nil, fabrik.NewInternalError(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fabrik.NewInternalError(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range a.config.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fabrik.NewNetworkError(op, fmt.Errorf("%w: %v", fabrik.ErrTransport, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return nil, fabrik.NewNetworkError(op, fmt.Errorf("%w: reading body: %v", fabrik.ErrTransport, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fabrik.NewNetworkError(op,
			fmt.Errorf("%w: status %d: %s", fabrik.ErrTransport, resp.StatusCode, clip(string(data), 300)))
	}

	contentType := resp.Header.Get("Content-Type")
	response, err := a.parseResponse(data, contentType)
	if err != nil {
		return nil, fabrik.NewNetworkError(op, fmt.Errorf("%w: %v", fabrik.ErrTransport, err))
	}

	response.LatencyMs = latency
	return response, nil
}

// buildBody assembles the request body for the configured framing.
func (a *HTTPAdapter) buildBody(message string, conv *ConversationContext) ([]byte, error) {
	if a.config.BodyTemplate != "" {
		quoted, err := json.Marshal(message)
		if err != nil {
			return nil, err
		}
		return []byte(strings.ReplaceAll(a.config.BodyTemplate, "{{message}}", string(quoted))), nil
	}

	switch a.config.RequestFormat {
	case FormatLegacy:
		payload := map[string]any{"message": message}
		if conv != nil && conv.ConversationID != "" {
			payload["conversation_id"] = conv.ConversationID
		}
		return json.Marshal(payload)

	default: // FormatMessages
		var msgs []ConversationTurn
		if conv != nil {
			msgs = append(msgs, conv.Turns...)
		}
		msgs = append(msgs, ConversationTurn{Role: "user", Content: message})
		return json.Marshal(map[string]any{"messages": msgs})
	}
}

// parseResponse normalizes the three supported response shapes.
func (a *HTTPAdapter) parseResponse(data []byte, contentType string) (*AgentResponse, error) {
	streaming := a.config.Streaming || strings.Contains(contentType, "text/event-stream")

	if streaming {
		text, err := llm.DecodeStream(bytes.NewReader(data), llm.FormatSSE)
		if err != nil {
			return nil, err
		}
		return &AgentResponse{Text: text, Raw: data}, nil
	}

	if isDataStream(data) {
		text, err := llm.DecodeStream(bytes.NewReader(data), llm.FormatDataStream)
		if err != nil {
			return nil, err
		}
		return &AgentResponse{Text: text, Raw: data}, nil
	}

	return a.parseJSONBody(data)
}

// isDataStream sniffs the AI-SDK "<digit>:" line protocol.
func isDataStream(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) >= 2 && trimmed[0] >= '0' && trimmed[0] <= '9' && trimmed[1] == ':'
}

// parseJSONBody extracts text and tool calls from a JSON reply.
func (a *HTTPAdapter) parseJSONBody(data []byte) (*AgentResponse, error) {
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		// Non-JSON bodies are used verbatim.
		return &AgentResponse{Text: string(data), Raw: data}, nil
	}

	resp := &AgentResponse{Raw: data}
	resp.Text = a.extractText(body, data)
	resp.ToolCalls = extractToolCalls(body)
	resp.TokenUsage = extractTokenUsage(body)

	return resp, nil
}

// extractText probes the recognized text locations in order.
func (a *HTTPAdapter) extractText(body map[string]any, raw []byte) string {
	if a.config.ResponseParser != "" {
		if text, ok := digPath(body, a.config.ResponseParser); ok {
			return text
		}
	}

	for _, key := range textKeys {
		if text, ok := body[key].(string); ok {
			return text
		}
	}

	// choices[0].message.content
	if choices, ok := body["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if msg, ok := choice["message"].(map[string]any); ok {
				if content, ok := msg["content"].(string); ok {
					return content
				}
			}
		}
	}

	return string(raw)
}

// digPath walks a dot-separated path of object keys.
func digPath(body map[string]any, path string) (string, bool) {
	current := any(body)
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return "", false
		}
		current, ok = m[part]
		if !ok {
			return "", false
		}
	}
	text, ok := current.(string)
	return text, ok
}

// extractToolCalls pulls a top-level tool_calls array when present.
// Both the flat {name, arguments} and the OpenAI {function:{name,arguments}}
// shapes are recognized; string arguments are decoded as JSON.
func extractToolCalls(body map[string]any) []ToolCall {
	rawCalls, ok := body["tool_calls"].([]any)
	if !ok {
		return nil
	}

	var calls []ToolCall
	for _, rawCall := range rawCalls {
		m, ok := rawCall.(map[string]any)
		if !ok {
			continue
		}

		if fn, ok := m["function"].(map[string]any); ok {
			m = fn
		}

		name, _ := m["name"].(string)
		if name == "" {
			continue
		}

		call := ToolCall{Name: name}
		switch args := m["arguments"].(type) {
		case map[string]any:
			call.Arguments = args
		case string:
			var decoded map[string]any
			if err := json.Unmarshal([]byte(args), &decoded); err == nil {
				call.Arguments = decoded
			}
		}
		calls = append(calls, call)
	}

	return calls
}

// extractTokenUsage pulls a usage block when the agent reports one.
func extractTokenUsage(body map[string]any) *llm.TokenUsage {
	usage, ok := body["usage"].(map[string]any)
	if !ok {
		return nil
	}

	asInt := func(key string) int {
		if f, ok := usage[key].(float64); ok {
			return int(f)
		}
		return 0
	}

	u := llm.TokenUsage{
		InputTokens:  asInt("prompt_tokens") + asInt("input_tokens"),
		OutputTokens: asInt("completion_tokens") + asInt("output_tokens"),
	}
	u.TotalTokens = asInt("total_tokens")
	if u.TotalTokens == 0 {
		u.TotalTokens = u.InputTokens + u.OutputTokens
	}
	if u.TotalTokens == 0 {
		return nil
	}
	return &u
}

// clip shortens s to at most n bytes with an ellipsis marker.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
