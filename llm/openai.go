package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	fabrik "github.com/fabrik-ai/fabrik"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// OpenAIConfig configures the OpenAI-compatible chat-completions transport.
type OpenAIConfig struct {
	// BaseURL is the API root. Defaults to https://api.openai.com/v1.
	// Any OpenAI-compatible endpoint can be targeted.
	BaseURL string

	// APIKey authenticates requests. Falls back to OPENAI_API_KEY.
	APIKey string

	// Model is the model identifier to request (required).
	Model string

	// HTTPClient overrides the default client. When nil a client with a
	// 120s timeout and otel-instrumented transport is used.
	HTTPClient *http.Client
}

// OpenAIGateway implements Gateway over an OpenAI-compatible
// chat-completions API. When an output schema is requested, the request
// carries response_format json_object so the provider constrains output
// natively; the fenced-JSON fallback still applies to the reply.
type OpenAIGateway struct {
	config OpenAIConfig
	client *http.Client
}

// NewOpenAIGateway creates a gateway for an OpenAI-compatible endpoint.
func NewOpenAIGateway(config OpenAIConfig) (*OpenAIGateway, error) {
	if config.Model == "" {
		return nil, fabrik.NewConfigurationError("NewOpenAIGateway",
			fmt.Errorf("%w: model is required", fabrik.ErrInvalidConfig))
	}

	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.APIKey == "" {
		config.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout:   120 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	return &OpenAIGateway{config: config, client: client}, nil
}

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate implements Gateway.
func (g *OpenAIGateway) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	const op = "OpenAIGateway.Generate"

	body := openAIRequest{
		Model:       g.config.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.OutputSchema != nil {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fabrik.NewInternalError(op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.config.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fabrik.NewInternalError(op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.config.APIKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fabrik.NewNetworkError(op, fmt.Errorf("%w: %v", fabrik.ErrTransport, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fabrik.NewNetworkError(op, fmt.Errorf("%w: reading body: %v", fabrik.ErrTransport, err))
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fabrik.NewAuthError(op,
			fmt.Errorf("%w: check OPENAI_API_KEY", fabrik.ErrAuthExpired))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fabrik.NewNetworkError(op,
			fmt.Errorf("%w: status %d: %s", fabrik.ErrTransport, resp.StatusCode, truncate(string(data), 300)))
	}

	var decoded openAIResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fabrik.NewNetworkError(op, fmt.Errorf("%w: decoding response: %v", fabrik.ErrTransport, err))
	}
	if decoded.Error != nil {
		return nil, fabrik.NewNetworkError(op,
			fmt.Errorf("%w: %s: %s", fabrik.ErrTransport, decoded.Error.Type, decoded.Error.Message))
	}
	if len(decoded.Choices) == 0 {
		return nil, fabrik.NewNetworkError(op, fmt.Errorf("%w: empty choices", fabrik.ErrTransport))
	}

	text := decoded.Choices[0].Message.Content

	return &GenerateResponse{
		Text:   text,
		Parsed: DecodeStructured(text, req.OutputSchema),
		Usage: TokenUsage{
			InputTokens:  decoded.Usage.PromptTokens,
			OutputTokens: decoded.Usage.CompletionTokens,
			TotalTokens:  decoded.Usage.TotalTokens,
		},
	}, nil
}

// truncate shortens s to at most n bytes with an ellipsis marker.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
