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

// AnthropicConfig configures the Anthropic messages-API transport.
type AnthropicConfig struct {
	// BaseURL is the API root. Defaults to https://api.anthropic.com.
	BaseURL string

	// APIKey authenticates requests. Falls back to ANTHROPIC_API_KEY.
	APIKey string

	// Model is the model identifier to request (required).
	Model string

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// AnthropicGateway implements Gateway over the Anthropic messages API.
// The system prompt is carried in the top-level system field rather than
// the message list. Anthropic has no json_object response format; schema
// requests rely on the fence-tolerant JSON fallback.
type AnthropicGateway struct {
	config AnthropicConfig
	client *http.Client
}

// NewAnthropicGateway creates a gateway for the Anthropic messages API.
func NewAnthropicGateway(config AnthropicConfig) (*AnthropicGateway, error) {
	if config.Model == "" {
		return nil, fabrik.NewConfigurationError("NewAnthropicGateway",
			fmt.Errorf("%w: model is required", fabrik.ErrInvalidConfig))
	}

	if config.BaseURL == "" {
		config.BaseURL = "https://api.anthropic.com"
	}
	if config.APIKey == "" {
		config.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout:   120 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	return &AnthropicGateway{config: config, client: client}, nil
}

type anthropicRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate implements Gateway.
func (g *AnthropicGateway) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	const op = "AnthropicGateway.Generate"

	system, rest := SplitSystem(req.Messages)

	// No native structured-output mode: steer the model with the schema
	// and rely on the fence-tolerant JSON fallback on the way out.
	if req.OutputSchema != nil {
		if system != "" {
			system += "\n\n"
		}
		system += "Respond with a single JSON object matching this schema:\n" +
			req.OutputSchema.MarshalPretty()
	}

	maxTokens := 4096
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	body := anthropicRequest{
		Model:       g.config.Model,
		System:      system,
		Messages:    rest,
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fabrik.NewInternalError(op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.config.BaseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fabrik.NewInternalError(op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", g.config.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

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
			fmt.Errorf("%w: check ANTHROPIC_API_KEY", fabrik.ErrAuthExpired))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fabrik.NewNetworkError(op,
			fmt.Errorf("%w: status %d: %s", fabrik.ErrTransport, resp.StatusCode, truncate(string(data), 300)))
	}

	var decoded anthropicResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fabrik.NewNetworkError(op, fmt.Errorf("%w: decoding response: %v", fabrik.ErrTransport, err))
	}
	if decoded.Error != nil {
		return nil, fabrik.NewNetworkError(op,
			fmt.Errorf("%w: %s: %s", fabrik.ErrTransport, decoded.Error.Type, decoded.Error.Message))
	}

	var text string
	for _, part := range decoded.Content {
		if part.Type == "text" {
			text += part.Text
		}
	}

	return &GenerateResponse{
		Text:   text,
		Parsed: DecodeStructured(text, req.OutputSchema),
		Usage: TokenUsage{
			InputTokens:  decoded.Usage.InputTokens,
			OutputTokens: decoded.Usage.OutputTokens,
			TotalTokens:  decoded.Usage.InputTokens + decoded.Usage.OutputTokens,
		},
	}, nil
}
