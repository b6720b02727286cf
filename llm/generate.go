package llm

import (
	"context"

	"github.com/fabrik-ai/fabrik/schema"
)

// GenerateRequest represents a request for structured or free-form generation.
type GenerateRequest struct {
	// Messages contains the ordered conversation to send.
	Messages []Message

	// OutputSchema, when set, asks the gateway to attempt structured
	// decoding of the reply. Decoding is best-effort: see GenerateResponse.
	OutputSchema *schema.JSON

	// Temperature controls randomness in the output (0.0 to 2.0).
	Temperature *float64

	// MaxTokens limits the maximum number of tokens to generate.
	MaxTokens *int
}

// GenerateResponse represents the reply to a Generate call.
type GenerateResponse struct {
	// Text is the raw model output with no post-processing applied.
	Text string

	// Parsed is the decoded and schema-validated output. It is nil when no
	// schema was requested, or when decoding or validation failed.
	Parsed map[string]any

	// Usage contains token usage statistics for this call.
	Usage TokenUsage
}

// TokenUsage tracks token consumption for a request.
type TokenUsage struct {
	// InputTokens is the number of tokens in the input/prompt.
	InputTokens int `json:"input_tokens"`

	// OutputTokens is the number of tokens generated in the response.
	OutputTokens int `json:"output_tokens"`

	// TotalTokens is the sum of input and output tokens.
	TotalTokens int `json:"total_tokens"`
}

// Add combines two TokenUsage instances.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
}

// GenerateOption is a functional option for configuring GenerateRequest.
type GenerateOption func(*GenerateRequest)

// WithTemperature sets the temperature for the request.
func WithTemperature(t float64) GenerateOption {
	return func(r *GenerateRequest) {
		r.Temperature = &t
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(n int) GenerateOption {
	return func(r *GenerateRequest) {
		r.MaxTokens = &n
	}
}

// WithOutputSchema requests structured decoding against the given schema.
func WithOutputSchema(s schema.JSON) GenerateOption {
	return func(r *GenerateRequest) {
		r.OutputSchema = &s
	}
}

// NewGenerateRequest creates a GenerateRequest with the given messages and options.
func NewGenerateRequest(messages []Message, opts ...GenerateOption) GenerateRequest {
	req := GenerateRequest{Messages: messages}
	for _, opt := range opts {
		opt(&req)
	}
	return req
}

// Gateway performs generation against an LLM provider.
//
// Implementations must be safe for concurrent use; every call is
// independent. Transport failures (non-2xx, network, expired auth) return
// typed errors from the root fabrik package. Parse or validation failures
// of a requested schema do NOT error: Parsed is left nil.
type Gateway interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}
