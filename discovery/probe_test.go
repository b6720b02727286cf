package discovery

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/fabrik-ai/fabrik/adapter"
	"github.com/fabrik-ai/fabrik/llm"
	"github.com/fabrik-ai/fabrik/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// probeAdapter answers probes and counts resets.
type probeAdapter struct {
	resets  atomic.Int32
	sends   atomic.Int32
	failAll bool
	failOne string
}

func (a *probeAdapter) Send(ctx context.Context, message string, conv *adapter.ConversationContext) (*adapter.AgentResponse, error) {
	a.sends.Add(1)

	if a.failAll {
		return nil, fmt.Errorf("connection refused")
	}
	if a.failOne != "" && containsProbeMessage(a.failOne, message) {
		return nil, fmt.Errorf("upstream 502")
	}

	resp := &adapter.AgentResponse{Text: "I can help you with your orders.", LatencyMs: 40}
	if containsProbeMessage("capability", message) {
		resp.ToolCalls = []adapter.ToolCall{{Name: "lookup_order"}}
	}
	return resp, nil
}

func (a *probeAdapter) Reset() { a.resets.Add(1) }

func containsProbeMessage(name, message string) bool {
	for _, p := range Probes {
		if p.Name == name {
			return p.Message == message
		}
	}
	return false
}

// probeGateway answers only the probe synthesis call.
type probeGateway struct {
	synth *llm.GenerateResponse
}

func (g *probeGateway) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	if g.synth != nil {
		return g.synth, nil
	}
	return &llm.GenerateResponse{Text: "no json"}, nil
}

func TestDiscoverHTTP(t *testing.T) {
	a := &probeAdapter{}
	gw := &probeGateway{synth: &llm.GenerateResponse{Parsed: map[string]any{
		"name":         "order-bot",
		"description":  "order support agent",
		"domain":       "customer-support",
		"expectedTone": "helpful",
		"constraints":  []any{"refuses out-of-scope requests"},
		"confidence":   0.55,
	}}}

	e := New(gw, nil, Options{})
	p := e.DiscoverHTTP(context.Background(), a, "http://localhost:3000/chat")

	assert.Equal(t, profile.SourceHTTPEndpoint, p.Source.Kind)
	require.NotNil(t, p.Endpoint)
	assert.Equal(t, "http://localhost:3000/chat", p.Endpoint.URL)

	// Five probes, each preceded by a reset.
	assert.Equal(t, int32(len(Probes)), a.sends.Load())
	assert.Equal(t, int32(len(Probes)), a.resets.Load())

	// Probe evidence recorded per probe.
	assert.GreaterOrEqual(t, len(p.Evidence), len(Probes))

	// Tool surfaced by the capability probe.
	assert.Equal(t, []string{"lookup_order"}, p.ToolNames())

	assert.Equal(t, "customer-support", p.Domain)
	assert.InDelta(t, 0.55, p.Confidence, 1e-9)
}

func TestDiscoverHTTP_ConfidenceClampedToProbeBand(t *testing.T) {
	a := &probeAdapter{}
	gw := &probeGateway{synth: &llm.GenerateResponse{Parsed: map[string]any{
		"description": "agent",
		"confidence":  0.95, // the model overclaims
	}}}

	e := New(gw, nil, Options{})
	p := e.DiscoverHTTP(context.Background(), a, "http://x")

	assert.LessOrEqual(t, p.Confidence, probeMaxConfidence)
	assert.GreaterOrEqual(t, p.Confidence, probeMinConfidence)
}

func TestDiscoverHTTP_ProbeFailureIsEvidenceNotFatal(t *testing.T) {
	a := &probeAdapter{failOne: "injection"}
	gw := &probeGateway{synth: &llm.GenerateResponse{Parsed: map[string]any{
		"description": "agent",
		"confidence":  0.4,
	}}}

	e := New(gw, nil, Options{})
	p := e.DiscoverHTTP(context.Background(), a, "http://x")

	var failedProbe bool
	for _, ev := range p.Evidence {
		if ev.Source == "injection" && ev.Confidence == 0.1 {
			failedProbe = true
		}
	}
	assert.True(t, failedProbe, "failed probe recorded as low-confidence evidence")
	assert.InDelta(t, 0.4, p.Confidence, 1e-9)
}

func TestDiscoverHTTP_AllProbesFailYieldsMinimal(t *testing.T) {
	a := &probeAdapter{failAll: true}
	e := New(&probeGateway{}, nil, Options{Description: "mystery agent"})

	p := e.DiscoverHTTP(context.Background(), a, "http://down")

	assert.InDelta(t, MinimalConfidence, p.Confidence, 1e-9)
	assert.Equal(t, "mystery agent", p.Description)
}
