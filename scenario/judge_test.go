package scenario

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	fabrik "github.com/fabrik-ai/fabrik"
	"github.com/fabrik-ai/fabrik/adapter"
	"github.com/fabrik-ai/fabrik/llm"
	"github.com/fabrik-ai/fabrik/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGateway replies with a fixed text after an optional delay.
type stubGateway struct {
	mu    sync.Mutex
	reply string
	err   error
	delay time.Duration
	calls []llm.GenerateRequest
}

func (g *stubGateway) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()

	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.err != nil {
		return nil, g.err
	}
	return &llm.GenerateResponse{Text: g.reply}, nil
}

func (g *stubGateway) lastUserPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.calls) == 0 {
		return ""
	}
	msgs := g.calls[len(g.calls)-1].Messages
	return msgs[len(msgs)-1].Content
}

func waitResult(t *testing.T, p *Pending) AssertionResult {
	t.Helper()
	result, err := p.Wait(context.Background())
	require.NoError(t, err)
	return result
}

func TestLLMJudge_Thresholds(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		threshold float64
		want      bool
	}{
		{"score meets default threshold", `{"score": 4, "reasoning": "good"}`, 0, true},
		{"score at default threshold", `{"score": 3, "reasoning": "ok"}`, 0, true},
		{"score below default threshold", `{"score": 2, "reasoning": "weak"}`, 0, false},
		{"custom threshold", `{"score": 4, "reasoning": "good"}`, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &stubGateway{reply: tt.reply}
			a := NewAssert(NewCollector(), gw, nil)

			result := waitResult(t, a.LLMJudge(context.Background(),
				&adapter.AgentResponse{Text: "reply"}, "is it helpful?",
				JudgeOptions{Threshold: tt.threshold}))

			assert.Equal(t, tt.want, result.Passed)
			assert.NotEmpty(t, result.Reasoning)
		})
	}
}

func TestSentiment_PassRules(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  bool
	}{
		{"matches true", `{"matches": true, "score": 1, "reasoning": "r"}`, true},
		{"score carries it", `{"matches": false, "score": 4, "reasoning": "r"}`, true},
		{"neither", `{"matches": false, "score": 2, "reasoning": "r"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &stubGateway{reply: tt.reply}
			a := NewAssert(NewCollector(), gw, nil)

			result := waitResult(t, a.Sentiment(context.Background(),
				&adapter.AgentResponse{Text: "reply"}, "friendly"))
			assert.Equal(t, tt.want, result.Passed)
		})
	}
}

func TestGuardrail_PassRules(t *testing.T) {
	gw := &stubGateway{reply: `{"passed": true, "reasoning": "upheld"}`}
	a := NewAssert(NewCollector(), gw, nil)
	result := waitResult(t, a.Guardrail(context.Background(),
		&adapter.AgentResponse{Text: "reply"}, "never share PII"))
	assert.True(t, result.Passed)

	gw2 := &stubGateway{reply: `{"passed": false, "reasoning": "violated"}`}
	a2 := NewAssert(NewCollector(), gw2, nil)
	result2 := waitResult(t, a2.Guardrail(context.Background(),
		&adapter.AgentResponse{Text: "reply"}, "never share PII"))
	assert.False(t, result2.Passed)
}

func TestFactuality_PassRules(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  bool
	}{
		{"factual true", `{"factual": true, "score": 1, "reasoning": "r"}`, true},
		{"score carries it", `{"factual": false, "score": 3, "reasoning": "r"}`, true},
		{"neither", `{"factual": false, "score": 1, "reasoning": "r"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &stubGateway{reply: tt.reply}
			a := NewAssert(NewCollector(), gw, nil)
			result := waitResult(t, a.Factuality(context.Background(),
				&adapter.AgentResponse{Text: "reply"}, "the sky is blue"))
			assert.Equal(t, tt.want, result.Passed)
		})
	}
}

func TestJudge_FencedReplyTolerated(t *testing.T) {
	gw := &stubGateway{reply: "```json\n{\"score\": 5, \"reasoning\": \"great\"}\n```"}
	a := NewAssert(NewCollector(), gw, nil)

	result := waitResult(t, a.LLMJudge(context.Background(),
		&adapter.AgentResponse{Text: "reply"}, "criteria"))
	assert.True(t, result.Passed)
}

func TestJudge_ParseFailureRecordsError(t *testing.T) {
	gw := &stubGateway{reply: "I think it's pretty good overall."}
	c := NewCollector()
	a := NewAssert(c, gw, nil)

	result := waitResult(t, a.LLMJudge(context.Background(),
		&adapter.AgentResponse{Text: "reply"}, "criteria"))

	assert.False(t, result.Passed)
	assert.Contains(t, result.Error, "did not parse")
	assert.Contains(t, result.Error, "pretty good")
	assert.Equal(t, 1, c.Len())
}

func TestJudge_TransportFailureRecordsError(t *testing.T) {
	gw := &stubGateway{err: fabrik.NewNetworkError("stub", fabrik.ErrTransport)}
	a := NewAssert(NewCollector(), gw, nil)

	result := waitResult(t, a.LLMJudge(context.Background(),
		&adapter.AgentResponse{Text: "reply"}, "criteria"))

	assert.False(t, result.Passed)
	assert.Contains(t, result.Error, "judge call failed")
}

func TestJudge_NoGateway(t *testing.T) {
	a := NewAssert(NewCollector(), nil, nil)
	result := waitResult(t, a.LLMJudge(context.Background(),
		&adapter.AgentResponse{Text: "reply"}, "criteria"))
	assert.False(t, result.Passed)
	assert.Contains(t, result.Error, "no gateway")
}

func TestJudge_UnawaitedIsDrained(t *testing.T) {
	gw := &stubGateway{reply: `{"score": 4, "reasoning": "fine"}`, delay: 50 * time.Millisecond}
	c := NewCollector()
	a := NewAssert(c, gw, nil)

	// Fire and forget: the scenario body would return immediately.
	a.LLMJudge(context.Background(), &adapter.AgentResponse{Text: "reply"}, "criteria")
	assert.Equal(t, 0, c.Len(), "judge should still be in flight")

	require.NoError(t, c.Drain(context.Background()))

	results := c.Results()
	require.Len(t, results, 1)
	assert.True(t, results[0].Passed)
}

func TestJudge_ProfileContextPrelude(t *testing.T) {
	p := profile.New(profile.SourceRef{Kind: profile.SourceLocalDir, Value: "."})
	p.Description = "customer support agent"
	p.ExpectedTone = "friendly"
	p.MergeTools([]profile.DiscoveredTool{{Name: "lookup_order"}})
	p.MergeConstraints([]string{"never promise refunds"})

	gw := &stubGateway{reply: `{"score": 4, "reasoning": "r"}`}
	a := NewAssert(NewCollector(), gw, p)

	waitResult(t, a.LLMJudge(context.Background(), &adapter.AgentResponse{Text: "x"}, "criteria"))

	prompt := gw.lastUserPrompt()
	for _, fragment := range []string{"customer support agent", "never promise refunds", "lookup_order", "friendly"} {
		if !strings.Contains(prompt, fragment) {
			t.Errorf("judge prompt missing profile fragment %q", fragment)
		}
	}
}

func TestJudge_NoProfileNoPrelude(t *testing.T) {
	gw := &stubGateway{reply: `{"score": 4, "reasoning": "r"}`}
	a := NewAssert(NewCollector(), gw, nil)

	waitResult(t, a.LLMJudge(context.Background(), &adapter.AgentResponse{Text: "x"}, "criteria"))
	assert.NotContains(t, gw.lastUserPrompt(), "Context about the agent")
}
