package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	fabrik "github.com/fabrik-ai/fabrik"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T, url string, mutate func(*HTTPConfig)) *HTTPAdapter {
	t.Helper()

	config := HTTPConfig{URL: url}
	if mutate != nil {
		mutate(&config)
	}
	a, err := NewHTTPAdapter(config)
	require.NoError(t, err)
	return a
}

func TestHTTPAdapter_MessagesFraming(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "Hello! How can I help?"})
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, nil)

	conv := &ConversationContext{}
	conv.Append("user", "earlier question")
	conv.Append("assistant", "earlier answer")

	resp, err := a.Send(context.Background(), "Hi there!", conv)
	require.NoError(t, err)

	assert.Equal(t, "Hello! How can I help?", resp.Text)
	assert.GreaterOrEqual(t, resp.LatencyMs, int64(0))

	// Prior turns are re-sent, newest message last.
	msgs := gotBody["messages"].([]any)
	require.Len(t, msgs, 3)
	last := msgs[2].(map[string]any)
	assert.Equal(t, "user", last["role"])
	assert.Equal(t, "Hi there!", last["content"])
}

func TestHTTPAdapter_LegacyFraming(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "ok"})
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, func(c *HTTPConfig) { c.RequestFormat = FormatLegacy })

	conv := &ConversationContext{ConversationID: "conv-7"}
	_, err := a.Send(context.Background(), "hello", conv)
	require.NoError(t, err)

	assert.Equal(t, "hello", gotBody["message"])
	assert.Equal(t, "conv-7", gotBody["conversation_id"])
	assert.NotContains(t, gotBody, "messages")
}

func TestHTTPAdapter_TextKeyPrecedence(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"message wins", `{"message":"a","text":"b"}`, "a"},
		{"text", `{"text":"b"}`, "b"},
		{"content", `{"content":"c"}`, "c"},
		{"response", `{"response":"d"}`, "d"},
		{"choices path", `{"choices":[{"message":{"content":"e"}}]}`, "e"},
		{"stringified fallback", `{"unrelated":1}`, `{"unrelated":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			a := newTestAdapter(t, srv.URL, nil)
			resp, err := a.Send(context.Background(), "hi", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Text)
		})
	}
}

func TestHTTPAdapter_ResponseParserPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"reply":"nested"}}`)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, func(c *HTTPConfig) { c.ResponseParser = "data.reply" })
	resp, err := a.Send(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "nested", resp.Text)
}

func TestHTTPAdapter_SSEResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintln(w, `data: {"choices":[{"delta":{"content":"str"}}]}`)
		fmt.Fprintln(w, `data: {"choices":[{"delta":{"content":"eamed"}}]}`)
		fmt.Fprintln(w, `data: [DONE]`)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, nil)
	resp, err := a.Send(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "streamed", resp.Text)
}

func TestHTTPAdapter_SSEErrorPayloadFailsSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintln(w, `data: {"type":"error","message":"backend exploded"}`)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, nil)
	_, err := a.Send(context.Background(), "hi", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fabrik.ErrTransport))
}

func TestHTTPAdapter_DataStreamResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `0:"Hello "`)
		fmt.Fprintln(w, `2:{"meta":1}`)
		fmt.Fprintln(w, `0:"world"`)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, nil)
	resp, err := a.Send(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", resp.Text)
}

func TestHTTPAdapter_ToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"text": "Looking that up.",
			"tool_calls": [
				{"name": "lookup_order", "arguments": {"order_id": "A-1"}},
				{"function": {"name": "initiate_refund", "arguments": "{\"amount\": 5}"}}
			]
		}`)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, nil)
	resp, err := a.Send(context.Background(), "refund order A-1", nil)
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, "lookup_order", resp.ToolCalls[0].Name)
	assert.Equal(t, "A-1", resp.ToolCalls[0].Arguments["order_id"])
	assert.Equal(t, "initiate_refund", resp.ToolCalls[1].Name)
	assert.Equal(t, float64(5), resp.ToolCalls[1].Arguments["amount"])
}

func TestHTTPAdapter_TokenUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"text":"ok","usage":{"prompt_tokens":7,"completion_tokens":3,"total_tokens":10}}`)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, nil)
	resp, err := a.Send(context.Background(), "hi", nil)
	require.NoError(t, err)
	require.NotNil(t, resp.TokenUsage)
	assert.Equal(t, 10, resp.TokenUsage.TotalTokens)
}

func TestHTTPAdapter_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, nil)
	_, err := a.Send(context.Background(), "hi", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fabrik.ErrTransport))
}

func TestHTTPAdapter_BodyTemplate(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, `{"text":"ok"}`)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, func(c *HTTPConfig) {
		c.BodyTemplate = `{"input": {{message}}, "mode": "eval"}`
	})

	_, err := a.Send(context.Background(), `say "hi"`, nil)
	require.NoError(t, err)
	assert.Equal(t, `say "hi"`, gotBody["input"])
	assert.Equal(t, "eval", gotBody["mode"])
}

func TestNewHTTPAdapter_RequiresURL(t *testing.T) {
	_, err := NewHTTPAdapter(HTTPConfig{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, fabrik.ErrInvalidConfig))
}
