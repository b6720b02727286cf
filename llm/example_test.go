package llm_test

import (
	"fmt"
	"strings"

	"github.com/fabrik-ai/fabrik/llm"
	"github.com/fabrik-ai/fabrik/schema"
)

// ExampleStripFence demonstrates removing a markdown fence from model
// output before JSON decoding.
func ExampleStripFence() {
	raw := "```json\n{\"domain\": \"customer-support\"}\n```"
	fmt.Println(llm.StripFence(raw))

	// Output: {"domain": "customer-support"}
}

// ExampleDecodeStructured demonstrates the best-effort structured decode
// every gateway applies when an output schema is requested: fences and
// surrounding prose are tolerated, and failures yield nil rather than an
// error.
func ExampleDecodeStructured() {
	s := schema.Object(map[string]schema.JSON{
		"score": schema.NumberRange(0, 5),
	}, "score")

	parsed := llm.DecodeStructured(`Here is my verdict: {"score": 4}`, &s)
	fmt.Println(parsed["score"])

	// A reply that violates the schema decodes to nil, never an error.
	fmt.Println(llm.DecodeStructured(`{"score": 9}`, &s) == nil)

	// Output:
	// 4
	// true
}

// ExampleDecodeStream demonstrates concatenating text deltas from a
// streamed response. The decoder recognizes the OpenAI, Anthropic, and
// AI-SDK event families; unknown events are ignored.
func ExampleDecodeStream() {
	body := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		`data: [DONE]`,
	}, "\n")

	text, err := llm.DecodeStream(strings.NewReader(body), llm.FormatSSE)
	if err != nil {
		fmt.Println("decode failed:", err)
		return
	}
	fmt.Println(text)

	// Output: Hello
}

// ExampleSplitSystem demonstrates separating the system prompt from the
// conversation, as the Anthropic transport requires.
func ExampleSplitSystem() {
	system, rest := llm.SplitSystem([]llm.Message{
		llm.System("You judge agent responses."),
		llm.User("Judge this reply."),
	})

	fmt.Println(system)
	fmt.Println(len(rest))

	// Output:
	// You judge agent responses.
	// 1
}

// ExampleTokenTracker demonstrates accumulating token usage across
// pipeline stages.
func ExampleTokenTracker() {
	tracker := llm.NewTokenTracker()
	tracker.Add("discovery.rank", llm.TokenUsage{InputTokens: 900, OutputTokens: 100, TotalTokens: 1000})
	tracker.Add("discovery.extract", llm.TokenUsage{InputTokens: 400, OutputTokens: 100, TotalTokens: 500})

	fmt.Println(tracker.Total().TotalTokens)
	fmt.Println(tracker.ByStage("discovery.rank").TotalTokens)

	// Output:
	// 1500
	// 1000
}
