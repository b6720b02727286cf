// Package llm provides the structured-generation gateway used by discovery,
// generation, and the LLM-backed assertions.
//
// The gateway exposes a single operation:
//
//	resp, err := gw.Generate(ctx, llm.GenerateRequest{
//		Messages: []llm.Message{
//			{Role: llm.RoleSystem, Content: "You rank files."},
//			{Role: llm.RoleUser, Content: tree},
//		},
//		OutputSchema: &rankSchema,
//	})
//
// When an output schema is requested, the gateway attempts structured
// decoding: provider-native structured output where the transport supports
// it, otherwise a markdown-fence strip followed by JSON parse and schema
// validation. Decode failures never error; resp.Parsed is simply nil and
// the caller decides whether to retry or fall back. Transport failures are
// typed errors from the root fabrik package.
//
// Three transports are provided: OpenAIGateway (chat completions with
// response_format json_object), AnthropicGateway (messages API with the
// system prompt separated out), and SessionGateway (the ChatGPT backend-api
// with a bearer token read from ~/.codex/auth.json). RetryGateway decorates
// any of them with bounded exponential backoff on transport errors.
package llm
