// Package adapter provides normalized access to the agent under test.
//
// An Adapter sends one user message and returns an AgentResponse with the
// reply text, any tool calls the agent surfaced, and the measured latency.
// Adapters are stateless per send: when a conversation context with prior
// turns is supplied, the turns are re-sent with the request, so no
// server-side session is assumed.
//
// HTTPAdapter is the primary implementation. It supports two request
// framings (a messages array, or the legacy message/conversation_id body)
// and normalizes three response shapes: a JSON body, a text/event-stream,
// and the AI-SDK data-stream line protocol. SubprocessAdapter shells out
// to a local command and speaks JSON over stdin/stdout.
//
// Config is the tagged configuration variant consumed by the run
// coordinator; NewFromConfig builds the matching adapter.
package adapter
