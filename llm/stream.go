package llm

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// StreamFormat identifies the wire format of a streamed model response.
type StreamFormat string

const (
	// FormatSSE is a text/event-stream of "data:" payloads. The decoder
	// recognizes the OpenAI chat delta, Anthropic content-block delta,
	// AI-SDK text-delta, and ChatGPT session event families.
	FormatSSE StreamFormat = "sse"

	// FormatDataStream is the AI-SDK data-stream protocol of
	// "<digit>:<payload>" lines. Prefix 0 carries text; all other prefixes
	// are ignored.
	FormatDataStream StreamFormat = "data-stream"

	// FormatAnthropicArray is a non-streamed Anthropic content array:
	// [{"type":"text","text":...}, ...].
	FormatAnthropicArray StreamFormat = "anthropic-array"
)

// StreamEvent is one decoded unit from a streamed response.
type StreamEvent struct {
	// Delta is the incremental text carried by this event, if any.
	Delta string

	// Done reports that the stream signalled completion.
	Done bool

	// Err is set when the payload was shaped like an error. The stream
	// decoder surfaces it and stops.
	Err error
}

// DecodeStream consumes a streamed response body in the given format and
// concatenates text deltas into a single string. Unknown events are
// ignored. An error-shaped payload fails the decode.
func DecodeStream(r io.Reader, format StreamFormat) (string, error) {
	switch format {
	case FormatSSE:
		return decodeSSE(r)
	case FormatDataStream:
		return decodeDataStream(r)
	case FormatAnthropicArray:
		return decodeAnthropicArray(r)
	default:
		return "", fmt.Errorf("unknown stream format %q", format)
	}
}

// decodeSSE accumulates data: payloads, decoding JSON when possible.
func decodeSSE(r io.Reader) (string, error) {
	var sb strings.Builder

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		ev := decodeSSEPayload(payload)
		if ev.Err != nil {
			return "", ev.Err
		}
		sb.WriteString(ev.Delta)
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading event stream: %w", err)
	}

	return sb.String(), nil
}

// decodeSSEPayload extracts a StreamEvent from one data: payload. Payloads
// that are not JSON are treated as raw text deltas.
func decodeSSEPayload(payload string) StreamEvent {
	var obj map[string]any
	if err := json.Unmarshal([]byte(payload), &obj); err != nil {
		return StreamEvent{Delta: payload}
	}

	// Error-shaped payloads fail the stream.
	if t, _ := obj["type"].(string); t == "error" {
		return StreamEvent{Err: fmt.Errorf("stream error event: %s", payload)}
	}
	if errVal, ok := obj["error"]; ok && errVal != nil {
		return StreamEvent{Err: fmt.Errorf("stream error payload: %v", errVal)}
	}
	if errText, ok := obj["errorText"].(string); ok && errText != "" {
		return StreamEvent{Err: fmt.Errorf("stream error payload: %s", errText)}
	}

	// OpenAI chat delta: choices[0].delta.content
	if choices, ok := obj["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if delta, ok := choice["delta"].(map[string]any); ok {
				if content, ok := delta["content"].(string); ok {
					return StreamEvent{Delta: content}
				}
			}
		}
		return StreamEvent{}
	}

	switch t, _ := obj["type"].(string); t {
	case "content_block_delta":
		// Anthropic content-block delta: delta.text
		if delta, ok := obj["delta"].(map[string]any); ok {
			if text, ok := delta["text"].(string); ok {
				return StreamEvent{Delta: text}
			}
		}
	case "text-delta":
		// AI-SDK text delta: textDelta or delta
		if text, ok := obj["textDelta"].(string); ok {
			return StreamEvent{Delta: text}
		}
		if text, ok := obj["delta"].(string); ok {
			return StreamEvent{Delta: text}
		}
	case "response.output_text.delta", "response.content_part.delta":
		// ChatGPT session event families: delta carries the text.
		if text, ok := obj["delta"].(string); ok {
			return StreamEvent{Delta: text}
		}
	case "response.completed":
		return StreamEvent{Done: true}
	}

	// Unknown event family: ignore.
	return StreamEvent{}
}

// decodeDataStream handles the AI-SDK "<digit>:<payload>" line protocol.
func decodeDataStream(r io.Reader) (string, error) {
	var sb strings.Builder

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 2 || line[1] != ':' || line[0] < '0' || line[0] > '9' {
			continue
		}

		// Only prefix 0 carries text; the payload is a JSON string.
		if line[0] != '0' {
			continue
		}

		var text string
		if err := json.Unmarshal([]byte(line[2:]), &text); err != nil {
			// Tolerate unquoted payloads.
			text = line[2:]
		}
		sb.WriteString(text)
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading data stream: %w", err)
	}

	return sb.String(), nil
}

// decodeAnthropicArray concatenates text parts from a content array.
func decodeAnthropicArray(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading content array: %w", err)
	}

	var parts []map[string]any
	if err := json.Unmarshal(data, &parts); err != nil {
		return "", fmt.Errorf("decoding content array: %w", err)
	}

	var sb strings.Builder
	for _, part := range parts {
		if t, _ := part["type"].(string); t != "text" {
			continue
		}
		if text, ok := part["text"].(string); ok {
			sb.WriteString(text)
		}
	}

	return sb.String(), nil
}

// SessionAccumulator collects ChatGPT session SSE events into a final text.
// Delta events are concatenated; if no deltas arrived, the text from the
// final response.completed envelope is used as fallback.
type SessionAccumulator struct {
	deltas    strings.Builder
	completed string
	done      bool
}

// Add processes one decoded SSE payload object.
func (a *SessionAccumulator) Add(obj map[string]any) {
	switch t, _ := obj["type"].(string); t {
	case "response.output_text.delta", "response.content_part.delta":
		if text, ok := obj["delta"].(string); ok {
			a.deltas.WriteString(text)
		}
	case "response.completed":
		a.done = true
		a.completed = extractCompletedText(obj)
	}
}

// Text returns the accumulated text, preferring streamed deltas over the
// completed-envelope fallback.
func (a *SessionAccumulator) Text() string {
	if a.deltas.Len() > 0 {
		return a.deltas.String()
	}
	return a.completed
}

// Done reports whether the final envelope was seen.
func (a *SessionAccumulator) Done() bool {
	return a.done
}

// extractCompletedText digs the output text out of a response.completed
// envelope: response.output[].content[].text for output_text parts.
func extractCompletedText(obj map[string]any) string {
	resp, ok := obj["response"].(map[string]any)
	if !ok {
		return ""
	}

	output, ok := resp["output"].([]any)
	if !ok {
		return ""
	}

	var sb strings.Builder
	for _, item := range output {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		content, ok := m["content"].([]any)
		if !ok {
			continue
		}
		for _, part := range content {
			pm, ok := part.(map[string]any)
			if !ok {
				continue
			}
			if t, _ := pm["type"].(string); t != "output_text" && t != "text" {
				continue
			}
			if text, ok := pm["text"].(string); ok {
				sb.WriteString(text)
			}
		}
	}

	return sb.String()
}
