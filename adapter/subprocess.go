package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	fabrik "github.com/fabrik-ai/fabrik"
)

// SubprocessAdapter spawns a local command per send and speaks JSON over
// standard streams: the request is written to stdin as
// {"message": ..., "turns": [...]}, the reply is read from stdout. A JSON
// reply is searched for the same top-level text keys and tool_calls array
// as an HTTP JSON body; the choices path, the response parser and usage
// are not read. Output that is not JSON, or has no text key, is used
// verbatim as the text.
type SubprocessAdapter struct {
	config SubprocessConfig
}

// NewSubprocessAdapter creates an adapter that shells out per send.
func NewSubprocessAdapter(config SubprocessConfig) (*SubprocessAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fabrik.NewConfigurationError("NewSubprocessAdapter", err)
	}
	return &SubprocessAdapter{config: config}, nil
}

// Reset implements Adapter. Each send spawns a fresh process, so Reset is
// a no-op.
func (a *SubprocessAdapter) Reset() {}

// Send implements Adapter.
func (a *SubprocessAdapter) Send(ctx context.Context, message string, conv *ConversationContext) (*AgentResponse, error) {
	const op = "SubprocessAdapter.Send"

	input := map[string]any{"message": message}
	if conv != nil && len(conv.Turns) > 0 {
		input["turns"] = conv.Turns
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fabrik.NewInternalError(op, err)
	}

	cmd := exec.CommandContext(ctx, a.config.Command, a.config.Args...)
	cmd.Dir = a.config.Cwd
	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return nil, fabrik.NewExecutionError(op,
			fmt.Errorf("%w: %v: %s", fabrik.ErrTransport, err, clip(stderr.String(), 300)))
	}
	latency := time.Since(start).Milliseconds()

	var body map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &body); err != nil {
		return &AgentResponse{
			Text:      stdout.String(),
			LatencyMs: latency,
			Raw:       stdout.Bytes(),
		}, nil
	}

	resp := &AgentResponse{LatencyMs: latency, Raw: stdout.Bytes()}
	for _, key := range textKeys {
		if text, ok := body[key].(string); ok {
			resp.Text = text
			break
		}
	}
	if resp.Text == "" {
		resp.Text = stdout.String()
	}
	resp.ToolCalls = extractToolCalls(body)

	return resp, nil
}
