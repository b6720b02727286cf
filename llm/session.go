package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	fabrik "github.com/fabrik-ai/fabrik"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// sessionBackendURL is the fixed ChatGPT backend-api endpoint.
const sessionBackendURL = "https://chatgpt.com/backend-api/codex/responses"

// SessionConfig configures the ChatGPT session transport.
type SessionConfig struct {
	// AuthPath is the location of the session auth file.
	// Defaults to ~/.codex/auth.json.
	AuthPath string

	// Model is the model identifier to request (required).
	Model string

	// BaseURL overrides the backend endpoint (tests only).
	BaseURL string

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// SessionGateway implements Gateway against the ChatGPT backend-api using
// a bearer token from the local codex session file. The response is an SSE
// stream; output_text and content_part deltas are concatenated, with the
// final response.completed envelope as fallback when no deltas arrived.
//
// A missing or expired token surfaces ErrAuthExpired with a reauth hint;
// the caller should tell the user to run `codex login` again.
type SessionGateway struct {
	config SessionConfig
	client *http.Client
}

// sessionAuth mirrors the fields of ~/.codex/auth.json this transport needs.
type sessionAuth struct {
	Tokens struct {
		AccessToken string `json:"access_token"`
	} `json:"tokens"`
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
}

// NewSessionGateway creates a gateway over the ChatGPT session transport.
func NewSessionGateway(config SessionConfig) (*SessionGateway, error) {
	if config.Model == "" {
		return nil, fabrik.NewConfigurationError("NewSessionGateway",
			fmt.Errorf("%w: model is required", fabrik.ErrInvalidConfig))
	}

	if config.AuthPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fabrik.NewConfigurationError("NewSessionGateway", err)
		}
		config.AuthPath = filepath.Join(home, ".codex", "auth.json")
	}
	if config.BaseURL == "" {
		config.BaseURL = sessionBackendURL
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout:   180 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	return &SessionGateway{config: config, client: client}, nil
}

// loadToken reads and validates the session token from the auth file.
func (g *SessionGateway) loadToken() (string, error) {
	const op = "SessionGateway.loadToken"

	data, err := os.ReadFile(g.config.AuthPath)
	if err != nil {
		return "", fabrik.NewAuthError(op,
			fmt.Errorf("%w: cannot read %s, run `codex login` to authenticate", fabrik.ErrAuthExpired, g.config.AuthPath))
	}

	var auth sessionAuth
	if err := json.Unmarshal(data, &auth); err != nil {
		return "", fabrik.NewAuthError(op,
			fmt.Errorf("%w: malformed %s, run `codex login` to reauthenticate", fabrik.ErrAuthExpired, g.config.AuthPath))
	}

	token := auth.Tokens.AccessToken
	if token == "" {
		token = auth.AccessToken
	}
	if token == "" {
		return "", fabrik.NewAuthError(op,
			fmt.Errorf("%w: no access token in %s, run `codex login`", fabrik.ErrAuthExpired, g.config.AuthPath))
	}

	if auth.ExpiresAt != "" {
		if exp, err := time.Parse(time.RFC3339, auth.ExpiresAt); err == nil && time.Now().After(exp) {
			return "", fabrik.NewAuthError(op,
				fmt.Errorf("%w: session expired at %s, run `codex login` to reauthenticate", fabrik.ErrAuthExpired, auth.ExpiresAt))
		}
	}

	return token, nil
}

type sessionRequest struct {
	Model        string           `json:"model"`
	Instructions string           `json:"instructions,omitempty"`
	Input        []sessionMessage `json:"input"`
	Stream       bool             `json:"stream"`
}

type sessionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generate implements Gateway.
func (g *SessionGateway) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	const op = "SessionGateway.Generate"

	token, err := g.loadToken()
	if err != nil {
		return nil, err
	}

	system, rest := SplitSystem(req.Messages)

	input := make([]sessionMessage, 0, len(rest))
	for _, m := range rest {
		input = append(input, sessionMessage{Role: string(m.Role), Content: m.Content})
	}

	payload, err := json.Marshal(sessionRequest{
		Model:        g.config.Model,
		Instructions: system,
		Input:        input,
		Stream:       true,
	})
	if err != nil {
		return nil, fabrik.NewInternalError(op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fabrik.NewInternalError(op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fabrik.NewNetworkError(op, fmt.Errorf("%w: %v", fabrik.ErrTransport, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fabrik.NewAuthError(op,
			fmt.Errorf("%w: backend rejected the session token, run `codex login` to reauthenticate", fabrik.ErrAuthExpired))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fabrik.NewNetworkError(op,
			fmt.Errorf("%w: status %d", fabrik.ErrTransport, resp.StatusCode))
	}

	text, err := decodeSessionStream(resp.Body)
	if err != nil {
		return nil, fabrik.NewNetworkError(op, fmt.Errorf("%w: %v", fabrik.ErrTransport, err))
	}

	return &GenerateResponse{
		Text:   text,
		Parsed: DecodeStructured(text, req.OutputSchema),
	}, nil
}

// decodeSessionStream reads session SSE events into a SessionAccumulator.
func decodeSessionStream(r io.Reader) (string, error) {
	var acc SessionAccumulator

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

		var obj map[string]any
		if err := json.Unmarshal([]byte(payload), &obj); err != nil {
			continue
		}
		if t, _ := obj["type"].(string); t == "error" {
			return "", fmt.Errorf("stream error event: %s", payload)
		}
		acc.Add(obj)
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading session stream: %w", err)
	}

	return acc.Text(), nil
}
