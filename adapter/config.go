package adapter

import (
	"fmt"

	fabrik "github.com/fabrik-ai/fabrik"
)

// Kind discriminates adapter configurations.
type Kind string

const (
	// KindHTTP targets an HTTP endpoint.
	KindHTTP Kind = "http"

	// KindSubprocess spawns a local command per send.
	KindSubprocess Kind = "subprocess"

	// KindOpenAIAssistant targets a hosted OpenAI assistant.
	KindOpenAIAssistant Kind = "openai-assistant"

	// KindCustom loads a user-supplied adapter module.
	KindCustom Kind = "custom"
)

// RequestFormat selects the HTTP request framing.
type RequestFormat string

const (
	// FormatMessages sends {"messages":[{role,content}...]} (default).
	FormatMessages RequestFormat = "messages"

	// FormatLegacy sends {"message": ..., "conversation_id": ...}.
	FormatLegacy RequestFormat = "legacy"
)

// Config is the tagged adapter configuration variant.
type Config struct {
	// Kind selects which adapter to build.
	Kind Kind `json:"kind" yaml:"kind"`

	// HTTP configures the http kind.
	HTTP *HTTPConfig `json:"http,omitempty" yaml:"http,omitempty"`

	// Subprocess configures the subprocess kind.
	Subprocess *SubprocessConfig `json:"subprocess,omitempty" yaml:"subprocess,omitempty"`

	// AssistantID configures the openai-assistant kind.
	AssistantID string `json:"assistant_id,omitempty" yaml:"assistant_id,omitempty"`

	// Module configures the custom kind.
	Module string `json:"module,omitempty" yaml:"module,omitempty"`
}

// HTTPConfig configures an HTTPAdapter.
type HTTPConfig struct {
	// URL is the endpoint to POST to (required).
	URL string `json:"url" yaml:"url"`

	// Headers are added to every request.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// RequestFormat selects the framing; defaults to FormatMessages.
	RequestFormat RequestFormat `json:"request_format,omitempty" yaml:"request_format,omitempty"`

	// BodyTemplate, when set, overrides the framing entirely: the literal
	// {{message}} marker is replaced with the JSON-quoted user message.
	BodyTemplate string `json:"body_template,omitempty" yaml:"body_template,omitempty"`

	// ResponseParser, when set, is a dot-path into the JSON reply naming
	// the text field (e.g. "data.reply").
	ResponseParser string `json:"response_parser,omitempty" yaml:"response_parser,omitempty"`

	// Streaming forces event-stream decoding regardless of content type.
	Streaming bool `json:"streaming,omitempty" yaml:"streaming,omitempty"`
}

// Validate checks the http configuration.
func (c *HTTPConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: http adapter requires url", fabrik.ErrInvalidConfig)
	}
	switch c.RequestFormat {
	case "", FormatMessages, FormatLegacy:
	default:
		return fmt.Errorf("%w: unknown request format %q", fabrik.ErrInvalidConfig, c.RequestFormat)
	}
	return nil
}

// SubprocessConfig configures a SubprocessAdapter.
type SubprocessConfig struct {
	// Command is the executable to spawn (required).
	Command string `json:"command" yaml:"command"`

	// Args are passed to the command.
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`

	// Cwd is the working directory for the command.
	Cwd string `json:"cwd,omitempty" yaml:"cwd,omitempty"`
}

// Validate checks the subprocess configuration.
func (c *SubprocessConfig) Validate() error {
	if c.Command == "" {
		return fmt.Errorf("%w: subprocess adapter requires command", fabrik.ErrInvalidConfig)
	}
	return nil
}

// NewFromConfig builds the adapter matching the configuration.
// The openai-assistant and custom kinds are recognized but not built here;
// they return a configuration error naming the missing integration.
func NewFromConfig(config Config) (Adapter, error) {
	const op = "adapter.NewFromConfig"

	switch config.Kind {
	case KindHTTP:
		if config.HTTP == nil {
			return nil, fabrik.NewConfigurationError(op,
				fmt.Errorf("%w: http kind requires http config", fabrik.ErrInvalidConfig))
		}
		return NewHTTPAdapter(*config.HTTP)

	case KindSubprocess:
		if config.Subprocess == nil {
			return nil, fabrik.NewConfigurationError(op,
				fmt.Errorf("%w: subprocess kind requires subprocess config", fabrik.ErrInvalidConfig))
		}
		return NewSubprocessAdapter(*config.Subprocess)

	case KindOpenAIAssistant:
		return nil, fabrik.NewConfigurationError(op,
			fmt.Errorf("%w: openai-assistant adapter requires the assistants integration", fabrik.ErrInvalidConfig))

	case KindCustom:
		return nil, fabrik.NewConfigurationError(op,
			fmt.Errorf("%w: custom adapter modules must be registered by the embedding program", fabrik.ErrInvalidConfig))

	default:
		return nil, fabrik.NewConfigurationError(op,
			fmt.Errorf("%w: unknown adapter kind %q", fabrik.ErrInvalidConfig, config.Kind))
	}
}
