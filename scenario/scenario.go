package scenario

import (
	"context"

	"github.com/fabrik-ai/fabrik/adapter"
	"github.com/fabrik-ai/fabrik/profile"
)

// Fn is the body of a scenario. It drives the agent through the handle on
// the Context and records assertions; returning an error marks the
// scenario failed.
type Fn func(ctx context.Context, sc *Context) error

// Scenario is the unit of execution: pure metadata until run, owning no
// resources.
type Scenario struct {
	// Name uniquely identifies the scenario within a run.
	Name string

	// Tags classify the scenario (e.g. "adversarial", "tone").
	Tags []string

	// Fn is the scenario body.
	Fn Fn
}

// SendFunc dispatches one persona message and returns the agent's reply.
// The runner supplies an implementation that records turns as it goes.
type SendFunc func(ctx context.Context, message string) (*adapter.AgentResponse, error)

// AgentHandle is the scenario's view of the agent under test.
type AgentHandle struct {
	send SendFunc
}

// NewAgentHandle wraps a send function.
func NewAgentHandle(send SendFunc) *AgentHandle {
	return &AgentHandle{send: send}
}

// Send dispatches one user message and returns the normalized response.
func (h *AgentHandle) Send(ctx context.Context, message string) (*adapter.AgentResponse, error) {
	return h.send(ctx, message)
}

// Context is the execution context handed to a scenario body. It carries
// the agent handle, the bound assertion surface, the optional profile, and
// a free-form scores map.
type Context struct {
	// Agent drives the conversation.
	Agent *AgentHandle

	// Assert records verdicts into this scenario's collector.
	Assert *Assert

	// Profile is the discovered agent profile, when one is bound.
	Profile *profile.AgentProfile

	// Scores is a free-form mapping scenarios can use for custom metrics.
	Scores map[string]float64
}
