package runner

import (
	"time"

	"github.com/fabrik-ai/fabrik/scenario"
)

// Turn roles.
const (
	// RolePersona marks a message sent by the simulated user.
	RolePersona = "persona"

	// RoleAgent marks a reply from the agent under test.
	RoleAgent = "agent"
)

// Turn is one conversation entry recorded during a scenario.
type Turn struct {
	// Role is RolePersona or RoleAgent.
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`

	// LatencyMs is the adapter latency for agent turns.
	LatencyMs int64 `json:"latency_ms,omitempty"`
}

// AttemptSummary records the outcome of one execution attempt when a
// scenario is retried. The final attempt's full result is the one
// persisted; earlier attempts survive here for flake analysis.
type AttemptSummary struct {
	Passed bool    `json:"passed"`
	Score  float64 `json:"score"`
	Error  string  `json:"error,omitempty"`
}

// RunResult is the per-scenario outcome. It is immutable once produced.
type RunResult struct {
	// Scenario is the scenario name.
	Scenario string `json:"scenario"`

	// Passed reports whether the scenario passed: no error, at least one
	// assertion, and every assertion passed.
	Passed bool `json:"passed"`

	// Score is the fraction of passed assertions in [0, 1]. A scenario
	// with no assertions scores 1.0 (but does not pass).
	Score float64 `json:"score"`

	// Assertions holds every recorded verdict in record order.
	Assertions []scenario.AssertionResult `json:"assertions"`

	// Turns is the ordered conversation transcript.
	Turns []Turn `json:"turns"`

	// Duration is the wall-clock execution time of the final attempt.
	Duration time.Duration `json:"duration"`

	// Error describes a scenario-level failure (body error, panic,
	// timeout). Empty for clean executions.
	Error string `json:"error,omitempty"`

	// Attempts holds per-attempt summaries when retries occurred,
	// including the final attempt.
	Attempts []AttemptSummary `json:"attempts,omitempty"`
}

// Score computes the fraction of passed assertions. An empty list scores
// 1.0: the absence of failures is preserved for diffing even though the
// pass rule rejects silent scenarios.
func Score(assertions []scenario.AssertionResult) float64 {
	if len(assertions) == 0 {
		return 1.0
	}

	passed := 0
	for _, a := range assertions {
		if a.Passed {
			passed++
		}
	}
	return float64(passed) / float64(len(assertions))
}

// Passed applies the pass rule: no error, at least one assertion, all
// assertions passed.
func Passed(assertions []scenario.AssertionResult, errText string) bool {
	if errText != "" || len(assertions) == 0 {
		return false
	}
	for _, a := range assertions {
		if !a.Passed {
			return false
		}
	}
	return true
}

// Silent reports whether the result is a "silent test": no error and no
// assertions. Reports surface these separately from genuine failures.
func (r RunResult) Silent() bool {
	return r.Error == "" && len(r.Assertions) == 0
}
