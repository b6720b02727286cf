// Package fabrik is an evaluation harness for conversational AI agents.
//
// Fabrik builds a structured understanding of a target agent (the agent
// under test) and uses that understanding to generate, execute, and
// regression-diff behavioral test scenarios. The module is organized as
// four coupled subsystems plus their shared leaves:
//
//   - discovery: autonomous exploration of an agent's source tree or live
//     endpoint, producing a canonical profile.AgentProfile.
//   - generate: a planner + writer that consume a profile and emit runnable
//     scenario artifacts (Go source or YAML).
//   - runner: drives the agent through multi-turn conversations, collects
//     assertion verdicts from a non-throwing collector, and computes a
//     deterministic score per scenario.
//   - trace: a versioned SQLite run archive plus a regression detector.
//
// Shared leaves: llm (structured-generation gateway over OpenAI-compatible,
// Anthropic, and ChatGPT-session transports), adapter (normalized access to
// the agent under test), scenario (the scenario and assertion kernel), and
// schema (JSON-Schema values used for structured LLM output).
//
// The root package carries the shared error model: a structured Error type
// with operation and kind, sentinel errors for the failure modes the
// pipeline distinguishes, and small logging helpers.
//
// The overall principle is that the pipeline never crashes: each subsystem
// has one designated degraded output (an empty extraction, a minimal
// profile, a failed assertion, a timed-out scenario, a zero-row version).
package fabrik
