// Package scenario defines the unit of execution, a named, tagged
// procedure that drives the agent under test, together with the assertion
// kernel that records verdicts about the agent's responses.
//
// Assertions come in two families over a shared append-only collector.
// Local assertions (Contains, Matches, Latency, ToolCalled, ...) are
// synchronous and record exactly one result each. LLM-backed assertions
// (LLMJudge, Sentiment, Guardrail, Factuality, Custom) issue one gateway
// call each; they run asynchronously and return a Pending handle that the
// runner drains before a scenario completes, so a forgotten Wait never
// loses a verdict.
//
// No assertion ever panics outward or returns an error to the scenario:
// every failure mode (transport errors, judge parse failures, panics
// inside an assertion) is caught and recorded as a failed result.
//
// Scenarios are defined in Go and registered with a Registry, or loaded
// from YAML artifacts and compiled to the same in-memory form. YAML
// scenarios additionally support CEL predicate assertions evaluated over
// the response.
package scenario
