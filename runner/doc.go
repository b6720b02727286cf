// Package runner executes scenarios against the agent under test.
//
// Each scenario runs with a fresh assertion collector, conversation
// context, and conversation id. The scenario body is raced against a
// timeout; whether it returns, fails, panics, or times out, all in-flight
// LLM-backed assertions are drained before the result is scored, so no
// verdict is lost to a fire-and-forget judge call.
//
// A scenario passes only when it produced no error, recorded at least one
// assertion, and every assertion passed. A scenario that asserts nothing
// never passes vacuously, though its score remains 1.0 so "silent tests"
// stay visible in diffs.
//
// Scenarios may run in parallel batches. Each scenario in a batch obtains
// its own adapter from the factory, and the process-wide assertion binding
// is only published when scenarios run sequentially. Results are returned
// in input order regardless of completion order.
package runner
