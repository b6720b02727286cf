// Package profile defines the AgentProfile: the canonical structured
// understanding of an agent under test.
//
// A profile is produced once per discovery invocation, persisted to
// .fabrik/agent-profile.json under the project directory, and consumed by
// generation and (optionally) execution. Every field beyond identity must
// be derivable from the profile's evidence records; the profile's overall
// confidence is clamped to the maximum confidence of its evidence.
package profile
