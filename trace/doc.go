// Package trace persists run results to a versioned SQLite archive and
// detects regressions between versions.
//
// Runs are stored under an opaque id and a user-supplied version label.
// Labels are many-to-one: loading by version resolves to the most recent
// run carrying that label. Saves are transactional, so a failed save never
// leaves a partial run behind.
//
// Diff is a pure function over two result sets: for every scenario present
// on both sides it reports regression, improvement, or unchanged; a
// scenario present on only one side is added or removed. A regression is a
// pass-to-fail flip or a score drop beyond the configured threshold, with
// the flip dominating when both apply.
package trace
