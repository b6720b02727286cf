// Package pipeline wires the subsystems into the three top-level flows:
// generate (discovery → planner → writer → artifacts on disk), run (load
// profile and scenarios → execute → optionally archive), and diff (load
// two versions from the trace store → regression report).
//
// The external CLI owns argument parsing and rendering; this package owns
// the orchestration and the trace-store handle, whose writes happen in one
// transaction per run.
package pipeline
