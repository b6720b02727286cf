// Package generate turns an agent profile into runnable scenario
// artifacts.
//
// The planner makes one gateway call that lays out a test plan: categories
// of scenario specs with personas, turns, and success criteria. Six
// categories are always planned (happy-path, edge-case, adversarial,
// guardrail, multi-turn, tone); tool-use scenarios are planned only when
// the profile lists at least one tool, and only against those tool names.
//
// The writer makes one gateway call per scenario to produce Go scenario
// source, then applies mandatory post-processing: markdown fences are
// stripped, calls to assertion methods outside the writer's allowed
// surface are removed (with their multi-line continuations, matched by
// paren depth), remaining asynchronous assertion calls are rewritten to
// consume their Pending handle, and the canonical scenario import is
// prepended when absent. The writer can also emit the equivalent YAML
// artifact deterministically, without a model in the loop.
package generate
