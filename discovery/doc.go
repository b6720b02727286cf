// Package discovery explores an agent under test and produces its
// canonical profile.
//
// Two pipelines are provided. The codebase pipeline walks a source tree
// (orient), asks the gateway to rank the files worth reading (rank, with a
// filename-heuristic fallback), extracts agent signals from the top files
// under a bounded fan-out (extract), and folds everything into a profile
// with one final gateway call (synthesize). The HTTP pipeline sends a
// fixed sequence of behavioral probes at a live endpoint and synthesizes a
// lower-confidence profile from the responses.
//
// Discovery never fails outright: every degraded path (unreadable tree,
// garbled ranking, per-file extraction errors, probe failures) still
// produces a profile, bottoming out at a minimal 0.2-confidence shell
// annotated with the user's description hint.
package discovery
