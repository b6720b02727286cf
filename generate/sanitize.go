package generate

import (
	"regexp"
	"strings"

	"github.com/fabrik-ai/fabrik/llm"
)

// CanonicalImport is the scenario package every generated file must import.
const CanonicalImport = "github.com/fabrik-ai/fabrik/scenario"

// disallowedCall matches a statement that begins a call to an assertion
// method outside the writer's allowed surface. The writer may only emit
// Contains, NotContains, Matches, JSONSchema, Latency, TokenUsage, and
// LLMJudge; everything else is stripped.
var disallowedCall = regexp.MustCompile(
	`^\s*[\w().]*\.(ToolCalled|ToolNotCalled|Guardrail|Sentiment|Factuality|Custom)\(`)

// asyncCall matches a statement beginning an asynchronous assertion call.
// After the disallowed pass only LLMJudge remains, but the matcher covers
// the whole async family defensively.
var asyncCall = regexp.MustCompile(
	`^\s*[\w().]*\.(LLMJudge|Custom|Sentiment|Guardrail|Factuality)\(`)

// Sanitize applies the mandatory post-processing to writer output:
//
//  1. strip a markdown fence wrapper;
//  2. remove statements calling disallowed assertion methods, including
//     multi-line continuations, by matching parens to depth zero;
//  3. rewrite remaining async assertion statements to consume their
//     Pending handle so fire-and-forget is impossible;
//  4. prepend the canonical scenario import when absent.
func Sanitize(src string) string {
	src = llm.StripFence(src)
	src = removeDisallowed(src)
	src = awaitAsync(src)
	src = ensureImport(src)
	return src
}

// removeDisallowed drops banned assertion statements and their multi-line
// continuations.
func removeDisallowed(src string) string {
	lines := strings.Split(src, "\n")
	var kept []string

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if !disallowedCall.MatchString(line) {
			kept = append(kept, line)
			continue
		}

		// Skip until the call's parens balance back to zero.
		depth := parenDelta(line)
		for depth > 0 && i+1 < len(lines) {
			i++
			depth += parenDelta(lines[i])
		}
	}

	return strings.Join(kept, "\n")
}

// awaitAsync rewrites bare async assertion statements into
// "_, _ = <call>.Wait(ctx)" form. Statements that already consume the
// handle (assignment or an existing Wait) are left alone.
func awaitAsync(src string) string {
	lines := strings.Split(src, "\n")
	var out []string

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if !asyncCall.MatchString(line) || isConsumed(line) {
			out = append(out, line)
			continue
		}

		// Collect the full statement by paren balance.
		stmt := []string{line}
		depth := parenDelta(line)
		for depth > 0 && i+1 < len(lines) {
			i++
			stmt = append(stmt, lines[i])
			depth += parenDelta(lines[i])
		}

		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		stmt[0] = indent + "_, _ = " + strings.TrimLeft(stmt[0], " \t")
		stmt[len(stmt)-1] = stmt[len(stmt)-1] + ".Wait(ctx)"

		out = append(out, stmt...)
	}

	return strings.Join(out, "\n")
}

// isConsumed reports whether the statement already uses the call's result.
func isConsumed(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.Contains(trimmed, ":=") ||
		strings.Contains(trimmed, "= ") && !strings.HasPrefix(trimmed, "=") ||
		strings.Contains(trimmed, ".Wait(") ||
		strings.HasPrefix(trimmed, "return ")
}

// ensureImport prepends the canonical scenario import when missing.
// Sources with no package clause get a full header.
func ensureImport(src string) string {
	if strings.Contains(src, CanonicalImport) {
		return src
	}

	importLine := "import \"" + CanonicalImport + "\""

	if !strings.Contains(src, "package ") {
		return "package scenarios\n\n" + importLine + "\n\n" + src
	}

	lines := strings.Split(src, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "package ") {
			rest := append([]string{importLine, ""}, lines[i+1:]...)
			return strings.Join(append(lines[:i+1], append([]string{""}, rest...)...), "\n")
		}
	}

	return importLine + "\n\n" + src
}

// parenDelta counts the paren balance change of one line, ignoring parens
// inside string literals.
func parenDelta(line string) int {
	depth := 0
	var inString, inRaw bool
	var escaped bool

	for _, r := range line {
		switch {
		case escaped:
			escaped = false
		case inRaw:
			if r == '`' {
				inRaw = false
			}
		case inString:
			if r == '\\' {
				escaped = true
			} else if r == '"' {
				inString = false
			}
		case r == '"':
			inString = true
		case r == '`':
			inRaw = true
		case r == '(':
			depth++
		case r == ')':
			depth--
		}
	}

	return depth
}
