package generate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize_StripsFence(t *testing.T) {
	src := "```go\npackage scenarios\n\nimport \"github.com/fabrik-ai/fabrik/scenario\"\n```"
	out := Sanitize(src)
	assert.False(t, strings.Contains(out, "```"))
	assert.True(t, strings.HasPrefix(out, "package scenarios"))
}

func TestSanitize_RemovesDisallowedSingleLine(t *testing.T) {
	src := `package scenarios

import "github.com/fabrik-ai/fabrik/scenario"

func run(ctx context.Context, sc *scenario.Context) error {
	resp, _ := sc.Agent.Send(ctx, "hi")
	sc.Assert.Contains(resp, "hello")
	sc.Assert.ToolCalled(resp, "lookup_order")
	sc.Assert.Guardrail(ctx, resp, "never leak PII")
	return nil
}`

	out := Sanitize(src)
	assert.Contains(t, out, "Contains(resp")
	assert.NotContains(t, out, "ToolCalled")
	assert.NotContains(t, out, "Guardrail")
}

func TestSanitize_RemovesDisallowedMultiLine(t *testing.T) {
	src := `package scenarios

import "github.com/fabrik-ai/fabrik/scenario"

func run(ctx context.Context, sc *scenario.Context) error {
	sc.Assert.Sentiment(
		ctx,
		resp,
		"friendly (and calm)",
	)
	sc.Assert.Contains(resp, "ok")
	return nil
}`

	out := Sanitize(src)
	assert.NotContains(t, out, "Sentiment")
	assert.NotContains(t, out, `"friendly (and calm)"`, "continuation lines removed by paren depth")
	assert.Contains(t, out, `sc.Assert.Contains(resp, "ok")`)
}

func TestSanitize_AwaitsBareLLMJudge(t *testing.T) {
	src := `package scenarios

import "github.com/fabrik-ai/fabrik/scenario"

func run(ctx context.Context, sc *scenario.Context) error {
	sc.Assert.LLMJudge(ctx, resp, "is it helpful?")
	return nil
}`

	out := Sanitize(src)
	assert.Contains(t, out, `_, _ = sc.Assert.LLMJudge(ctx, resp, "is it helpful?").Wait(ctx)`)
}

func TestSanitize_AwaitsMultiLineLLMJudge(t *testing.T) {
	src := `package scenarios

import "github.com/fabrik-ai/fabrik/scenario"

func run(ctx context.Context, sc *scenario.Context) error {
	sc.Assert.LLMJudge(
		ctx,
		resp,
		"judged (with nested parens)",
	)
	return nil
}`

	out := Sanitize(src)
	assert.Contains(t, out, "_, _ = sc.Assert.LLMJudge(")
	assert.Contains(t, out, ").Wait(ctx)")
}

func TestSanitize_LeavesConsumedJudgeAlone(t *testing.T) {
	src := `package scenarios

import "github.com/fabrik-ai/fabrik/scenario"

func run(ctx context.Context, sc *scenario.Context) error {
	_, _ = sc.Assert.LLMJudge(ctx, resp, "criteria").Wait(ctx)
	p := sc.Assert.LLMJudge(ctx, resp, "other")
	_, _ = p.Wait(ctx)
	return nil
}`

	out := Sanitize(src)
	assert.Equal(t, 1, strings.Count(out, `"criteria").Wait(ctx)`))
	assert.NotContains(t, out, ".Wait(ctx).Wait(ctx)")
}

func TestSanitize_PrependsImportWhenAbsent(t *testing.T) {
	src := `package scenarios

func run() {}`

	out := Sanitize(src)
	assert.Contains(t, out, CanonicalImport)

	lines := strings.Split(out, "\n")
	assert.Equal(t, "package scenarios", lines[0], "import goes after the package clause")
}

func TestSanitize_HeaderForBareSnippet(t *testing.T) {
	out := Sanitize("func run() {}")
	assert.True(t, strings.HasPrefix(out, "package scenarios"))
	assert.Contains(t, out, CanonicalImport)
}

func TestSanitize_KeepsExistingImport(t *testing.T) {
	src := "package scenarios\n\nimport \"" + CanonicalImport + "\"\n\nfunc run() {}"
	out := Sanitize(src)
	assert.Equal(t, 1, strings.Count(out, CanonicalImport))
}

func TestParenDelta_IgnoresStrings(t *testing.T) {
	tests := []struct {
		line string
		want int
	}{
		{`foo(`, 1},
		{`foo()`, 0},
		{`foo("(((")`, 0},
		{"foo(`)`)", 0},
		{`foo("a\"(b")`, 0},
		{`))`, -2},
	}
	for _, tt := range tests {
		if got := parenDelta(tt.line); got != tt.want {
			t.Errorf("parenDelta(%q) = %d, want %d", tt.line, got, tt.want)
		}
	}
}
