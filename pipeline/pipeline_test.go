package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fabrik-ai/fabrik/adapter"
	"github.com/fabrik-ai/fabrik/llm"
	"github.com/fabrik-ai/fabrik/profile"
	"github.com/fabrik-ai/fabrik/runner"
	"github.com/fabrik-ai/fabrik/scenario"
	"github.com/fabrik-ai/fabrik/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoAdapter replies with a fixed greeting.
type echoAdapter struct{}

func (echoAdapter) Send(ctx context.Context, message string, conv *adapter.ConversationContext) (*adapter.AgentResponse, error) {
	return &adapter.AgentResponse{Text: "Hello! How can I help?", LatencyMs: 20}, nil
}

func (echoAdapter) Reset() {}

// flowGateway routes planner and probe-synthesis calls.
type flowGateway struct{}

func (flowGateway) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	system := req.Messages[0].Content

	if strings.Contains(system, "design behavioral test scenarios") {
		return &llm.GenerateResponse{Parsed: map[string]any{
			"categories": []any{map[string]any{
				"name": "happy-path",
				"scenarios": []any{map[string]any{
					"name":            "Greeting",
					"slug":            "greeting",
					"description":     "says hello",
					"persona":         map[string]any{"role": "new customer"},
					"turns":           []any{"Hi there!"},
					"successCriteria": []any{"greets warmly"},
				}},
			}},
		}}, nil
	}

	if strings.Contains(system, "behavioral probes") {
		return &llm.GenerateResponse{Parsed: map[string]any{
			"description": "a greeter",
			"confidence":  0.5,
		}}, nil
	}

	// Judge calls during run.
	return &llm.GenerateResponse{Text: `{"score": 4, "reasoning": "warm"}`}, nil
}

func TestGenerateThenRunThenDiff(t *testing.T) {
	projectDir := t.TempDir()
	ctx := context.Background()

	// Generate from a live endpoint (probe pipeline).
	genReport, err := Generate(ctx, GenConfig{
		ProjectDir:  projectDir,
		Source:      profile.SourceRef{Kind: profile.SourceHTTPEndpoint, Value: "http://agent.local/chat"},
		Adapter:     echoAdapter{},
		Description: "a greeting agent",
		Gateway:     flowGateway{},
	})
	require.NoError(t, err)
	require.Len(t, genReport.Artifacts, 1)
	assert.FileExists(t, genReport.Artifacts[0])

	// The profile landed at the canonical location.
	_, err = profile.Load(projectDir, nil)
	require.NoError(t, err)

	// Run the generated artifacts and archive as v1.
	runReport, err := Run(ctx, RunConfig{
		ProjectDir: projectDir,
		Adapter:    echoAdapter{},
		Gateway:    flowGateway{},
		Version:    "v1",
	})
	require.NoError(t, err)
	require.Len(t, runReport.Results, 1)
	assert.Equal(t, "greeting", runReport.Results[0].Scenario)
	assert.True(t, runReport.Results[0].Passed)
	require.NotNil(t, runReport.Meta)

	// Run again as v2 and diff: nothing changed.
	_, err = Run(ctx, RunConfig{
		ProjectDir: projectDir,
		Adapter:    echoAdapter{},
		Gateway:    flowGateway{},
		Version:    "v2",
	})
	require.NoError(t, err)

	storePath := filepath.Join(projectDir, DefaultStorePath)
	diff, err := DiffVersions(ctx, storePath, "v1", "v2", trace.DiffOptions{})
	require.NoError(t, err)
	assert.False(t, diff.HasRegressions())
	assert.Equal(t, 1, diff.Summary.Unchanged)
}

func TestRun_NoScenariosNoProfile(t *testing.T) {
	report, err := Run(context.Background(), RunConfig{
		ProjectDir: t.TempDir(),
		Adapter:    echoAdapter{},
	})
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	assert.Nil(t, report.Meta)
}

func TestRun_RegistryScenariosIncluded(t *testing.T) {
	reg := scenario.NewRegistry()
	require.NoError(t, reg.Register(scenario.Scenario{
		Name: "compiled-in",
		Fn: func(ctx context.Context, sc *scenario.Context) error {
			resp, err := sc.Agent.Send(ctx, "hi")
			if err != nil {
				return err
			}
			sc.Assert.Contains(resp, "hello")
			return nil
		},
	}))

	report, err := Run(context.Background(), RunConfig{
		ProjectDir: t.TempDir(),
		Registry:   reg,
		Adapter:    echoAdapter{},
	})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.True(t, report.Results[0].Passed)
}

func TestRun_RequiresAdapter(t *testing.T) {
	_, err := Run(context.Background(), RunConfig{ProjectDir: t.TempDir()})
	require.Error(t, err)
}

func TestRun_RunnerOptionsRespected(t *testing.T) {
	dir := t.TempDir()
	scenarioDir := filepath.Join(dir, DefaultScenarioDir)
	require.NoError(t, os.MkdirAll(scenarioDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scenarioDir, "s.yaml"), []byte(`
name: quick
persona: {role: user}
turns: [{says: hi}]
assertions: [{type: contains, value: hello}]
`), 0o644))

	report, err := Run(context.Background(), RunConfig{
		ProjectDir: dir,
		Adapter:    echoAdapter{},
		Runner:     runner.Options{Parallelism: 2},
	})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.True(t, report.Results[0].Passed)
}
