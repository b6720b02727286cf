package discovery

import (
	"context"
	"strings"
	"testing"

	"github.com/fabrik-ai/fabrik/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicRank(t *testing.T) {
	tree := []string{
		"README.md",
		"src/prompt.ts",
		"src/tools/registry.ts",
		"src/routes/chat.ts",
		"src/index.ts",
		"assets/logo.png",
		"docs/changelog.txt",
	}

	ranked := heuristicRank(tree)

	byPath := map[string]string{}
	for _, f := range ranked {
		byPath[f.Path] = f.Priority
	}

	assert.Equal(t, PriorityHigh, byPath["README.md"])
	assert.Equal(t, PriorityHigh, byPath["src/prompt.ts"])
	assert.Equal(t, PriorityHigh, byPath["src/tools/registry.ts"])
	assert.Equal(t, PriorityMedium, byPath["src/routes/chat.ts"])
	assert.Equal(t, PriorityMedium, byPath["src/index.ts"])

	assert.NotContains(t, byPath, "assets/logo.png")
	assert.NotContains(t, byPath, "docs/changelog.txt")

	// High-priority files come before medium.
	var sawMedium bool
	for _, f := range ranked {
		if f.Priority == PriorityMedium {
			sawMedium = true
		}
		if f.Priority == PriorityHigh && sawMedium {
			t.Fatal("high priority files must precede medium")
		}
	}
}

func TestSelectForExtraction(t *testing.T) {
	ranked := []RankedFile{
		{Path: "m1", Priority: PriorityMedium},
		{Path: "h1", Priority: PriorityHigh},
		{Path: "l1", Priority: PriorityLow},
		{Path: "h2", Priority: PriorityHigh},
	}

	selected := selectForExtraction(ranked, 3)
	require.Len(t, selected, 3)
	assert.Equal(t, "h1", selected[0].Path)
	assert.Equal(t, "h2", selected[1].Path)
	assert.Equal(t, "m1", selected[2].Path)
}

// routedGateway routes replies by a substring of the system prompt.
type routedGateway struct {
	routes map[string]*llm.GenerateResponse
}

func (g *routedGateway) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	system := ""
	if len(req.Messages) > 0 {
		system = req.Messages[0].Content
	}
	for key, resp := range g.routes {
		if strings.Contains(system, key) {
			return resp, nil
		}
	}
	return &llm.GenerateResponse{Text: "unrouted"}, nil
}

func TestRankFiles_ModelRanking(t *testing.T) {
	gw := &routedGateway{routes: map[string]*llm.GenerateResponse{
		"Rank the most promising": {
			Parsed: map[string]any{
				"files": []any{
					map[string]any{"path": "src/prompt.ts", "reason": "system prompt", "priority": "high"},
					map[string]any{"path": "not/in/tree.ts", "reason": "hallucinated", "priority": "high"},
					map[string]any{"path": "src/index.ts", "reason": "entry", "priority": "medium"},
				},
			},
		},
	}}

	e := New(gw, NewOSFileReader(t.TempDir()), Options{})
	ranked := e.rankFiles(context.Background(), []string{"src/prompt.ts", "src/index.ts"}, "", "")

	require.Len(t, ranked, 2, "paths outside the tree are dropped")
	assert.Equal(t, "src/prompt.ts", ranked[0].Path)
	assert.Equal(t, PriorityHigh, ranked[0].Priority)
}

func TestRankFiles_FallsBackToHeuristic(t *testing.T) {
	// No structured output from the gateway: Parsed stays nil.
	gw := &routedGateway{routes: map[string]*llm.GenerateResponse{
		"Rank the most promising": {Text: "I cannot produce JSON today."},
	}}

	e := New(gw, NewOSFileReader(t.TempDir()), Options{})
	ranked := e.rankFiles(context.Background(), []string{"README.md", "src/prompt.ts", "assets/x.png"}, "", "")

	require.NotEmpty(t, ranked)
	for _, f := range ranked {
		assert.Equal(t, "filename heuristic", f.Reason)
	}
}
