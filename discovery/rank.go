package discovery

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/fabrik-ai/fabrik/llm"
	"github.com/fabrik-ai/fabrik/schema"
)

// MaxRankedFiles caps the ranking output.
const MaxRankedFiles = 25

// Priority levels for ranked files.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// RankedFile is one file the ranking stage selected for extraction.
type RankedFile struct {
	Path     string `json:"path"`
	Reason   string `json:"reason"`
	Priority string `json:"priority"`
}

// rankSchema constrains the ranking reply.
var rankSchema = schema.Object(map[string]schema.JSON{
	"files": schema.Array(schema.Object(map[string]schema.JSON{
		"path":     schema.String(),
		"reason":   schema.String(),
		"priority": schema.Enum(PriorityHigh, PriorityMedium, PriorityLow),
	}, "path", "priority")),
}, "files")

const rankSystemPrompt = `You analyze a repository to find the files most likely to reveal how its AI agent works: system prompts, tool definitions, model configuration, behavioral constraints, and routing. Rank the most promising files.
Respond with valid JSON only: {"files": [{"path": "...", "reason": "...", "priority": "high|medium|low"}]}
List at most 25 files, best first. Only use paths from the provided tree.`

// rankFiles asks the gateway to rank the tree; when the reply does not
// validate it falls back to the filename heuristic.
func (e *Engine) rankFiles(ctx context.Context, tree []string, readme, manifest string) []RankedFile {
	var sb strings.Builder
	sb.WriteString("File tree:\n")
	for _, p := range tree {
		sb.WriteString(p)
		sb.WriteByte('\n')
	}
	if readme != "" {
		sb.WriteString("\nREADME:\n" + Truncate(readme))
	}
	if manifest != "" {
		sb.WriteString("\nManifest:\n" + Truncate(manifest))
	}

	resp, err := e.gateway.Generate(ctx, llm.GenerateRequest{
		Messages: []llm.Message{
			llm.System(rankSystemPrompt),
			llm.User(sb.String()),
		},
		OutputSchema: &rankSchema,
	})
	if err != nil || resp.Parsed == nil {
		e.logger.Warn("file ranking fell back to heuristic",
			"error", err,
			"parsed", resp != nil && resp.Parsed != nil)
		return heuristicRank(tree)
	}
	if e.tracker != nil {
		e.tracker.Add("discovery.rank", resp.Usage)
	}

	known := make(map[string]bool, len(tree))
	for _, p := range tree {
		known[p] = true
	}

	var ranked []RankedFile
	files, _ := resp.Parsed["files"].([]any)
	for _, raw := range files {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		path, _ := m["path"].(string)
		priority, _ := m["priority"].(string)
		reason, _ := m["reason"].(string)
		if !known[path] {
			continue
		}
		ranked = append(ranked, RankedFile{Path: path, Reason: reason, Priority: priority})
		if len(ranked) >= MaxRankedFiles {
			break
		}
	}

	if len(ranked) == 0 {
		return heuristicRank(tree)
	}
	return ranked
}

// Heuristic filename patterns used when the model ranking fails.
var (
	highPattern   = regexp.MustCompile(`(?i)(prompt|system|instruction|config|tool|agent)`)
	mediumPattern = regexp.MustCompile(`(?i)(route|handler|api|index|main)`)
	readmePattern = regexp.MustCompile(`(?i)^readme`)
)

// heuristicRank classifies files by path: the README check looks at the
// basename, the high and medium patterns at the whole relative path, so
// directory names such as tools/ or routes/ count.
func heuristicRank(tree []string) []RankedFile {
	var high, medium []RankedFile

	for _, path := range tree {
		base := path[strings.LastIndexByte(path, '/')+1:]
		switch {
		case readmePattern.MatchString(base), highPattern.MatchString(path):
			high = append(high, RankedFile{Path: path, Reason: "filename heuristic", Priority: PriorityHigh})
		case mediumPattern.MatchString(path):
			medium = append(medium, RankedFile{Path: path, Reason: "filename heuristic", Priority: PriorityMedium})
		}
	}

	ranked := append(high, medium...)
	if len(ranked) > MaxRankedFiles {
		ranked = ranked[:MaxRankedFiles]
	}
	return ranked
}

// selectForExtraction takes the top high- and medium-priority files, at
// most limit.
func selectForExtraction(ranked []RankedFile, limit int) []RankedFile {
	var selected []RankedFile
	for _, priority := range []string{PriorityHigh, PriorityMedium} {
		for _, f := range ranked {
			if f.Priority != priority {
				continue
			}
			selected = append(selected, f)
			if len(selected) >= limit {
				return selected
			}
		}
	}
	return selected
}

// String renders a ranked file for logs.
func (f RankedFile) String() string {
	return fmt.Sprintf("%s (%s)", f.Path, f.Priority)
}
