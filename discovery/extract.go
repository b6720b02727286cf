package discovery

import (
	"context"
	"sync"

	"github.com/fabrik-ai/fabrik/llm"
	"github.com/fabrik-ai/fabrik/profile"
	"github.com/fabrik-ai/fabrik/schema"
)

// DefaultConcurrency is the extraction fan-out.
const DefaultConcurrency = 5

// extraction is what one file contributed.
type extraction struct {
	Path         string
	SystemPrompt string
	Tools        []profile.DiscoveredTool
	Constraints  []string
	ModelConfig  *profile.ModelInfo
	Domain       string
	Findings     []string
	Failed       bool
}

// extractSchema constrains the per-file extraction reply.
var extractSchema = schema.Object(map[string]schema.JSON{
	"systemPrompt": schema.String(),
	"tools": schema.Array(schema.Object(map[string]schema.JSON{
		"name":        schema.String(),
		"description": schema.String(),
	}, "name")),
	"constraints": schema.Array(schema.String()),
	"modelConfig": schema.Object(map[string]schema.JSON{
		"provider": schema.String(),
		"model":    schema.String(),
	}),
	"domain":   schema.String(),
	"findings": schema.Array(schema.String()),
})

const extractSystemPrompt = `You extract AI-agent signals from one source file. Look for: a verbatim system prompt, tool/function definitions, behavioral constraints, model configuration, and the agent's domain.
Respond with valid JSON only:
{"systemPrompt": "...", "tools": [{"name": "...", "description": "..."}], "constraints": ["..."], "modelConfig": {"provider": "...", "model": "..."}, "domain": "...", "findings": ["..."]}
Omit or leave empty anything the file does not show. Never invent content that is not in the file.`

// extractFiles reads and extracts the selected files with a bounded
// fan-out. Per-file failures degrade to empty extractions with a
// low-confidence evidence record; they never abort the pipeline.
func (e *Engine) extractFiles(ctx context.Context, p *profile.AgentProfile, files []RankedFile) []extraction {
	concurrency := e.opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]extraction, len(files))
	sem := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(idx int, file RankedFile) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = e.extractOne(ctx, file)
		}(i, f)
	}
	wg.Wait()

	// Record evidence sequentially so the profile's evidence order is
	// deterministic in file order.
	for _, ex := range results {
		if ex.Failed {
			p.AddEvidence(profile.Evidence{
				Type:       "code",
				Source:     ex.Path,
				Finding:    "extraction failed; file contributed nothing",
				Confidence: 0.1,
			})
			continue
		}
		for _, finding := range ex.Findings {
			p.AddEvidence(profile.Evidence{
				Type:       "code",
				Source:     ex.Path,
				Finding:    finding,
				Confidence: 0.8,
			})
		}
		if ex.SystemPrompt != "" {
			p.AddEvidence(profile.Evidence{
				Type:       "code",
				Source:     ex.Path,
				Finding:    "verbatim system prompt found",
				Confidence: 0.9,
			})
		}
	}

	return results
}

// extractOne reads one file and runs the extraction call.
func (e *Engine) extractOne(ctx context.Context, file RankedFile) extraction {
	content, err := e.reader.ReadFile(file.Path)
	if err != nil {
		e.logger.Warn("cannot read ranked file", "path", file.Path, "error", err)
		return extraction{Path: file.Path, Failed: true}
	}

	resp, err := e.gateway.Generate(ctx, llm.GenerateRequest{
		Messages: []llm.Message{
			llm.System(extractSystemPrompt),
			llm.User("File: " + file.Path + "\n\n" + Truncate(content)),
		},
		OutputSchema: &extractSchema,
	})
	if err != nil || resp.Parsed == nil {
		e.logger.Warn("extraction produced no structured output", "path", file.Path, "error", err)
		return extraction{Path: file.Path, Failed: true}
	}
	if e.tracker != nil {
		e.tracker.Add("discovery.extract", resp.Usage)
	}

	return decodeExtraction(file.Path, resp.Parsed)
}

// decodeExtraction maps the parsed reply onto an extraction.
func decodeExtraction(path string, parsed map[string]any) extraction {
	ex := extraction{Path: path}

	ex.SystemPrompt, _ = parsed["systemPrompt"].(string)
	ex.Domain, _ = parsed["domain"].(string)

	if tools, ok := parsed["tools"].([]any); ok {
		for _, raw := range tools {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			name, _ := m["name"].(string)
			if name == "" {
				continue
			}
			desc, _ := m["description"].(string)
			ex.Tools = append(ex.Tools, profile.DiscoveredTool{
				Name:        name,
				Description: desc,
				Citation:    path,
			})
		}
	}

	if constraints, ok := parsed["constraints"].([]any); ok {
		for _, raw := range constraints {
			if c, ok := raw.(string); ok && c != "" {
				ex.Constraints = append(ex.Constraints, c)
			}
		}
	}

	if mc, ok := parsed["modelConfig"].(map[string]any); ok {
		provider, _ := mc["provider"].(string)
		model, _ := mc["model"].(string)
		if provider != "" || model != "" {
			ex.ModelConfig = &profile.ModelInfo{Provider: provider, Model: model}
		}
	}

	if findings, ok := parsed["findings"].([]any); ok {
		for _, raw := range findings {
			if f, ok := raw.(string); ok && f != "" {
				ex.Findings = append(ex.Findings, f)
			}
		}
	}

	return ex
}
