package discovery

import (
	"context"
	"strings"

	"github.com/fabrik-ai/fabrik/llm"
	"github.com/fabrik-ai/fabrik/profile"
	"github.com/fabrik-ai/fabrik/schema"
)

// synthSchema constrains the synthesis reply.
var synthSchema = schema.Object(map[string]schema.JSON{
	"name":         schema.String(),
	"description":  schema.String(),
	"domain":       schema.String(),
	"expectedTone": schema.String(),
	"languages":    schema.Array(schema.String()),
	"framework":    schema.String(),
	"confidence":   schema.NumberRange(0, 1),
}, "description", "confidence")

const synthSystemPrompt = `You synthesize an agent profile from extraction results gathered across a codebase.
Conflict rules: code evidence beats README claims, README beats inference; explicit statements beat implicit ones.
Respond with valid JSON only:
{"name": "...", "description": "...", "domain": "...", "expectedTone": "...", "languages": ["en"], "framework": "...", "confidence": <0..1>}
Confidence is your overall judgment of how well the evidence pins down the agent's behavior.`

// synthesize aggregates the extractions and makes the final gateway call.
// Mechanical aggregation (tool dedup, constraint union, prompt selection)
// happens in code; the model only fills the judgment fields.
func (e *Engine) synthesize(ctx context.Context, p *profile.AgentProfile, files []RankedFile, extractions []extraction) {
	var prompts []string
	var domains []string
	var findings []string

	for _, ex := range extractions {
		if ex.Failed {
			continue
		}

		// Tool names are unique, first extraction wins.
		p.MergeTools(ex.Tools)
		p.MergeConstraints(ex.Constraints)

		if ex.SystemPrompt != "" {
			prompts = append(prompts, ex.SystemPrompt)
		}
		if ex.Domain != "" {
			domains = append(domains, ex.Path+": "+ex.Domain)
		}
		if ex.ModelConfig != nil && p.ModelInfo == nil {
			p.ModelInfo = ex.ModelConfig
		}
		findings = append(findings, ex.Findings...)
	}

	// The longest prompt is most likely the complete one.
	for _, prompt := range prompts {
		if len(prompt) > len(p.SystemPrompt) {
			p.SystemPrompt = prompt
		}
	}

	codebase := &profile.Codebase{}
	for _, f := range files {
		codebase.RelevantFiles = append(codebase.RelevantFiles, profile.RelevantFile{
			Path: f.Path,
			Role: f.Reason,
		})
	}
	p.Codebase = codebase

	var sb strings.Builder
	if e.opts.Description != "" {
		sb.WriteString("User description of the agent: " + e.opts.Description + "\n\n")
	}
	sb.WriteString("Findings:\n")
	for _, f := range findings {
		sb.WriteString("- " + f + "\n")
	}
	if len(domains) > 0 {
		sb.WriteString("\nDomain signals (path: domain):\n")
		for _, d := range domains {
			sb.WriteString("- " + d + "\n")
		}
	}
	if len(p.KnownConstraints) > 0 {
		sb.WriteString("\nConstraints:\n- " + strings.Join(p.KnownConstraints, "\n- ") + "\n")
	}
	if p.SystemPrompt != "" {
		sb.WriteString("\nSystem prompt (verbatim, from code):\n" + Truncate(p.SystemPrompt) + "\n")
	}

	resp, err := e.gateway.Generate(ctx, llm.GenerateRequest{
		Messages: []llm.Message{
			llm.System(synthSystemPrompt),
			llm.User(sb.String()),
		},
		OutputSchema: &synthSchema,
	})
	if err != nil || resp.Parsed == nil {
		// Degrade: keep the aggregated fields with a conservative prior.
		e.logger.Warn("synthesis produced no structured output, keeping aggregation", "error", err)
		p.Confidence = 0.5
		p.ClampConfidence()
		return
	}
	if e.tracker != nil {
		e.tracker.Add("discovery.synthesize", resp.Usage)
	}

	if name, _ := resp.Parsed["name"].(string); name != "" {
		p.Name = name
	}
	if desc, _ := resp.Parsed["description"].(string); desc != "" {
		p.Description = desc
	}
	if domain, _ := resp.Parsed["domain"].(string); domain != "" {
		p.Domain = domain
	}
	if tone, _ := resp.Parsed["expectedTone"].(string); tone != "" {
		p.ExpectedTone = tone
	}
	if langs, ok := resp.Parsed["languages"].([]any); ok {
		for _, raw := range langs {
			if lang, ok := raw.(string); ok && lang != "" {
				p.SupportedLanguages = append(p.SupportedLanguages, lang)
			}
		}
	}
	if fw, _ := resp.Parsed["framework"].(string); fw != "" {
		p.Codebase.Framework = fw
	}
	if conf, ok := resp.Parsed["confidence"].(float64); ok {
		p.Confidence = conf
	}

	p.ClampConfidence()
}
