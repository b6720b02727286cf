package profile

import (
	"time"
)

// SourceKind identifies where a profile was discovered from.
type SourceKind string

const (
	// SourceRepoURL is a remote repository checkout.
	SourceRepoURL SourceKind = "repo-url"

	// SourceLocalDir is a local source tree.
	SourceLocalDir SourceKind = "local-dir"

	// SourceHTTPEndpoint is a live HTTP endpoint probed behaviorally.
	SourceHTTPEndpoint SourceKind = "http-endpoint"

	// SourceAssistantID is a hosted assistant fetched via a structured API.
	SourceAssistantID SourceKind = "assistant-id"
)

// SourceRef is the tagged discovery source. It is set at construction and
// never changed afterwards.
type SourceRef struct {
	Kind  SourceKind `json:"kind"`
	Value string     `json:"value"`
}

// DiscoveredTool describes one capability the agent exposes.
type DiscoveredTool struct {
	// Name is the tool identifier. Names are unique within a profile
	// (case-sensitive; the first discovery wins on merge).
	Name string `json:"name"`

	// Description explains what the tool does.
	Description string `json:"description,omitempty"`

	// Parameters is the tool's input schema, when one was found.
	Parameters map[string]any `json:"parameters,omitempty"`

	// Citation names the evidence source the tool was extracted from.
	Citation string `json:"citation,omitempty"`
}

// ModelInfo records the model behind the agent, when discoverable.
type ModelInfo struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// Endpoint describes the agent's HTTP surface.
type Endpoint struct {
	URL            string            `json:"url"`
	Method         string            `json:"method,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	BodyFormat     string            `json:"body_format,omitempty"`
	ResponseFormat string            `json:"response_format,omitempty"`
}

// RelevantFile is one source file the discovery pipeline judged relevant.
type RelevantFile struct {
	Path    string `json:"path"`
	Role    string `json:"role,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
}

// Codebase records provenance for profiles discovered from source.
type Codebase struct {
	Framework     string         `json:"framework,omitempty"`
	EntryPoint    string         `json:"entry_point,omitempty"`
	RelevantFiles []RelevantFile `json:"relevant_files,omitempty"`
	Dependencies  []string       `json:"dependencies,omitempty"`
}

// Evidence is one append-only record justifying a profile field.
type Evidence struct {
	// Type classifies the evidence (e.g. "code", "readme", "probe", "inference").
	Type string `json:"type"`

	// Source names where the finding came from (a file path, a probe name).
	Source string `json:"source"`

	// Finding is the observation itself.
	Finding string `json:"finding"`

	// Confidence is the recorder's confidence in the finding (0..1).
	Confidence float64 `json:"confidence"`
}

// AgentProfile is the canonical output of discovery.
type AgentProfile struct {
	// DiscoveredAt is when discovery produced this profile.
	DiscoveredAt time.Time `json:"discovered_at"`

	// Source records where the profile came from. It is immutable after
	// construction: discovery sets it once via New and nothing rewrites it.
	Source SourceRef `json:"source"`

	// Confidence is the overall confidence in the profile (0..1), bounded
	// by the maximum confidence of the cited evidence.
	Confidence float64 `json:"confidence"`

	// Identity.
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Domain      string `json:"domain,omitempty"`

	// Capabilities.
	Tools        []DiscoveredTool `json:"tools,omitempty"`
	SystemPrompt string           `json:"system_prompt,omitempty"`
	ModelInfo    *ModelInfo       `json:"model_info,omitempty"`

	// Boundaries.
	KnownConstraints   []string `json:"known_constraints,omitempty"`
	ExpectedTone       string   `json:"expected_tone,omitempty"`
	SupportedLanguages []string `json:"supported_languages,omitempty"`
	MaxTurns           *int     `json:"max_turns,omitempty"`

	// Surface.
	Endpoint *Endpoint `json:"endpoint,omitempty"`

	// Provenance.
	Codebase *Codebase  `json:"codebase,omitempty"`
	Evidence []Evidence `json:"evidence,omitempty"`
}

// New creates a profile for the given source, stamped now.
func New(source SourceRef) *AgentProfile {
	return &AgentProfile{
		DiscoveredAt: time.Now().UTC(),
		Source:       source,
	}
}

// AddEvidence appends an evidence record. Evidence is append-only; records
// are never rewritten or removed.
func (p *AgentProfile) AddEvidence(e Evidence) {
	p.Evidence = append(p.Evidence, e)
}

// MaxEvidenceConfidence returns the highest confidence among the profile's
// evidence records, or zero when no evidence exists.
func (p *AgentProfile) MaxEvidenceConfidence() float64 {
	var max float64
	for _, e := range p.Evidence {
		if e.Confidence > max {
			max = e.Confidence
		}
	}
	return max
}

// ClampConfidence bounds the profile's confidence to [0, 1] and to the
// maximum evidence confidence. A profile can never claim more certainty
// than its evidence supports.
func (p *AgentProfile) ClampConfidence() {
	if p.Confidence < 0 {
		p.Confidence = 0
	}
	if p.Confidence > 1 {
		p.Confidence = 1
	}
	if max := p.MaxEvidenceConfidence(); p.Confidence > max {
		p.Confidence = max
	}
}

// MergeTools appends tools, keeping names unique. Names are compared
// case-sensitively and the first occurrence wins.
func (p *AgentProfile) MergeTools(tools []DiscoveredTool) {
	seen := make(map[string]bool, len(p.Tools))
	for _, t := range p.Tools {
		seen[t.Name] = true
	}
	for _, t := range tools {
		if t.Name == "" || seen[t.Name] {
			continue
		}
		seen[t.Name] = true
		p.Tools = append(p.Tools, t)
	}
}

// MergeConstraints unions constraint strings, preserving order of first
// appearance.
func (p *AgentProfile) MergeConstraints(constraints []string) {
	seen := make(map[string]bool, len(p.KnownConstraints))
	for _, c := range p.KnownConstraints {
		seen[c] = true
	}
	for _, c := range constraints {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		p.KnownConstraints = append(p.KnownConstraints, c)
	}
}

// ToolNames returns the profile's tool names in order.
func (p *AgentProfile) ToolNames() []string {
	names := make([]string, 0, len(p.Tools))
	for _, t := range p.Tools {
		names = append(names, t.Name)
	}
	return names
}

// HasTools reports whether the profile lists at least one tool.
func (p *AgentProfile) HasTools() bool {
	return len(p.Tools) > 0
}
