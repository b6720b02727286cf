package discovery

import (
	"context"
	"log/slog"
	"strings"

	"github.com/fabrik-ai/fabrik/llm"
	"github.com/fabrik-ai/fabrik/profile"
)

// MaxExtractFiles caps how many ranked files are extracted.
const MaxExtractFiles = 20

// MinimalConfidence is assigned when discovery produced no evidence.
const MinimalConfidence = 0.2

// Stage names the discovery state machine positions. The pipeline moves
// start → orient → rank → extract → synthesize → persist → done, and may
// jump to done from any stage when no evidence was produced.
type Stage string

const (
	StageStart      Stage = "start"
	StageOrient     Stage = "orient"
	StageRank       Stage = "rank"
	StageExtract    Stage = "extract"
	StageSynthesize Stage = "synthesize"
	StagePersist    Stage = "persist"
	StageDone       Stage = "done"
)

// Options configures an Engine.
type Options struct {
	// Description is the user's free-form hint about the agent. It
	// annotates minimal profiles and steers synthesis.
	Description string

	// Concurrency bounds the extraction fan-out. Zero uses the default 5.
	Concurrency int

	// ExtractLimit caps extraction files. Zero uses MaxExtractFiles.
	ExtractLimit int

	// Logger receives pipeline progress. Nil uses slog.Default().
	Logger *slog.Logger

	// Tracker accumulates gateway token usage per stage when set.
	Tracker *llm.TokenTracker
}

// Engine runs the codebase discovery pipeline.
type Engine struct {
	gateway llm.Gateway
	reader  FileReader
	opts    Options
	logger  *slog.Logger
	tracker *llm.TokenTracker
}

// New creates a discovery engine over a gateway and a source tree reader.
func New(gateway llm.Gateway, reader FileReader, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ExtractLimit <= 0 {
		opts.ExtractLimit = MaxExtractFiles
	}

	return &Engine{
		gateway: gateway,
		reader:  reader,
		opts:    opts,
		logger:  logger,
		tracker: opts.Tracker,
	}
}

// Discover runs the codebase pipeline and always returns a profile. When a
// stage produces no evidence the pipeline short-circuits to the minimal
// 0.2-confidence shell annotated with the user's description hint.
func (e *Engine) Discover(ctx context.Context, source profile.SourceRef) *profile.AgentProfile {
	p := profile.New(source)
	p.Description = e.opts.Description

	stage := StageStart
	advance := func(next Stage) {
		stage = next
		e.logger.Debug("discovery stage", "stage", string(stage))
	}

	// Orientation: enumerate the tree, read README and manifest best-effort.
	advance(StageOrient)
	if e.reader == nil {
		e.logger.Warn("no file reader for source, producing minimal profile",
			"source", string(source.Kind))
		advance(StageDone)
		return e.minimal(p)
	}
	tree, err := e.reader.ListTree()
	if err != nil || len(tree) == 0 {
		e.logger.Warn("no readable files, producing minimal profile", "error", err)
		advance(StageDone)
		return e.minimal(p)
	}

	readme := e.readFirst(tree, func(base string) bool {
		return readmePattern.MatchString(base)
	})
	manifest := e.readFirst(tree, func(base string) bool {
		switch base {
		case "package.json", "pyproject.toml", "go.mod", "Cargo.toml", "requirements.txt":
			return true
		}
		return false
	})

	// Ranking: model-ranked with heuristic fallback.
	advance(StageRank)
	ranked := e.rankFiles(ctx, tree, readme, manifest)
	if len(ranked) == 0 {
		e.logger.Warn("ranking selected no files, producing minimal profile")
		advance(StageDone)
		return e.minimal(p)
	}

	// Extraction: bounded fan-out over the top files.
	advance(StageExtract)
	selected := selectForExtraction(ranked, e.opts.ExtractLimit)
	extractions := e.extractFiles(ctx, p, selected)

	if len(p.Evidence) == 0 {
		e.logger.Warn("extraction produced no evidence, producing minimal profile")
		advance(StageDone)
		return e.minimal(p)
	}

	// Synthesis: fold extractions into the final profile fields.
	advance(StageSynthesize)
	e.synthesize(ctx, p, selected, extractions)

	advance(StageDone)
	return p
}

// DiscoverAndSave runs Discover and persists the profile under projectDir.
func (e *Engine) DiscoverAndSave(ctx context.Context, source profile.SourceRef, projectDir string) (*profile.AgentProfile, error) {
	p := e.Discover(ctx, source)

	e.logger.Debug("discovery stage", "stage", string(StagePersist))
	if err := profile.Save(p, projectDir); err != nil {
		return p, err
	}
	return p, nil
}

// readFirst reads the first tree entry whose basename matches.
func (e *Engine) readFirst(tree []string, match func(base string) bool) string {
	for _, path := range tree {
		base := path[strings.LastIndexByte(path, '/')+1:]
		if !match(base) {
			continue
		}
		content, err := e.reader.ReadFile(path)
		if err != nil {
			continue
		}
		return content
	}
	return ""
}

// minimal finishes a profile that gathered no evidence.
func (e *Engine) minimal(p *profile.AgentProfile) *profile.AgentProfile {
	p.Confidence = MinimalConfidence
	p.AddEvidence(profile.Evidence{
		Type:       "inference",
		Source:     "discovery",
		Finding:    "no usable evidence; profile is a minimal shell",
		Confidence: MinimalConfidence,
	})
	p.ClampConfidence()
	return p
}
