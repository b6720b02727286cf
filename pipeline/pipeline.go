package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	fabrik "github.com/fabrik-ai/fabrik"
	"github.com/fabrik-ai/fabrik/adapter"
	"github.com/fabrik-ai/fabrik/discovery"
	"github.com/fabrik-ai/fabrik/generate"
	"github.com/fabrik-ai/fabrik/llm"
	"github.com/fabrik-ai/fabrik/profile"
	"github.com/fabrik-ai/fabrik/runner"
	"github.com/fabrik-ai/fabrik/scenario"
	"github.com/fabrik-ai/fabrik/trace"
)

// DefaultScenarioDir is where generated artifacts live under a project.
const DefaultScenarioDir = ".fabrik/scenarios"

// DefaultStorePath is the trace database under a project.
const DefaultStorePath = ".fabrik/traces.db"

// GenConfig configures the generate flow.
type GenConfig struct {
	// ProjectDir is the project root; the profile and artifacts are
	// persisted beneath it.
	ProjectDir string

	// Source selects what to discover. Local directories run the codebase
	// pipeline; http endpoints run the probe pipeline (and need Adapter).
	Source profile.SourceRef

	// Adapter drives HTTP discovery probes.
	Adapter adapter.Adapter

	// Description is the user's hint about the agent.
	Description string

	// Plan options.
	Plan generate.PlanOptions

	// EmitGo also writes Go scenario sources next to the YAML artifacts.
	EmitGo bool

	Gateway llm.Gateway
	Logger  *slog.Logger
}

// GenReport summarizes a generate flow.
type GenReport struct {
	Profile   *profile.AgentProfile
	Plan      *generate.TestPlan
	Artifacts []string
}

// Generate discovers the agent, plans scenarios, and writes artifacts.
func Generate(ctx context.Context, cfg GenConfig) (*GenReport, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := discoveryEngine(cfg, logger)

	var p *profile.AgentProfile
	switch cfg.Source.Kind {
	case profile.SourceHTTPEndpoint:
		if cfg.Adapter == nil {
			return nil, fabrik.NewConfigurationError("pipeline.Generate",
				fmt.Errorf("%w: http discovery requires an adapter", fabrik.ErrInvalidConfig))
		}
		p = engine.DiscoverHTTP(ctx, cfg.Adapter, cfg.Source.Value)
		if err := profile.Save(p, cfg.ProjectDir); err != nil {
			return nil, err
		}
	default:
		var err error
		p, err = engine.DiscoverAndSave(ctx, cfg.Source, cfg.ProjectDir)
		if err != nil {
			return nil, err
		}
	}

	gen := generate.New(cfg.Gateway, logger, nil)
	plan, err := gen.Plan(ctx, p, cfg.Plan)
	if err != nil {
		return nil, err
	}

	outDir := filepath.Join(cfg.ProjectDir, DefaultScenarioDir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fabrik.NewStorageError("pipeline.Generate", err)
	}

	report := &GenReport{Profile: p, Plan: plan}
	for _, category := range plan.Categories {
		for _, spec := range category.Scenarios {
			data, err := gen.WriteYAML(category.Name, spec)
			if err != nil {
				logger.Warn("skipping unwritable scenario", "scenario", spec.Name, "error", err)
				continue
			}
			path := filepath.Join(outDir, generate.YAMLArtifactName(spec))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return nil, fabrik.NewStorageError("pipeline.Generate", err)
			}
			report.Artifacts = append(report.Artifacts, path)

			if cfg.EmitGo {
				src, err := gen.WriteScenario(ctx, p, category.Name, spec)
				if err != nil {
					logger.Warn("writer failed for scenario", "scenario", spec.Name, "error", err)
					continue
				}
				goPath := filepath.Join(outDir, generate.ArtifactName(spec))
				if err := os.WriteFile(goPath, []byte(src), 0o644); err != nil {
					return nil, fabrik.NewStorageError("pipeline.Generate", err)
				}
				report.Artifacts = append(report.Artifacts, goPath)
			}
		}
	}

	return report, nil
}

func discoveryEngine(cfg GenConfig, logger *slog.Logger) *discovery.Engine {
	// Repo sources arrive pre-fetched by the external CLI: the ref value
	// is already a local checkout path.
	var reader discovery.FileReader
	if cfg.Source.Kind == profile.SourceLocalDir || cfg.Source.Kind == profile.SourceRepoURL {
		reader = discovery.NewOSFileReader(cfg.Source.Value)
	}

	return discovery.New(cfg.Gateway, reader, discovery.Options{
		Description: cfg.Description,
		Logger:      logger,
	})
}

// RunConfig configures the run flow.
type RunConfig struct {
	// ProjectDir is the project root (profile, scenario dir, store).
	ProjectDir string

	// ScenarioDir overrides the artifact directory.
	ScenarioDir string

	// Registry supplies compiled-in Go scenarios.
	Registry *scenario.Registry

	// Adapter drives the agent under test (required).
	Adapter adapter.Adapter

	// Gateway powers LLM-backed assertions.
	Gateway llm.Gateway

	// Version, when set, archives the results under this label.
	Version string

	// StorePath overrides the trace database path.
	StorePath string

	// Runner options (timeout, retries, parallelism, observability).
	Runner runner.Options

	Logger *slog.Logger
}

// RunReport is the outcome of a run flow.
type RunReport struct {
	Results []runner.RunResult
	Meta    *trace.RunMeta
}

// Run loads the profile and scenarios, executes them, and optionally
// archives the results.
func Run(ctx context.Context, cfg RunConfig) (*RunReport, error) {
	if cfg.Adapter == nil {
		return nil, fabrik.NewConfigurationError("pipeline.Run",
			fmt.Errorf("%w: an adapter is required", fabrik.ErrInvalidConfig))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// A missing profile is not fatal: scenarios still run, judges just
	// lose the profile prelude.
	if cfg.Runner.Profile == nil {
		p, err := profile.Load(cfg.ProjectDir, logger)
		switch {
		case err == nil:
			cfg.Runner.Profile = p
		case errors.Is(err, fabrik.ErrProfileNotFound):
			logger.Info("no agent profile found, running without profile context")
		default:
			logger.Warn("failed to load agent profile", "error", err)
		}
	}

	scenarioDir := cfg.ScenarioDir
	if scenarioDir == "" {
		scenarioDir = filepath.Join(cfg.ProjectDir, DefaultScenarioDir)
	}

	var scenarios []scenario.Scenario
	if cfg.Registry != nil {
		scenarios = append(scenarios, cfg.Registry.All()...)
	}
	loaded, err := scenario.LoadDir(scenarioDir, logger)
	if err != nil {
		return nil, fabrik.NewStorageError("pipeline.Run", err)
	}
	scenarios = append(scenarios, loaded...)

	r := runner.NewWithAdapter(cfg.Gateway, cfg.Adapter, cfg.Runner)
	results := r.Run(ctx, scenarios)

	report := &RunReport{Results: results}

	if cfg.Version != "" {
		storePath := cfg.StorePath
		if storePath == "" {
			storePath = filepath.Join(cfg.ProjectDir, DefaultStorePath)
		}
		if err := os.MkdirAll(filepath.Dir(storePath), 0o755); err != nil {
			return nil, fabrik.NewStorageError("pipeline.Run", err)
		}

		store, err := trace.Open(storePath)
		if err != nil {
			return nil, err
		}
		defer fabrik.CloseWithLog(store, logger, "trace store")

		meta, err := store.SaveRun(ctx, cfg.Version, results)
		if err != nil {
			return nil, err
		}
		report.Meta = meta
	}

	return report, nil
}

// DiffVersions loads two versions from the store and compares them.
func DiffVersions(ctx context.Context, storePath, base, target string, opts trace.DiffOptions) (*trace.DiffReport, error) {
	store, err := trace.Open(storePath)
	if err != nil {
		return nil, err
	}
	defer fabrik.CloseWithLog(store, nil, "trace store")

	baseRun, err := store.LoadByVersion(ctx, base)
	if err != nil {
		return nil, err
	}
	targetRun, err := store.LoadByVersion(ctx, target)
	if err != nil {
		return nil, err
	}

	report := trace.Diff(baseRun.Results, targetRun.Results, opts)
	return &report, nil
}
