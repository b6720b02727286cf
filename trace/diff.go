package trace

import (
	"sort"

	"github.com/fabrik-ai/fabrik/runner"
)

// DefaultThreshold is the score drop beyond which a scenario regresses.
const DefaultThreshold = 0.05

// Status classifies one scenario's change between two versions.
type Status string

const (
	// StatusRegression is a pass-to-fail flip or a score drop beyond the
	// threshold.
	StatusRegression Status = "regression"

	// StatusImprovement is a fail-to-pass flip or a score rise beyond the
	// threshold.
	StatusImprovement Status = "improvement"

	// StatusUnchanged means the scenario stayed within the threshold.
	StatusUnchanged Status = "unchanged"

	// StatusAdded means the scenario exists only in the target version.
	StatusAdded Status = "added"

	// StatusRemoved means the scenario exists only in the base version.
	StatusRemoved Status = "removed"
)

// ScenarioDiff is the comparison for one scenario.
type ScenarioDiff struct {
	// Scenario is the scenario name.
	Scenario string `json:"scenario"`

	// Status classifies the change.
	Status Status `json:"status"`

	// BaseScore and TargetScore are absent for added/removed scenarios.
	BaseScore   *float64 `json:"base_score,omitempty"`
	TargetScore *float64 `json:"target_score,omitempty"`

	// ScoreDelta is target minus base; zero for added/removed.
	ScoreDelta float64 `json:"score_delta"`

	// PassFlipped reports a pass/fail flip in either direction.
	PassFlipped bool `json:"pass_flipped"`
}

// Summary counts diff outcomes.
type Summary struct {
	Regressions  int `json:"regressions"`
	Improvements int `json:"improvements"`
	Unchanged    int `json:"unchanged"`
	Added        int `json:"added"`
	Removed      int `json:"removed"`
}

// DiffReport is the full comparison of two result sets.
type DiffReport struct {
	// Scenarios holds per-scenario comparisons, sorted by name.
	Scenarios []ScenarioDiff `json:"scenarios"`

	// Summary counts the outcomes.
	Summary Summary `json:"summary"`
}

// HasRegressions reports whether any scenario regressed.
func (r DiffReport) HasRegressions() bool {
	return r.Summary.Regressions > 0
}

// DiffOptions configures the comparison.
type DiffOptions struct {
	// Threshold is the score change beyond which a scenario counts as
	// regressed or improved. Zero uses DefaultThreshold.
	Threshold float64
}

// Diff compares two result sets. It is a pure function: fixed inputs give
// identical reports, and input ordering does not affect the summary.
// Scenarios are matched by name and emitted sorted.
//
// Tie-break rules: a pass/fail flip dominates the score delta; a score
// change within the threshold is unchanged.
func Diff(base, target []runner.RunResult, opts DiffOptions) DiffReport {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	baseByName := indexByScenario(base)
	targetByName := indexByScenario(target)

	names := make(map[string]bool, len(baseByName)+len(targetByName))
	for name := range baseByName {
		names[name] = true
	}
	for name := range targetByName {
		names[name] = true
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	var report DiffReport
	for _, name := range sorted {
		b, inBase := baseByName[name]
		t, inTarget := targetByName[name]

		var d ScenarioDiff
		switch {
		case inBase && !inTarget:
			d = ScenarioDiff{Scenario: name, Status: StatusRemoved, BaseScore: &b.Score}
		case !inBase && inTarget:
			d = ScenarioDiff{Scenario: name, Status: StatusAdded, TargetScore: &t.Score}
		default:
			d = compare(name, b, t, threshold)
		}

		report.Scenarios = append(report.Scenarios, d)
		switch d.Status {
		case StatusRegression:
			report.Summary.Regressions++
		case StatusImprovement:
			report.Summary.Improvements++
		case StatusUnchanged:
			report.Summary.Unchanged++
		case StatusAdded:
			report.Summary.Added++
		case StatusRemoved:
			report.Summary.Removed++
		}
	}

	return report
}

// compare classifies a scenario present in both versions.
func compare(name string, base, target runner.RunResult, threshold float64) ScenarioDiff {
	delta := target.Score - base.Score
	flipped := base.Passed != target.Passed

	d := ScenarioDiff{
		Scenario:    name,
		BaseScore:   &base.Score,
		TargetScore: &target.Score,
		ScoreDelta:  delta,
		PassFlipped: flipped,
	}

	switch {
	case base.Passed && !target.Passed:
		d.Status = StatusRegression
	case !base.Passed && target.Passed:
		d.Status = StatusImprovement
	case delta < -threshold:
		d.Status = StatusRegression
	case delta > threshold:
		d.Status = StatusImprovement
	default:
		d.Status = StatusUnchanged
	}

	return d
}

// indexByScenario maps results by name. On duplicate names the last result
// wins, matching the runner's retry semantics.
func indexByScenario(results []runner.RunResult) map[string]runner.RunResult {
	byName := make(map[string]runner.RunResult, len(results))
	for _, result := range results {
		byName[result.Scenario] = result
	}
	return byName
}
