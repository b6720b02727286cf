package llm

import "sync"

// TokenTracker accumulates token usage across gateway calls, keyed by the
// pipeline stage that made them (e.g. "discovery.rank", "judge").
// It is safe for concurrent use.
type TokenTracker struct {
	mu     sync.RWMutex
	stages map[string]TokenUsage
	total  TokenUsage
}

// NewTokenTracker creates an empty TokenTracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{stages: make(map[string]TokenUsage)}
}

// Add records token usage for a stage.
func (t *TokenTracker) Add(stage string, usage TokenUsage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stages[stage] = t.stages[stage].Add(usage)
	t.total = t.total.Add(usage)
}

// Total returns the aggregate token usage across all stages.
func (t *TokenTracker) Total() TokenUsage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}

// ByStage returns the usage recorded for one stage.
// Returns a zero TokenUsage for unknown stages.
func (t *TokenTracker) ByStage(stage string) TokenUsage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stages[stage]
}

// Stages returns the names of all stages with recorded usage.
func (t *TokenTracker) Stages() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stages := make([]string, 0, len(t.stages))
	for stage := range t.stages {
		stages = append(stages, stage)
	}
	return stages
}

// Reset clears all tracked usage.
func (t *TokenTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stages = make(map[string]TokenUsage)
	t.total = TokenUsage{}
}
