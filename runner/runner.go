package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fabrik-ai/fabrik/adapter"
	"github.com/fabrik-ai/fabrik/llm"
	"github.com/fabrik-ai/fabrik/profile"
	"github.com/fabrik-ai/fabrik/scenario"
	"github.com/google/uuid"
)

// DefaultTimeout is the per-scenario execution deadline.
const DefaultTimeout = 30 * time.Second

// Options configures a Runner.
type Options struct {
	// Timeout bounds each scenario attempt. Zero uses DefaultTimeout.
	Timeout time.Duration

	// Retries reruns a failed scenario up to Retries more times. The
	// adapter is reset before each rerun and the last result is kept.
	Retries int

	// Parallelism is the batch size for concurrent scenarios. Zero or one
	// runs sequentially.
	Parallelism int

	// Profile, when set, is exposed to scenarios and folded into judge
	// prompts.
	Profile *profile.AgentProfile

	// Logger receives execution progress. Nil uses slog.Default().
	Logger *slog.Logger

	// Observability configures optional otel spans and metrics.
	Observability ObservabilityOptions
}

// Runner executes scenarios against the agent under test.
type Runner struct {
	gateway llm.Gateway
	factory adapter.Factory
	opts    Options
	logger  *slog.Logger
	obs     *observer
}

// New creates a Runner. The factory supplies one adapter per scenario so
// parallel scenarios never share adapter state; for a sequential run over
// one adapter use NewWithAdapter.
func New(gateway llm.Gateway, factory adapter.Factory, opts Options) *Runner {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		gateway: gateway,
		factory: factory,
		opts:    opts,
		logger:  logger,
		obs:     newObserver(opts.Observability, logger),
	}
}

// NewWithAdapter creates a Runner over a single shared adapter. The
// adapter is handed to every scenario, which is only safe when the adapter
// is stateless per send or parallelism is one.
func NewWithAdapter(gateway llm.Gateway, a adapter.Adapter, opts Options) *Runner {
	return New(gateway, func() (adapter.Adapter, error) { return a, nil }, opts)
}

// Run executes the scenarios and returns one result per scenario, in
// input order. Zero scenarios yields an empty slice and no error; scenario
// failures are recorded on their results, never returned.
func (r *Runner) Run(ctx context.Context, scenarios []scenario.Scenario) []RunResult {
	results := make([]RunResult, len(scenarios))
	if len(scenarios) == 0 {
		return results
	}

	sequential := r.opts.Parallelism == 1

	for start := 0; start < len(scenarios); start += r.opts.Parallelism {
		end := start + r.opts.Parallelism
		if end > len(scenarios) {
			end = len(scenarios)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				results[idx] = r.runScenario(ctx, scenarios[idx], sequential)
			}(i)
		}
		wg.Wait()
	}

	return results
}

// runScenario executes one scenario with retries.
func (r *Runner) runScenario(ctx context.Context, s scenario.Scenario, sequential bool) RunResult {
	a, err := r.factory()
	if err != nil {
		return RunResult{
			Scenario: s.Name,
			Score:    1.0,
			Error:    fmt.Sprintf("adapter unavailable: %v", err),
		}
	}

	var attempts []AttemptSummary
	var result RunResult

	for attempt := 0; attempt <= r.opts.Retries; attempt++ {
		if attempt > 0 {
			a.Reset()
			r.logger.Info("retrying scenario",
				"scenario", s.Name,
				"attempt", attempt+1)
		}

		result = r.runOnce(ctx, s, a, sequential)
		attempts = append(attempts, AttemptSummary{
			Passed: result.Passed,
			Score:  result.Score,
			Error:  result.Error,
		})

		if result.Passed {
			break
		}
	}

	if len(attempts) > 1 {
		result.Attempts = attempts
	}

	r.obs.record(ctx, s.Name, result)
	return result
}

// runOnce executes a single attempt.
func (r *Runner) runOnce(ctx context.Context, s scenario.Scenario, a adapter.Adapter, sequential bool) RunResult {
	start := time.Now()

	collector := scenario.NewCollector()
	asserter := scenario.NewAssert(collector, r.gateway, r.opts.Profile)

	conv := &adapter.ConversationContext{ConversationID: uuid.NewString()}

	var turnsMu sync.Mutex
	var turns []Turn

	handle := scenario.NewAgentHandle(func(sendCtx context.Context, message string) (*adapter.AgentResponse, error) {
		turnsMu.Lock()
		turns = append(turns, Turn{Role: RolePersona, Content: message})
		turnsMu.Unlock()

		resp, err := a.Send(sendCtx, message, conv)
		if err != nil {
			return nil, err
		}

		turnsMu.Lock()
		turns = append(turns, Turn{Role: RoleAgent, Content: resp.Text, LatencyMs: resp.LatencyMs})
		turnsMu.Unlock()

		conv.Append("user", message)
		conv.Append("assistant", resp.Text)

		return resp, nil
	})

	sc := &scenario.Context{
		Agent:   handle,
		Assert:  asserter,
		Profile: r.opts.Profile,
		Scores:  make(map[string]float64),
	}

	if sequential {
		scenario.Bind(asserter)
		defer scenario.Unbind()
	}

	// The body context is cancelled only after the drain: in-flight
	// LLM-backed assertions launched with it must be allowed to finish
	// recording once the body returns.
	bodyCtx, cancelBody := context.WithTimeout(ctx, r.opts.Timeout)
	errText := r.raceBody(bodyCtx, ctx, s, sc)

	// Drain every in-flight LLM-backed assertion before scoring, even
	// after a timeout. The drain gets its own deadline so a wedged judge
	// call cannot hang the run.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), r.opts.Timeout)
	if err := collector.Drain(drainCtx); err != nil {
		r.logger.Warn("assertion drain incomplete",
			"scenario", s.Name,
			"error", err)
	}
	cancelDrain()
	cancelBody()

	assertions := collector.Results()

	// A timed-out body may still be appending turns; snapshot under lock.
	turnsMu.Lock()
	turnsCopy := make([]Turn, len(turns))
	copy(turnsCopy, turns)
	turnsMu.Unlock()

	return RunResult{
		Scenario:   s.Name,
		Passed:     Passed(assertions, errText),
		Score:      Score(assertions),
		Assertions: assertions,
		Turns:      turnsCopy,
		Duration:   time.Since(start),
		Error:      errText,
	}
}

// raceBody runs the scenario body against the timeout. The returned string
// is empty on success, or describes the body error, panic, or timeout.
// The caller owns bodyCtx and cancels it after the assertion drain.
func (r *Runner) raceBody(bodyCtx, parent context.Context, s scenario.Scenario, sc *scenario.Context) string {
	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				errCh <- fmt.Errorf("scenario panicked: %v", rec)
			}
		}()
		errCh <- s.Fn(bodyCtx, sc)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err.Error()
		}
		return ""
	case <-bodyCtx.Done():
		if parent.Err() != nil {
			return fmt.Sprintf("run cancelled: %v", parent.Err())
		}
		return fmt.Sprintf("Scenario timed out after %dms", r.opts.Timeout.Milliseconds())
	}
}
