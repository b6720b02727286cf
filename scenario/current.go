package scenario

import "sync"

// The process-wide "current" assertion binding supports free-standing
// scenario code that imports the assert surface instead of receiving it
// through the Context. The runner binds it immediately before a scenario
// body runs and clears it in a deferred call, but only when scenarios run
// sequentially. With parallelism above one the binding would race across
// scenarios, so the runner leaves it unset and the Context carries the
// only reference.
var (
	currentMu sync.RWMutex
	current   *Assert
)

// Bind publishes a as the process-wide current assertion surface.
func Bind(a *Assert) {
	currentMu.Lock()
	defer currentMu.Unlock()
	current = a
}

// Unbind clears the process-wide binding.
func Unbind() {
	currentMu.Lock()
	defer currentMu.Unlock()
	current = nil
}

// Current returns the process-wide assertion surface, or nil when no
// sequential scenario is executing.
func Current() *Assert {
	currentMu.RLock()
	defer currentMu.RUnlock()
	return current
}
