package scenario

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds scenarios defined in Go. Compiled-in scenario files
// register themselves at init time; the runner collects them alongside
// scenarios loaded from YAML artifacts.
type Registry struct {
	mu        sync.Mutex
	scenarios map[string]Scenario
	order     []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{scenarios: make(map[string]Scenario)}
}

// defaultRegistry backs the package-level Register/All helpers.
var defaultRegistry = NewRegistry()

// Register adds a scenario. Names must be unique and non-empty; a
// duplicate or unnamed scenario is rejected.
func (r *Registry) Register(s Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("scenario name must not be empty")
	}
	if s.Fn == nil {
		return fmt.Errorf("scenario %q has no body", s.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.scenarios[s.Name]; exists {
		return fmt.Errorf("scenario %q already registered", s.Name)
	}

	r.scenarios[s.Name] = s
	r.order = append(r.order, s.Name)
	return nil
}

// All returns the registered scenarios in registration order.
func (r *Registry) All() []Scenario {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Scenario, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.scenarios[name])
	}
	return out
}

// Filter returns the registered scenarios carrying any of the given tags,
// in registration order. Empty tags returns everything.
func (r *Registry) Filter(tags []string) []Scenario {
	if len(tags) == 0 {
		return r.All()
	}

	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		want[t] = true
	}

	var out []Scenario
	for _, s := range r.All() {
		for _, t := range s.Tags {
			if want[t] {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// Names returns the registered scenario names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}

// Register adds a scenario to the package default registry. It panics on
// duplicate names so a bad init-time registration fails loudly.
func Register(s Scenario) {
	if err := defaultRegistry.Register(s); err != nil {
		panic(err)
	}
}

// Default returns the package default registry.
func Default() *Registry {
	return defaultRegistry
}
