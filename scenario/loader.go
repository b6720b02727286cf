package scenario

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadDir loads every YAML scenario artifact (*.yaml, *.yml) under dir,
// in lexical order. A file that fails to parse or compile is skipped with
// a warning; the remaining scenarios still load. Scenarios written in Go
// are compiled into the binary and arrive through a Registry instead.
//
// A directory with no artifacts yields an empty slice and no error.
func LoadDir(dir string, logger *slog.Logger) ([]Scenario, error) {
	if logger == nil {
		logger = slog.Default()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	var scenarios []Scenario
	seen := make(map[string]string)

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("skipping unreadable scenario file", "path", path, "error", err)
			continue
		}

		s, err := CompileYAML(data)
		if err != nil {
			logger.Warn("skipping invalid scenario file", "path", path, "error", err)
			continue
		}

		if prev, dup := seen[s.Name]; dup {
			logger.Warn("skipping duplicate scenario name",
				"path", path, "name", s.Name, "first_defined_in", prev)
			continue
		}
		seen[s.Name] = path

		scenarios = append(scenarios, s)
	}

	return scenarios, nil
}
