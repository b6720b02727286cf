package profile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	fabrik "github.com/fabrik-ai/fabrik"
)

// StaleAfter is how old a persisted profile may be before loading it
// produces a warning.
const StaleAfter = 7 * 24 * time.Hour

// Path returns the canonical profile location under a project directory.
func Path(projectDir string) string {
	return filepath.Join(projectDir, ".fabrik", "agent-profile.json")
}

// Save writes the profile as pretty JSON to the canonical location under
// projectDir, creating the .fabrik directory if needed.
func Save(p *AgentProfile, projectDir string) error {
	const op = "profile.Save"

	path := Path(projectDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fabrik.NewStorageError(op, err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fabrik.NewInternalError(op, err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fabrik.NewStorageError(op, err)
	}

	return nil
}

// Load reads the persisted profile from projectDir. A profile older than
// StaleAfter logs a warning suggesting rediscovery. If logger is nil,
// slog.Default() is used.
func Load(projectDir string, logger *slog.Logger) (*AgentProfile, error) {
	const op = "profile.Load"

	if logger == nil {
		logger = slog.Default()
	}

	path := Path(projectDir)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fabrik.NewStorageError(op,
				fmt.Errorf("%w: %s", fabrik.ErrProfileNotFound, path))
		}
		return nil, fabrik.NewStorageError(op, err)
	}

	var p AgentProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fabrik.NewStorageError(op, fmt.Errorf("malformed profile at %s: %w", path, err))
	}

	if age := time.Since(p.DiscoveredAt); age > StaleAfter {
		logger.Warn("agent profile is stale, consider re-running discovery",
			"path", path,
			"age_days", int(age.Hours()/24))
	}

	return &p, nil
}
