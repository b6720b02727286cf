package trace

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	fabrik "github.com/fabrik-ai/fabrik"
	"github.com/fabrik-ai/fabrik/runner"
	"github.com/google/uuid"

	_ "modernc.org/sqlite" // SQLite driver
)

// RunMeta summarizes one stored run.
type RunMeta struct {
	// ID is the opaque run identifier.
	ID string `json:"id"`

	// Version is the user-supplied label the run was saved under.
	Version string `json:"version"`

	// CreatedAt is the save timestamp.
	CreatedAt time.Time `json:"created_at"`

	// Counts.
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`

	// TotalDuration sums the per-scenario durations.
	TotalDuration time.Duration `json:"total_duration"`
}

// StoredRun is one archived run with its results.
type StoredRun struct {
	Meta    RunMeta            `json:"meta"`
	Results []runner.RunResult `json:"results"`
}

// Store is the SQLite-backed run archive.
type Store struct {
	db *sql.DB
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	version    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	meta_json  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	scenario   TEXT NOT NULL,
	passed     INTEGER NOT NULL,
	score      REAL NOT NULL,
	data_json  TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_run_id   ON results(run_id);
CREATE INDEX IF NOT EXISTS idx_results_scenario ON results(scenario);
CREATE INDEX IF NOT EXISTS idx_runs_version     ON runs(version);
`

// Open opens (creating if necessary) the archive at path. Use ":memory:"
// for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	const op = "trace.Open"

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fabrik.NewStorageError(op, err)
	}

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fabrik.NewStorageError(op, fmt.Errorf("initializing schema: %w", err))
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun archives the results under the version label in one transaction
// and returns the run metadata. A failed save persists nothing.
func (s *Store) SaveRun(ctx context.Context, version string, results []runner.RunResult) (*RunMeta, error) {
	const op = "Store.SaveRun"

	if version == "" {
		return nil, fabrik.NewValidationError(op,
			fmt.Errorf("%w: version label is required", fabrik.ErrInvalidConfig))
	}

	meta := RunMeta{
		ID:        uuid.NewString(),
		Version:   version,
		CreatedAt: time.Now().UTC(),
		Total:     len(results),
	}
	for _, result := range results {
		if result.Passed {
			meta.Passed++
		} else {
			meta.Failed++
		}
		meta.TotalDuration += result.Duration
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fabrik.NewInternalError(op, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fabrik.NewStorageError(op, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, version, created_at, meta_json) VALUES (?, ?, ?, ?)`,
		meta.ID, meta.Version, meta.CreatedAt, string(metaJSON)); err != nil {
		return nil, fabrik.NewStorageError(op, err)
	}

	for _, result := range results {
		dataJSON, err := json.Marshal(result)
		if err != nil {
			return nil, fabrik.NewInternalError(op, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO results (id, run_id, scenario, passed, score, data_json, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), meta.ID, result.Scenario, boolToInt(result.Passed),
			result.Score, string(dataJSON), meta.CreatedAt); err != nil {
			return nil, fabrik.NewStorageError(op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fabrik.NewStorageError(op, err)
	}

	return &meta, nil
}

// LoadRun retrieves a run by its opaque id.
func (s *Store) LoadRun(ctx context.Context, id string) (*StoredRun, error) {
	const op = "Store.LoadRun"

	var metaJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT meta_json FROM runs WHERE id = ?`, id).Scan(&metaJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fabrik.NewStorageError(op,
			fmt.Errorf("%w: run %s", fabrik.ErrVersionNotFound, id))
	}
	if err != nil {
		return nil, fabrik.NewStorageError(op, err)
	}

	return s.loadByMeta(ctx, op, metaJSON)
}

// LoadByVersion retrieves the most recent run saved under the label.
func (s *Store) LoadByVersion(ctx context.Context, version string) (*StoredRun, error) {
	const op = "Store.LoadByVersion"

	var metaJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT meta_json FROM runs WHERE version = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		version).Scan(&metaJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fabrik.NewStorageError(op,
			fmt.Errorf("%w: %s", fabrik.ErrVersionNotFound, version))
	}
	if err != nil {
		return nil, fabrik.NewStorageError(op, err)
	}

	return s.loadByMeta(ctx, op, metaJSON)
}

// loadByMeta hydrates a StoredRun from its serialized metadata.
func (s *Store) loadByMeta(ctx context.Context, op, metaJSON string) (*StoredRun, error) {
	var meta RunMeta
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		return nil, fabrik.NewStorageError(op, fmt.Errorf("malformed run metadata: %w", err))
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT data_json FROM results WHERE run_id = ? ORDER BY rowid`, meta.ID)
	if err != nil {
		return nil, fabrik.NewStorageError(op, err)
	}
	defer rows.Close()

	run := &StoredRun{Meta: meta}
	for rows.Next() {
		var dataJSON string
		if err := rows.Scan(&dataJSON); err != nil {
			return nil, fabrik.NewStorageError(op, err)
		}

		var result runner.RunResult
		if err := json.Unmarshal([]byte(dataJSON), &result); err != nil {
			return nil, fabrik.NewStorageError(op, fmt.Errorf("malformed result row: %w", err))
		}
		run.Results = append(run.Results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fabrik.NewStorageError(op, err)
	}

	return run, nil
}

// ListVersions returns the distinct version labels, newest first.
func (s *Store) ListVersions(ctx context.Context) ([]string, error) {
	const op = "Store.ListVersions"

	rows, err := s.db.QueryContext(ctx,
		`SELECT version FROM runs GROUP BY version ORDER BY MAX(created_at) DESC`)
	if err != nil {
		return nil, fabrik.NewStorageError(op, err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fabrik.NewStorageError(op, err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
