package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
	"go.uber.org/zap"

	"checkmend/internal/run"
)

// RunStore persists completed run summaries to SQLite so that past
// remediation runs can be listed and rendered later.
//
// The store is append-only: runs are saved once, after the orchestrator
// reaches a terminal state, and never updated.
type RunStore struct {
	db     *sql.DB
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// RunRow is the listing projection of a stored run.
type RunRow struct {
	RunID         string    `json:"runId"`
	TerminalState string    `json:"terminalState"`
	InitialErrors int       `json:"initialErrors"`
	FinalErrors   int       `json:"finalErrors"`
	FixedCount    int       `json:"fixedCount"`
	DryRun        bool      `json:"dryRun"`
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt"`
}

// Open initializes the SQLite database at the given path, creating the
// schema if needed.
func Open(path string, logger *zap.Logger) (*RunStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug("failed to set sqlite busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Debug("failed to set sqlite journal_mode", zap.Error(err))
	}

	s := &RunStore{db: db, path: path, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *RunStore) initialize() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			terminal_state TEXT NOT NULL,
			initial_errors INTEGER NOT NULL,
			final_errors INTEGER NOT NULL,
			fixed_count INTEGER NOT NULL,
			dry_run INTEGER NOT NULL DEFAULT 0,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			summary_json TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS phase_results (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			phase TEXT NOT NULL,
			success INTEGER NOT NULL,
			fixed_count INTEGER NOT NULL,
			attempts INTEGER NOT NULL,
			rolled_back INTEGER NOT NULL,
			message TEXT,
			execution_ms INTEGER NOT NULL,
			PRIMARY KEY (run_id, seq),
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		)`,
		`CREATE TABLE IF NOT EXISTS validation_results (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			check_name TEXT NOT NULL,
			kind TEXT NOT NULL,
			outcome TEXT NOT NULL,
			message TEXT,
			PRIMARY KEY (run_id, seq),
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// SaveRun persists a terminal run summary.
func (s *RunStore) SaveRun(sum *run.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (run_id, terminal_state, initial_errors, final_errors, fixed_count, dry_run, started_at, finished_at, summary_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.RunID, string(sum.TerminalState), sum.InitialErrorCount, sum.FinalErrorCount,
		sum.FixedCount, sum.DryRun, sum.StartedAt, sum.FinishedAt, string(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", sum.RunID, err)
	}

	for i, pr := range sum.History {
		_, err = tx.Exec(
			`INSERT INTO phase_results (run_id, seq, phase, success, fixed_count, attempts, rolled_back, message, execution_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sum.RunID, i, pr.Phase, pr.Success, pr.FixedCount, pr.Attempts,
			pr.RolledBack, pr.Message, pr.ExecutionTime.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert phase result: %w", err)
		}
	}

	if sum.Validation != nil {
		for i, vr := range sum.Validation.Results {
			outcome := "failed"
			if vr.Skipped {
				outcome = "skipped"
			} else if vr.Passed {
				outcome = "passed"
			}
			_, err = tx.Exec(
				`INSERT INTO validation_results (run_id, seq, check_name, kind, outcome, message)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				sum.RunID, i, vr.Name, string(vr.Kind), outcome, vr.Message,
			)
			if err != nil {
				return fmt.Errorf("failed to insert validation result: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", sum.RunID, err)
	}
	s.logger.Debug("run saved", zap.String("runId", sum.RunID), zap.String("state", string(sum.TerminalState)))
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *RunStore) ListRuns(limit int) ([]RunRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT run_id, terminal_state, initial_errors, final_errors, fixed_count, dry_run, started_at, finished_at
		 FROM runs ORDER BY started_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.RunID, &r.TerminalState, &r.InitialErrors, &r.FinalErrors,
			&r.FixedCount, &r.DryRun, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun loads the full summary for a run ID.
func (s *RunStore) GetRun(runID string) (*run.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw string
	err := s.db.QueryRow(`SELECT summary_json FROM runs WHERE run_id = ?`, runID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	var sum run.Summary
	if err := json.Unmarshal([]byte(raw), &sum); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", runID, err)
	}
	return &sum, nil
}

// LatestRun returns the most recently started run, or an error when the
// store is empty.
func (s *RunStore) LatestRun() (*run.Summary, error) {
	rows, err := s.ListRuns(1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no runs recorded")
	}
	return s.GetRun(rows[0].RunID)
}

// Close releases the underlying database handle.
func (s *RunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
