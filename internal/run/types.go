// Package run implements the remediation execution loop: snapshot, invoke
// fixers under deadlines with bounded retries, roll back on unrecoverable
// failure, and re-validate the tree.
package run

import (
	"errors"
	"time"

	"checkmend/internal/validate"
)

// State is the orchestrator's position in the run state machine.
type State string

const (
	StateIdle        State = "idle"
	StateBackingUp   State = "backing_up"
	StateExecuting   State = "executing"
	StateRetrying    State = "retrying"
	StateRollingBack State = "rolling_back"
	StateValidating  State = "validating"
	StateCompleted   State = "completed"
	StateRolledBack  State = "rolled_back"
	StateFailed      State = "failed"
)

// Terminal reports whether a state ends the run.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateRolledBack, StateFailed:
		return true
	}
	return false
}

// Sentinel errors for the run-level failure taxonomy.
var (
	// ErrBackupFailed means a snapshot could not be taken. Fatal and
	// pre-mutation: nothing was touched when it fires before the first phase.
	ErrBackupFailed = errors.New("backup failed")
	// ErrPhaseTimeout means a fixer outlived its deadline and was abandoned.
	ErrPhaseTimeout = errors.New("phase timed out")
	// ErrRollbackFailed means a restore failed; file state is of unknown
	// provenance and the run must not be reported as completed or rolled back.
	ErrRollbackFailed = errors.New("rollback failed")
	// ErrRunActive means another run already holds the project lock.
	ErrRunActive = errors.New("another run is active for this project root")
)

// Config carries the caller-facing run options.
type Config struct {
	TimeoutSeconds              int  `json:"timeout_seconds"`
	MaxRetries                  int  `json:"max_retries"`
	BackupEnabled               bool `json:"backup_enabled"`
	ValidationEnabled           bool `json:"validation_enabled"`
	RollbackOnFailure           bool `json:"rollback_on_failure"`
	ContinueOnValidationFailure bool `json:"continue_on_validation_failure"`
	DryRun                      bool `json:"dry_run"`
}

// DefaultConfig returns the conservative run defaults: everything on except
// dry-run, stop on validation failure.
func DefaultConfig() Config {
	return Config{
		TimeoutSeconds:    120,
		MaxRetries:        2,
		BackupEnabled:     true,
		ValidationEnabled: true,
		RollbackOnFailure: true,
	}
}

// ExecutionResult is one phase attempt's outcome, appended to the run
// history in execution order. History entries are never mutated after append.
type ExecutionResult struct {
	Phase         string        `json:"phase"`
	Success       bool          `json:"success"`
	Message       string        `json:"message"`
	FixedCount    int           `json:"fixed_count"`
	Attempts      int           `json:"attempts"`
	ExecutionTime time.Duration `json:"execution_time"`
	RolledBack    bool          `json:"rolled_back"`
	Details       []string      `json:"details,omitempty"`
}

// Summary is the terminal artifact of a run, consumed by reporting.
type Summary struct {
	RunID             string            `json:"run_id"`
	TerminalState     State             `json:"terminal_state"`
	InitialErrorCount int               `json:"initial_error_count"`
	FinalErrorCount   int               `json:"final_error_count"`
	FixedCount        int               `json:"fixed_count"`
	History           []ExecutionResult `json:"history"`
	Validation        *validate.Summary `json:"validation,omitempty"`
	// BackupEnabled surfaces the reduced guarantee when snapshots were off:
	// failures in such a run cannot be rolled back.
	BackupEnabled  bool      `json:"backup_enabled"`
	RollbackFailed bool      `json:"rollback_failed,omitempty"`
	DryRun         bool      `json:"dry_run,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}
