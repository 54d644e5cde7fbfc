package run

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"checkmend/internal/backup"
	"checkmend/internal/diagnostic"
	"checkmend/internal/fixer"
	"checkmend/internal/plan"
	"checkmend/internal/validate"
)

// DiagnosticSource re-captures diagnostic text, used after a run to measure
// the final error count instead of inferring it. Optional.
type DiagnosticSource func(ctx context.Context) (string, error)

// Options wires the orchestrator's collaborators.
type Options struct {
	Backups   *backup.Store
	Registry  *fixer.Registry
	Validator *validate.Engine
	Checks    []validate.Check
	Source    DiagnosticSource
	Analyzer  *diagnostic.Analyzer
	Lock      *Lock
	Logger    *zap.Logger
}

// Orchestrator runs phases sequentially with snapshot, retry, rollback and
// validation. One logical run at a time; phases never execute concurrently
// because fixers may touch overlapping files.
type Orchestrator struct {
	mu        sync.Mutex
	backups   *backup.Store
	registry  *fixer.Registry
	validator *validate.Engine
	checks    []validate.Check
	source    DiagnosticSource
	analyzer  *diagnostic.Analyzer
	lock      *Lock
	logger    *zap.Logger

	state State
}

// New creates an orchestrator from its collaborators.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	analyzer := opts.Analyzer
	if analyzer == nil {
		analyzer = diagnostic.NewAnalyzer(logger)
	}
	validator := opts.Validator
	if validator == nil {
		validator = validate.NewEngine(logger)
	}
	return &Orchestrator{
		backups:   opts.Backups,
		registry:  opts.Registry,
		validator: validator,
		checks:    opts.Checks,
		source:    opts.Source,
		analyzer:  analyzer,
		lock:      opts.Lock,
		logger:    logger,
		state:     StateIdle,
	}
}

// State returns the orchestrator's current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	prev := o.state
	o.state = s
	o.mu.Unlock()
	o.logger.Debug("state transition", zap.String("from", string(prev)), zap.String("to", string(s)))
}

// Execute runs the given phases in order and returns the run summary. The
// returned error is non-nil only for fatal conditions (lock contention,
// backup failure, rollback failure); ordinary phase failures are reported
// through the summary's terminal state and history.
func (o *Orchestrator) Execute(ctx context.Context, phases []plan.Phase, cfg Config) (*Summary, error) {
	if o.lock != nil {
		if err := o.lock.Acquire(ctx); err != nil {
			return nil, err
		}
		defer func() {
			if err := o.lock.Release(); err != nil {
				o.logger.Warn("releasing run lock", zap.Error(err))
			}
		}()
	}

	sum := &Summary{
		RunID:         uuid.NewString(),
		BackupEnabled: cfg.BackupEnabled && !cfg.DryRun,
		DryRun:        cfg.DryRun,
		StartedAt:     time.Now().UTC(),
	}
	defer func() {
		sum.FinishedAt = time.Now().UTC()
		o.setState(sum.TerminalState)
	}()

	for _, ph := range phases {
		sum.InitialErrorCount += len(ph.Errors)
	}

	o.logger.Info("run starting",
		zap.String("run_id", sum.RunID),
		zap.Int("phases", len(phases)),
		zap.Int("errors", sum.InitialErrorCount),
		zap.Bool("dry_run", cfg.DryRun),
		zap.Bool("backup", sum.BackupEnabled))

	o.setState(StateIdle)

	if cfg.DryRun {
		o.dryRun(phases, sum)
		sum.TerminalState = StateCompleted
		sum.FinalErrorCount = sum.InitialErrorCount
		return sum, nil
	}

	// Baseline snapshot of the union of all phases' files, taken before any
	// mutation. A failure here aborts with nothing touched.
	if sum.BackupEnabled && len(phases) > 0 {
		o.setState(StateBackingUp)
		if _, err := o.backups.Snapshot(sum.RunID, "baseline", plan.TotalFiles(phases)); err != nil {
			sum.TerminalState = StateFailed
			return sum, fmt.Errorf("%w: baseline snapshot: %v", ErrBackupFailed, err)
		}
	} else if !sum.BackupEnabled {
		o.logger.Warn("backups disabled: failures in this run cannot be rolled back",
			zap.String("run_id", sum.RunID))
	}

	requiredFailed := false
	rolledBack := false

	for _, ph := range phases {
		o.setState(StateExecuting)

		if sum.BackupEnabled && !o.backups.Has(sum.RunID, ph.Name) {
			if _, err := o.backups.Snapshot(sum.RunID, ph.Name, ph.Files); err != nil {
				sum.TerminalState = StateFailed
				sum.History = append(sum.History, ExecutionResult{
					Phase:   ph.Name,
					Message: fmt.Sprintf("phase snapshot failed: %v", err),
				})
				return sum, fmt.Errorf("%w: phase %s: %v", ErrBackupFailed, ph.Name, err)
			}
		}

		res := o.runPhase(ctx, ph, cfg)

		if !res.Success && ph.Required && cfg.RollbackOnFailure && sum.BackupEnabled {
			o.setState(StateRollingBack)
			if err := o.backups.Restore(sum.RunID, ph.Name); err != nil {
				sum.RollbackFailed = true
				sum.History = append(sum.History, res)
				sum.TerminalState = StateFailed
				return sum, fmt.Errorf("%w: phase %s: %v", ErrRollbackFailed, ph.Name, err)
			}
			res.RolledBack = true
			sum.History = append(sum.History, res)
			rolledBack = true
			o.logger.Warn("required phase failed, rolled back and aborting run",
				zap.String("run_id", sum.RunID), zap.String("phase", ph.Name))
			break
		}

		sum.History = append(sum.History, res)
		if res.Success {
			sum.FixedCount += res.FixedCount
		} else if ph.Required {
			requiredFailed = true
		}
	}

	if !rolledBack && cfg.ValidationEnabled {
		o.setState(StateValidating)
		sum.Validation = o.validator.Validate(ctx, o.checks)
	}

	sum.FinalErrorCount = o.finalErrorCount(ctx, sum)

	switch {
	case rolledBack:
		sum.TerminalState = StateRolledBack
	case requiredFailed:
		sum.TerminalState = StateFailed
	case sum.Validation != nil && !sum.Validation.OverallSuccess && !cfg.ContinueOnValidationFailure:
		sum.TerminalState = StateFailed
	default:
		sum.TerminalState = StateCompleted
	}

	o.logger.Info("run finished",
		zap.String("run_id", sum.RunID),
		zap.String("terminal_state", string(sum.TerminalState)),
		zap.Int("fixed", sum.FixedCount),
		zap.Int("remaining", sum.FinalErrorCount))

	return sum, nil
}

// runPhase invokes the phase's fixer under its deadline with bounded retries.
// Retries reuse the snapshot taken before the first attempt; it is never
// re-taken. Timeouts and fixer errors count identically against the bound.
func (o *Orchestrator) runPhase(ctx context.Context, ph plan.Phase, cfg Config) ExecutionResult {
	start := time.Now()

	fx, err := o.registry.Lookup(ph.Cause)
	if err != nil {
		// Nothing to retry and nothing was mutated.
		return ExecutionResult{
			Phase:         ph.Name,
			Message:       err.Error(),
			ExecutionTime: time.Since(start),
		}
	}

	timeout := ph.Timeout
	if timeout <= 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	retries := ph.Retries
	if retries < 0 {
		retries = cfg.MaxRetries
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			o.setState(StateRetrying)
			o.logger.Debug("retrying phase",
				zap.String("phase", ph.Name), zap.Int("attempt", attempt+1))
		}
		attempts++

		res, err := o.invokeFixer(ctx, fx, ph, timeout)
		if err == nil {
			return ExecutionResult{
				Phase:         ph.Name,
				Success:       true,
				Message:       fmt.Sprintf("fixer %q resolved %d of %d error(s)", fx.Name(), res.FixedCount, len(ph.Errors)),
				FixedCount:    res.FixedCount,
				Attempts:      attempts,
				ExecutionTime: time.Since(start),
				Details:       res.Details,
			}
		}
		lastErr = err
		o.logger.Warn("phase attempt failed",
			zap.String("phase", ph.Name),
			zap.Int("attempt", attempts),
			zap.Error(err))

		if ctx.Err() != nil {
			// The run-level context is gone; retrying cannot help.
			break
		}
	}

	return ExecutionResult{
		Phase:         ph.Name,
		Message:       fmt.Sprintf("all %d attempt(s) failed: %v", attempts, lastErr),
		Attempts:      attempts,
		ExecutionTime: time.Since(start),
	}
}

// invokeFixer races the fixer against the phase deadline. The fixer gets the
// deadline context so it can stop cooperatively; if it does not, it is
// abandoned and the attempt counts as a timeout.
func (o *Orchestrator) invokeFixer(ctx context.Context, fx fixer.Fixer, ph plan.Phase, timeout time.Duration) (*fixer.Result, error) {
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res *fixer.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := fx.Fix(fctx, ph.Files, ph.Errors)
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, fmt.Errorf("fixer %q: %w", fx.Name(), out.err)
		}
		if out.res == nil {
			return nil, fmt.Errorf("fixer %q returned no result", fx.Name())
		}
		return out.res, nil
	case <-fctx.Done():
		if errors.Is(fctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: phase %s after %s", ErrPhaseTimeout, ph.Name, timeout)
		}
		return nil, fctx.Err()
	}
}

func (o *Orchestrator) dryRun(phases []plan.Phase, sum *Summary) {
	for _, ph := range phases {
		name := "(unregistered)"
		if fx, err := o.registry.Lookup(ph.Cause); err == nil {
			name = fx.Name()
		}
		sum.History = append(sum.History, ExecutionResult{
			Phase:   ph.Name,
			Success: true,
			Message: fmt.Sprintf("dry run: would apply fixer %q to %d file(s) for %d error(s)",
				name, len(ph.Files), len(ph.Errors)),
			Details: ph.Files,
		})
	}
}

// finalErrorCount re-measures the tree when a diagnostic source is wired,
// otherwise infers initial minus fixed.
func (o *Orchestrator) finalErrorCount(ctx context.Context, sum *Summary) int {
	if o.source != nil {
		text, err := o.source(ctx)
		if err == nil {
			return len(o.analyzer.Analyze(text))
		}
		o.logger.Warn("diagnostic re-capture failed, inferring final count", zap.Error(err))
	}
	remaining := sum.InitialErrorCount - sum.FixedCount
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}
