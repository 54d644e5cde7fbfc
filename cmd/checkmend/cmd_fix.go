package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"checkmend/internal/backup"
	"checkmend/internal/diagnostic"
	"checkmend/internal/fixer"
	"checkmend/internal/plan"
	"checkmend/internal/report"
	"checkmend/internal/run"
	"checkmend/internal/store"
)

var (
	dryRun       bool
	noBackup     bool
	noValidation bool
	noRollback   bool
	continueVal  bool
	onlyCauses   []string
	recheck      bool
)

var fixCmd = &cobra.Command{
	Use:   "fix [file|-]",
	Short: "Remediate diagnostics with snapshot and rollback protection",
	Long: `Analyzes checker diagnostics, plans remediation phases by root cause,
and executes the registered fixers. Touched files are snapshotted before
any mutation; a failed phase restores them byte-for-byte. After the
fixers run, the project is recompiled to confirm the tree still builds.

Exit codes: 0 on a completed run, 2 when a rollback itself failed and
the tree may be inconsistent, 1 otherwise.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFix,
}

func init() {
	fixCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report the plan without mutating anything")
	fixCmd.Flags().BoolVar(&noBackup, "no-backup", false, "Skip snapshots (failures cannot be rolled back)")
	fixCmd.Flags().BoolVar(&noValidation, "no-validate", false, "Skip post-remediation validation")
	fixCmd.Flags().BoolVar(&noRollback, "no-rollback", false, "Leave files mutated when a phase fails")
	fixCmd.Flags().BoolVar(&continueVal, "continue-on-validation-failure", false, "Complete the run even when validation fails")
	fixCmd.Flags().StringSliceVar(&onlyCauses, "causes", nil, "Only remediate these root causes (default: causes with a registered fixer)")
	fixCmd.Flags().BoolVar(&recheck, "recheck", false, "Re-run the compile command after fixing to measure remaining errors")
}

func runFix(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	raw, err := readDiagnostics(ctx, args)
	if err != nil {
		return err
	}

	analyzer := diagnostic.NewAnalyzer(logger)
	errs := analyzer.Analyze(raw)
	if len(errs) == 0 {
		fmt.Println("No diagnostics found, nothing to fix.")
		return nil
	}

	registry := fixer.NewRegistry()
	registry.Register(diagnostic.CauseImport, fixer.NewImportFixer(logger))
	registry.Register(diagnostic.CauseUnused, fixer.NewUnusedFixer(logger))

	errs, err = filterCauses(errs, registry)
	if err != nil {
		return err
	}
	if len(errs) == 0 {
		fmt.Println("No diagnostics match the selected causes.")
		return nil
	}

	phases := plan.NewPlanner(logger).Plan(errs, cfg.ToPlanConfig())
	logger.Info("remediation planned",
		zap.Int("errors", len(errs)),
		zap.Int("phases", len(phases)))

	runCfg := cfg.ToRunConfig()
	runCfg.DryRun = dryRun
	if noBackup {
		runCfg.BackupEnabled = false
	}
	if noValidation {
		runCfg.ValidationEnabled = false
	}
	if noRollback {
		runCfg.RollbackOnFailure = false
	}
	if continueVal {
		runCfg.ContinueOnValidationFailure = true
	}

	opts := run.Options{
		Backups:  backup.NewStore(cfg.Backup.Dir, logger),
		Registry: registry,
		Checks:   cfg.BuildChecks(workspace),
		Analyzer: analyzer,
		Lock:     run.NewLock(workspace),
		Logger:   logger,
	}
	if recheck {
		opts.Source = diagnosticSource()
	}

	sum, err := run.New(opts).Execute(ctx, phases, runCfg)
	if err != nil && sum == nil {
		return err
	}

	if saveErr := persistRun(sum); saveErr != nil {
		logger.Warn("failed to persist run history", zap.Error(saveErr))
	}

	printSummary(sum)

	switch {
	case sum.RollbackFailed:
		return fmt.Errorf("run %s: %w", sum.RunID, run.ErrRollbackFailed)
	case sum.TerminalState != run.StateCompleted:
		return fmt.Errorf("run %s finished %s", sum.RunID, sum.TerminalState)
	}
	return nil
}

// filterCauses keeps diagnostics whose cause was selected via --causes,
// defaulting to the causes that have a registered fixer.
func filterCauses(errs []diagnostic.AnalyzedError, registry *fixer.Registry) ([]diagnostic.AnalyzedError, error) {
	selected := make(map[diagnostic.RootCause]bool)
	if len(onlyCauses) > 0 {
		for _, name := range onlyCauses {
			cause, ok := diagnostic.ParseCause(name)
			if !ok {
				return nil, fmt.Errorf("unknown root cause %q", name)
			}
			selected[cause] = true
		}
	} else {
		for _, cause := range registry.Causes() {
			selected[cause] = true
		}
	}

	var out []diagnostic.AnalyzedError
	for _, e := range errs {
		if selected[e.Category.RootCause] {
			out = append(out, e)
		}
	}
	return out, nil
}

func persistRun(sum *run.Summary) error {
	s, err := store.Open(cfg.Store.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.SaveRun(sum)
}

func printSummary(sum *run.Summary) {
	if jsonOutput {
		if out, err := report.JSON(sum); err == nil {
			fmt.Println(string(out))
		}
		return
	}
	fmt.Print(renderMarkdown(report.Markdown(sum)))
}
