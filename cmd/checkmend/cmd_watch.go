package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"checkmend/internal/backup"
	"checkmend/internal/diagnostic"
	"checkmend/internal/fixer"
	"checkmend/internal/plan"
	"checkmend/internal/run"
	"checkmend/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch for source changes and remediate continuously",
	Long: `Watches the workspace for writes to source files. After each change
burst settles, the compile command runs and any fixable diagnostics are
remediated under the usual snapshot/rollback safety net. Press Ctrl-C
to stop.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := fixer.NewRegistry()
	registry.Register(diagnostic.CauseImport, fixer.NewImportFixer(logger))
	registry.Register(diagnostic.CauseUnused, fixer.NewUnusedFixer(logger))

	analyzer := diagnostic.NewAnalyzer(logger)
	planner := plan.NewPlanner(logger)
	orch := run.New(run.Options{
		Backups:  backup.NewStore(cfg.Backup.Dir, logger),
		Registry: registry,
		Checks:   cfg.BuildChecks(workspace),
		Analyzer: analyzer,
		Lock:     run.NewLock(workspace),
		Logger:   logger,
	})

	remediate := func(paths []string) {
		logger.Info("change detected", zap.Int("files", len(paths)))

		raw, err := captureDiagnostics(ctx)
		if err != nil {
			logger.Warn("failed to capture diagnostics", zap.Error(err))
			return
		}
		errs := analyzer.Analyze(raw)
		errs = keepRegistered(errs, registry)
		if len(errs) == 0 {
			fmt.Println("clean: no fixable diagnostics")
			return
		}

		phases := planner.Plan(errs, cfg.ToPlanConfig())
		sum, err := orch.Execute(ctx, phases, cfg.ToRunConfig())
		if err != nil && sum == nil {
			logger.Warn("remediation failed", zap.Error(err))
			return
		}
		if saveErr := persistRun(sum); saveErr != nil {
			logger.Warn("failed to persist run history", zap.Error(saveErr))
		}
		fmt.Printf("run %s: %s, fixed %d of %d\n",
			sum.RunID, sum.TerminalState, sum.FixedCount, sum.InitialErrorCount)
	}

	w, err := watch.New(watch.Options{
		Root:     workspace,
		Exts:     cfg.Watch.Extensions,
		Debounce: time.Duration(cfg.Watch.DebounceMillis) * time.Millisecond,
		OnChange: remediate,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Stop()

	fmt.Printf("watching %s (%v), Ctrl-C to stop\n", workspace, cfg.Watch.Extensions)
	<-ctx.Done()
	return nil
}

func keepRegistered(errs []diagnostic.AnalyzedError, registry *fixer.Registry) []diagnostic.AnalyzedError {
	registered := make(map[diagnostic.RootCause]bool)
	for _, cause := range registry.Causes() {
		registered[cause] = true
	}
	var out []diagnostic.AnalyzedError
	for _, e := range errs {
		if registered[e.Category.RootCause] {
			out = append(out, e)
		}
	}
	return out
}
