package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"checkmend/internal/config"
	"checkmend/internal/run"
)

var (
	// Global flags
	verbose    bool
	cfgPath    string
	workspace  string
	jsonOutput bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "checkmend",
	Short: "checkmend - diagnostic-driven remediation for type-checked codebases",
	Long: `checkmend reads static type-checker diagnostics, classifies them by
root cause, plans remediation phases in dependency order, and executes
pluggable fixers under a snapshot/rollback safety net. After the fixers
run, the project is re-validated so the tool never reports success on a
tree that no longer compiles.

Typical usage:

  npx tsc --noEmit 2>&1 | checkmend fix -
  checkmend analyze tsc-output.txt
  checkmend report
  checkmend watch`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		zc := zap.NewProductionConfig()
		zc.OutputPaths = []string{"stderr"}
		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".checkmend.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "Project directory to remediate")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON output")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, run.ErrRollbackFailed) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
