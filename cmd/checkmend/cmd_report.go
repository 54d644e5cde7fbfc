package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"checkmend/internal/backup"
	"checkmend/internal/report"
	"checkmend/internal/run"
	"checkmend/internal/store"
)

var withDiffs bool

var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Render the report for a past run",
	Long: `Renders the remediation report for a stored run, defaulting to the
most recent one. With --diff the report includes a unified diff of every
file changed since its baseline snapshot.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().BoolVar(&withDiffs, "diff", false, "Include per-file diffs against the baseline snapshot")
}

func runReport(cmd *cobra.Command, args []string) error {
	s, err := store.Open(cfg.Store.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	sum, err := loadRun(s, args)
	if err != nil {
		return err
	}

	if jsonOutput {
		out, err := report.JSON(sum)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	md := report.Markdown(sum)
	if withDiffs {
		md = report.MarkdownWithDiffs(sum, backup.NewStore(cfg.Backup.Dir, logger))
	}
	fmt.Print(renderMarkdown(md))
	return nil
}

func loadRun(s *store.RunStore, args []string) (*run.Summary, error) {
	if len(args) == 1 {
		return s.GetRun(args[0])
	}
	return s.LatestRun()
}
