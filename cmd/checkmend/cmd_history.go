package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"checkmend/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past remediation runs",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	s, err := store.Open(cfg.Store.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	rows, err := s.ListRuns(historyLimit)
	if err != nil {
		return err
	}

	if jsonOutput {
		out, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	if len(rows) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTATE\tERRORS\tFIXED\tREMAINING\tSTARTED")
	for _, r := range rows {
		state := r.TerminalState
		if r.DryRun {
			state += " (dry run)"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
			r.RunID, state, r.InitialErrors, r.FixedCount, r.FinalErrors,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}
