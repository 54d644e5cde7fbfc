package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"checkmend/internal/diagnostic"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file|-]",
	Short: "Classify checker diagnostics without fixing anything",
	Long: `Parses type-checker output and reports each diagnostic's root cause,
remediation priority, and suggested fix. Reads from a file, stdin ("-"),
or runs the project's compile command when no argument is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	raw, err := readDiagnostics(cmd.Context(), args)
	if err != nil {
		return err
	}

	analyzer := diagnostic.NewAnalyzer(logger)
	errs := analyzer.Analyze(raw)
	logger.Info("diagnostics analyzed", zap.Int("count", len(errs)))

	if jsonOutput {
		out, err := json.MarshalIndent(analysisReport(errs), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	if len(errs) == 0 {
		fmt.Println("No diagnostics found.")
		return nil
	}

	byCause := diagnostic.GroupByCause(errs)
	fmt.Printf("%d diagnostics across %d files\n\n", len(errs), len(diagnostic.Files(errs)))
	for _, cause := range diagnostic.AllCauses {
		group := byCause[cause]
		if len(group) == 0 {
			continue
		}
		fmt.Printf("%s (%d):\n", cause, len(group))
		for _, e := range group {
			fmt.Printf("  %s:%d:%d  %s  %s\n", e.File, e.Line, e.Col, e.Code, e.Message)
		}
		fmt.Println()
	}

	for _, rec := range diagnostic.Recommendations(errs) {
		fmt.Printf("- %s\n", rec)
	}
	return nil
}

type analysisOutput struct {
	Total   int                                                 `json:"total"`
	Files   []string                                            `json:"files"`
	ByCause map[diagnostic.RootCause][]diagnostic.AnalyzedError `json:"byCause"`
	Recs    []string                                            `json:"recommendations"`
}

func analysisReport(errs []diagnostic.AnalyzedError) analysisOutput {
	return analysisOutput{
		Total:   len(errs),
		Files:   diagnostic.Files(errs),
		ByCause: diagnostic.GroupByCause(errs),
		Recs:    diagnostic.Recommendations(errs),
	}
}
