// Package report renders a run summary as Markdown or JSON for human and
// machine consumption. Rendering is read-only plumbing over the run artifact;
// it never influences control flow.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"checkmend/internal/backup"
	"checkmend/internal/diff"
	"checkmend/internal/run"
)

// JSON renders the summary as indented JSON.
func JSON(sum *run.Summary) ([]byte, error) {
	return json.MarshalIndent(sum, "", "  ")
}

// Markdown renders the summary as a Markdown document.
func Markdown(sum *run.Summary) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Remediation Run %s\n\n", sum.RunID)
	fmt.Fprintf(&sb, "- **State**: %s\n", sum.TerminalState)
	fmt.Fprintf(&sb, "- **Errors**: %d initial, %d fixed, %d remaining\n",
		sum.InitialErrorCount, sum.FixedCount, sum.FinalErrorCount)
	fmt.Fprintf(&sb, "- **Duration**: %s\n", sum.FinishedAt.Sub(sum.StartedAt).Round(time.Millisecond))
	if sum.DryRun {
		sb.WriteString("- **Mode**: dry run (no files were modified)\n")
	}
	if !sum.BackupEnabled && !sum.DryRun {
		sb.WriteString("- **Warning**: backups were disabled; failures could not be rolled back\n")
	}
	if sum.RollbackFailed {
		sb.WriteString("- **Warning**: rollback FAILED; file state is of unknown provenance\n")
	}
	sb.WriteString("\n## Phases\n\n")

	if len(sum.History) == 0 {
		sb.WriteString("No phases were executed.\n")
	} else {
		sb.WriteString("| Phase | Result | Fixed | Attempts | Time |\n")
		sb.WriteString("|-------|--------|-------|----------|------|\n")
		for _, h := range sum.History {
			result := "ok"
			switch {
			case h.RolledBack:
				result = "rolled back"
			case !h.Success:
				result = "failed"
			}
			fmt.Fprintf(&sb, "| %s | %s | %d | %d | %s |\n",
				h.Phase, result, h.FixedCount, h.Attempts, h.ExecutionTime.Round(time.Millisecond))
		}
		for _, h := range sum.History {
			if h.Message != "" {
				fmt.Fprintf(&sb, "\n- `%s`: %s\n", h.Phase, h.Message)
			}
		}
	}

	if sum.Validation != nil {
		sb.WriteString("\n## Validation\n\n")
		for _, r := range sum.Validation.Results {
			mark := "PASS"
			switch {
			case r.Skipped:
				mark = "SKIP"
			case !r.Passed:
				mark = "FAIL"
			}
			fmt.Fprintf(&sb, "- [%s] %s (%s): %s\n", mark, r.Name, r.Kind, r.Message)
		}
		if len(sum.Validation.Recommendations) > 0 {
			sb.WriteString("\n### Recommendations\n\n")
			for _, rec := range sum.Validation.Recommendations {
				fmt.Fprintf(&sb, "- %s\n", rec)
			}
		}
	}

	return sb.String()
}

// MarkdownWithDiffs appends a per-file change section to the Markdown
// report, diffing each baseline-snapshotted file against its current
// on-disk content. Files that cannot be read or were never snapshotted are
// skipped silently; diffs are best-effort decoration.
func MarkdownWithDiffs(sum *run.Summary, store *backup.Store) string {
	md := Markdown(sum)

	snap, err := store.Load(sum.RunID, "baseline")
	if err != nil {
		return md
	}

	var sb strings.Builder
	sb.WriteString(md)
	wroteHeader := false
	for _, f := range snap.Files {
		before, err := store.Content(snap, f.Path)
		if err != nil {
			continue
		}
		after, err := os.ReadFile(f.Path)
		if err != nil {
			continue
		}
		unified := diff.Unified(f.Path, string(before), string(after))
		if unified == "" {
			continue
		}
		if !wroteHeader {
			sb.WriteString("\n## Changes\n")
			wroteHeader = true
		}
		added, removed := diff.Stat(string(before), string(after))
		fmt.Fprintf(&sb, "\n### %s (+%d/-%d)\n\n```diff\n%s```\n", f.Path, added, removed, unified)
	}
	return sb.String()
}
