package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"

	"checkmend/internal/run"
	"checkmend/internal/validate"
)

// readDiagnostics loads raw checker output from a file argument, stdin
// ("-"), or by running the project's compile command when no argument
// is given.
func readDiagnostics(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return captureDiagnostics(ctx)
	}
	if args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read diagnostics file: %w", err)
	}
	return string(data), nil
}

// captureDiagnostics runs the detected compile command and returns its
// combined output. A non-zero exit is expected when diagnostics exist,
// so only context errors are surfaced.
func captureDiagnostics(ctx context.Context) (string, error) {
	compile, _, _ := validate.DetectCommands(workspace)
	out := validate.CommandProbe(workspace, compile)(ctx)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return out.Details, nil
}

// diagnosticSource exposes captureDiagnostics as the orchestrator's
// post-run re-measurement hook.
func diagnosticSource() run.DiagnosticSource {
	return func(ctx context.Context) (string, error) {
		return captureDiagnostics(ctx)
	}
}

// renderMarkdown pretty-prints markdown for terminals, falling back to
// the raw text when no renderer can be built.
func renderMarkdown(md string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return md
	}
	out, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}
