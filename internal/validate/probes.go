package validate

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// CommandProbe builds a probe that runs a shell command in dir and passes
// when it exits zero. Output is captured as details either way.
func CommandProbe(dir, command string) Probe {
	return func(ctx context.Context) Outcome {
		parts := strings.Fields(command)
		if len(parts) == 0 {
			return Outcome{Success: false, Message: "empty command"}
		}
		cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
		cmd.Dir = dir

		output, err := cmd.CombinedOutput()
		if ctx.Err() != nil {
			return Outcome{Success: false, Message: ctx.Err().Error(), Details: string(output)}
		}
		if err != nil {
			return Outcome{
				Success: false,
				Message: fmt.Sprintf("%s failed: %v", parts[0], err),
				Details: string(output),
			}
		}
		return Outcome{Success: true, Message: command + " succeeded", Details: string(output)}
	}
}

// projectCommands maps a marker file to the default commands per check kind.
var projectCommands = []struct {
	marker  string
	compile string
	build   string
	test    string
}{
	{"tsconfig.json", "npx tsc --noEmit", "npm run build", "npm test"},
	{"go.mod", "go vet ./...", "go build ./...", "go test ./..."},
	{"Cargo.toml", "cargo check", "cargo build", "cargo test"},
	{"package.json", "npx tsc --noEmit", "npm run build", "npm test"},
	{"Makefile", "make check", "make build", "make test"},
}

// DetectCommands returns (compile, build, test) commands for the project at
// dir, based on which marker file is present. Falls back to the tsc-style
// defaults when nothing is recognized.
func DetectCommands(dir string) (compile, build, test string) {
	for _, pc := range projectCommands {
		if _, err := os.Stat(filepath.Join(dir, pc.marker)); err == nil {
			return pc.compile, pc.build, pc.test
		}
	}
	return "npx tsc --noEmit", "npm run build", "npm test"
}

// DefaultChecks builds the standard post-remediation gate for a project:
// a required recompile, then build and test as advisory checks.
func DefaultChecks(dir string) []Check {
	compile, build, test := DetectCommands(dir)
	return []Check{
		{Name: "recompile", Kind: KindCompile, Timeout: 5 * time.Minute, Required: true, Probe: CommandProbe(dir, compile)},
		{Name: "build", Kind: KindBuild, Timeout: 10 * time.Minute, Required: false, Probe: CommandProbe(dir, build)},
		{Name: "test", Kind: KindTest, Timeout: 10 * time.Minute, Required: false, Probe: CommandProbe(dir, test)},
	}
}
