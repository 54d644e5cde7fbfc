package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkmend/internal/diagnostic"
	"checkmend/internal/plan"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	// Zero timeout and retries mean unset: the planner's per-cause
	// defaults stay in effect.
	assert.Equal(t, 0, cfg.Run.TimeoutSeconds)
	assert.Equal(t, 0, cfg.Run.MaxRetries)
	assert.True(t, cfg.Run.BackupEnabled)
	assert.True(t, cfg.Run.RollbackOnFailure)
	assert.Equal(t, ".checkmend/backups", cfg.Backup.Dir)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkmend.yaml")
	raw := `
run:
  timeout_seconds: 60
  max_retries: 5
  backup_enabled: false
phases:
  unused:
    timeout_seconds: 30
    retries: 1
backup:
  dir: /tmp/snaps
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Run.TimeoutSeconds)
	assert.Equal(t, 5, cfg.Run.MaxRetries)
	assert.False(t, cfg.Run.BackupEnabled)
	assert.Equal(t, "/tmp/snaps", cfg.Backup.Dir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.Contains(t, cfg.Phases, "unused")
	assert.Equal(t, 30, cfg.Phases["unused"].TimeoutSeconds)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("run: [not a map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CHECKMEND_TIMEOUT", "90")
	t.Setenv("CHECKMEND_RETRIES", "0")
	t.Setenv("CHECKMEND_BACKUP_DIR", "/tmp/env-snaps")
	t.Setenv("CHECKMEND_LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.Run.TimeoutSeconds)
	assert.Equal(t, 0, cfg.Run.MaxRetries)
	assert.Equal(t, "/tmp/env-snaps", cfg.Backup.Dir)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Run.TimeoutSeconds = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Phases["typo"] = PhaseConfig{Retries: 1}
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Validation.Commands = []CheckCommand{{Name: "lint", Kind: "lint", Command: "npx eslint ."}}
	require.NoError(t, cfg.Validate())

	cfg.Validation.Commands[0].Kind = "fuzz"
	assert.Error(t, cfg.Validate())
}

func TestToPlanConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Run.TimeoutSeconds = 60
	cfg.Run.MaxRetries = 3
	cfg.Phases["unused"] = PhaseConfig{TimeoutSeconds: 30, Retries: 1, Required: true}

	pc := cfg.ToPlanConfig()
	assert.Equal(t, 60*time.Second, pc.Timeout)
	assert.Equal(t, 3, pc.Retries)
	require.Contains(t, pc.Overrides, diagnostic.CauseUnused)
	assert.Equal(t, 30*time.Second, pc.Overrides[diagnostic.CauseUnused].Timeout)
	assert.True(t, pc.Overrides[diagnostic.CauseUnused].Required)
}

func TestToPlanConfig_DefaultsLeavePerCauseBudgets(t *testing.T) {
	cfg := DefaultConfig()

	pc := cfg.ToPlanConfig()
	assert.Zero(t, pc.Timeout)
	assert.Zero(t, pc.Retries)

	// With no global override, the unused phase keeps its own budget
	// instead of inheriting a run-wide one.
	errs := []diagnostic.AnalyzedError{
		{
			Diagnostic: diagnostic.Diagnostic{File: "a.ts", Line: 1, Col: 1, Code: "TS6133", Message: "'x' is declared but its value is never read."},
			Category:   diagnostic.Category{RootCause: diagnostic.CauseUnused},
			Priority:   diagnostic.PriorityOf(diagnostic.CauseUnused),
		},
	}
	phases := plan.NewPlanner(nil).Plan(errs, pc)
	require.Len(t, phases, 1)
	assert.Equal(t, 60*time.Second, phases[0].Timeout)
	assert.Equal(t, 1, phases[0].Retries)
}

func TestBuildChecks_ConfiguredCommands(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Validation.Commands = []CheckCommand{
		{Name: "recompile", Kind: "compile", Command: "npx tsc --noEmit", Required: true},
		{Name: "lint", Kind: "lint", Command: "npx eslint ."},
	}

	checks := cfg.BuildChecks(t.TempDir())
	require.Len(t, checks, 2)
	assert.Equal(t, "recompile", checks[0].Name)
	assert.True(t, checks[0].Required)
	assert.False(t, checks[1].Required)
	assert.NotNil(t, checks[0].Probe)
}

func TestBuildChecks_FallsBackToDetection(t *testing.T) {
	cfg := DefaultConfig()
	checks := cfg.BuildChecks(t.TempDir())
	require.NotEmpty(t, checks)
	assert.Equal(t, "recompile", checks[0].Name)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "checkmend.yaml")
	cfg := DefaultConfig()
	cfg.Run.MaxRetries = 7
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Run.MaxRetries)
}
