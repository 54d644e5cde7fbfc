package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"checkmend/internal/diagnostic"
	"checkmend/internal/plan"
	"checkmend/internal/run"
	"checkmend/internal/validate"
)

// Config holds all checkmend configuration.
type Config struct {
	// Remediation run settings
	Run RunConfig `yaml:"run"`

	// Per-cause phase overrides, keyed by root cause name
	// (syntax, import, type, unused, other).
	Phases map[string]PhaseConfig `yaml:"phases"`

	// Backup snapshot storage
	Backup BackupConfig `yaml:"backup"`

	// Run history database
	Store StoreConfig `yaml:"store"`

	// Post-remediation validation checks
	Validation ValidationConfig `yaml:"validation"`

	// Watch mode
	Watch WatchConfig `yaml:"watch"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// RunConfig configures the execution orchestrator. TimeoutSeconds and
// MaxRetries are global overrides: zero means unset, leaving the planner's
// per-cause defaults in effect.
type RunConfig struct {
	TimeoutSeconds              int  `yaml:"timeout_seconds"`
	MaxRetries                  int  `yaml:"max_retries"`
	BackupEnabled               bool `yaml:"backup_enabled"`
	ValidationEnabled           bool `yaml:"validation_enabled"`
	RollbackOnFailure           bool `yaml:"rollback_on_failure"`
	ContinueOnValidationFailure bool `yaml:"continue_on_validation_failure"`
}

// PhaseConfig overrides planner defaults for one root cause.
type PhaseConfig struct {
	TimeoutSeconds int  `yaml:"timeout_seconds"`
	Retries        int  `yaml:"retries"`
	Required       bool `yaml:"required"`
}

// BackupConfig configures snapshot storage.
type BackupConfig struct {
	Dir string `yaml:"dir"`
}

// StoreConfig configures the run history database.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ValidationConfig configures post-remediation checks. When Commands is
// empty the checks are detected from project markers in the working
// directory.
type ValidationConfig struct {
	TimeoutSeconds int            `yaml:"timeout_seconds"`
	Commands       []CheckCommand `yaml:"commands"`
}

// CheckCommand describes one shell-invoked validation check.
type CheckCommand struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"` // compile, lint, build, test
	Command  string `yaml:"command"`
	Required bool   `yaml:"required"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	DebounceMillis int      `yaml:"debounce_millis"`
	Extensions     []string `yaml:"extensions"`
}

// LoggingConfig configures zap output.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Run: RunConfig{
			BackupEnabled:     true,
			ValidationEnabled: true,
			RollbackOnFailure: true,
		},
		Phases: map[string]PhaseConfig{},
		Backup: BackupConfig{
			Dir: ".checkmend/backups",
		},
		Store: StoreConfig{
			DatabasePath: ".checkmend/runs.db",
		},
		Validation: ValidationConfig{
			TimeoutSeconds: 120,
		},
		Watch: WatchConfig{
			DebounceMillis: 500,
			Extensions:     []string{".ts", ".tsx"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults
// when the file does not exist. Environment variables override file
// values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CHECKMEND_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Run.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("CHECKMEND_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Run.MaxRetries = n
		}
	}
	if v := os.Getenv("CHECKMEND_BACKUP_DIR"); v != "" {
		c.Backup.Dir = v
	}
	if v := os.Getenv("CHECKMEND_DB"); v != "" {
		c.Store.DatabasePath = v
	}
	if v := os.Getenv("CHECKMEND_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Run.TimeoutSeconds < 0 {
		return fmt.Errorf("run.timeout_seconds must not be negative, got %d", c.Run.TimeoutSeconds)
	}
	if c.Run.MaxRetries < 0 {
		return fmt.Errorf("run.max_retries must not be negative, got %d", c.Run.MaxRetries)
	}
	for name := range c.Phases {
		if _, ok := diagnostic.ParseCause(name); !ok {
			return fmt.Errorf("phases.%s: unknown root cause", name)
		}
	}
	for _, cmd := range c.Validation.Commands {
		if cmd.Name == "" {
			return fmt.Errorf("validation command missing name")
		}
		if cmd.Command == "" {
			return fmt.Errorf("validation command %s missing command", cmd.Name)
		}
		switch validate.Kind(cmd.Kind) {
		case validate.KindCompile, validate.KindLint, validate.KindBuild, validate.KindTest:
		default:
			return fmt.Errorf("validation command %s: unknown kind %q", cmd.Name, cmd.Kind)
		}
	}
	return nil
}

// ToRunConfig converts the run section to an orchestrator config. Unset
// timeout and retries keep the orchestrator defaults.
func (c *Config) ToRunConfig() run.Config {
	rc := run.DefaultConfig()
	if c.Run.TimeoutSeconds > 0 {
		rc.TimeoutSeconds = c.Run.TimeoutSeconds
	}
	if c.Run.MaxRetries > 0 {
		rc.MaxRetries = c.Run.MaxRetries
	}
	rc.BackupEnabled = c.Run.BackupEnabled
	rc.ValidationEnabled = c.Run.ValidationEnabled
	rc.RollbackOnFailure = c.Run.RollbackOnFailure
	rc.ContinueOnValidationFailure = c.Run.ContinueOnValidationFailure
	return rc
}

// ToPlanConfig converts run and phase sections to a planner config. The
// global timeout and retries are passed through only when explicitly set,
// so the planner's per-cause defaults apply otherwise.
func (c *Config) ToPlanConfig() plan.Config {
	var pc plan.Config
	if c.Run.TimeoutSeconds > 0 {
		pc.Timeout = time.Duration(c.Run.TimeoutSeconds) * time.Second
	}
	if c.Run.MaxRetries > 0 {
		pc.Retries = c.Run.MaxRetries
	}
	if len(c.Phases) > 0 {
		pc.Overrides = make(map[diagnostic.RootCause]plan.Defaults, len(c.Phases))
		for name, p := range c.Phases {
			cause, ok := diagnostic.ParseCause(name)
			if !ok {
				continue
			}
			pc.Overrides[cause] = plan.Defaults{
				Timeout:  time.Duration(p.TimeoutSeconds) * time.Second,
				Retries:  p.Retries,
				Required: p.Required,
			}
		}
	}
	return pc
}

// BuildChecks returns the configured validation checks for the given
// working directory, falling back to project marker detection when no
// commands are configured.
func (c *Config) BuildChecks(dir string) []validate.Check {
	if len(c.Validation.Commands) == 0 {
		return validate.DefaultChecks(dir)
	}

	timeout := time.Duration(c.Validation.TimeoutSeconds) * time.Second
	checks := make([]validate.Check, 0, len(c.Validation.Commands))
	for _, cmd := range c.Validation.Commands {
		checks = append(checks, validate.Check{
			Name:     cmd.Name,
			Kind:     validate.Kind(cmd.Kind),
			Required: cmd.Required,
			Timeout:  timeout,
			Probe:    validate.CommandProbe(dir, cmd.Command),
		})
	}
	return checks
}
