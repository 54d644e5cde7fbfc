// Package plan converts classified errors into an ordered list of remediation
// phases, one per root cause present in the input.
package plan

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"checkmend/internal/diagnostic"
)

// Phase is one ordered unit of remediation work scoped to a single root
// cause. Created by the planner, consumed once by the orchestrator; not
// mutated after creation.
type Phase struct {
	Name     string                    `json:"name"`
	Cause    diagnostic.RootCause      `json:"cause"`
	Priority int                       `json:"priority"`
	Timeout  time.Duration             `json:"timeout"`
	Retries  int                       `json:"retries"`
	Required bool                      `json:"required"`
	Errors   []diagnostic.AnalyzedError `json:"errors"`
	Files    []string                  `json:"files"` // unique, sorted
}

// Defaults are the per-cause phase parameters.
type Defaults struct {
	Timeout  time.Duration
	Retries  int
	Required bool
}

// defaultsTable carries the built-in per-cause defaults. Syntax and import
// phases are required: later fixers assume a resolvable, parseable tree.
var defaultsTable = map[diagnostic.RootCause]Defaults{
	diagnostic.CauseSyntax: {Timeout: 120 * time.Second, Retries: 2, Required: true},
	diagnostic.CauseImport: {Timeout: 90 * time.Second, Retries: 2, Required: true},
	diagnostic.CauseType:   {Timeout: 120 * time.Second, Retries: 2, Required: false},
	diagnostic.CauseUnused: {Timeout: 60 * time.Second, Retries: 1, Required: false},
	diagnostic.CauseOther:  {Timeout: 60 * time.Second, Retries: 1, Required: false},
}

// Config overrides the built-in phase defaults. Zero values mean "keep the
// default"; Overrides wins over the global knobs for its cause.
type Config struct {
	Timeout   time.Duration // global timeout override for every phase
	Retries   int           // global retry override for every phase
	Overrides map[diagnostic.RootCause]Defaults
}

// Planner builds phases from analyzed errors.
type Planner struct {
	logger *zap.Logger
}

// NewPlanner creates a planner. A nil logger is replaced with a no-op one.
func NewPlanner(logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{logger: logger}
}

// Plan groups errors by root cause and emits one phase per non-empty group,
// ordered by ascending priority with ties broken by group size descending
// then name lexical. Categories with zero errors produce no phase.
func (p *Planner) Plan(errs []diagnostic.AnalyzedError, cfg Config) []Phase {
	groups := diagnostic.GroupByCause(errs)

	var phases []Phase
	for _, cause := range diagnostic.AllCauses {
		group := groups[cause]
		if len(group) == 0 {
			continue
		}
		d := p.resolveDefaults(cause, cfg)
		phases = append(phases, Phase{
			Name:     string(cause),
			Cause:    cause,
			Priority: diagnostic.PriorityOf(cause),
			Timeout:  d.Timeout,
			Retries:  d.Retries,
			Required: d.Required,
			Errors:   group,
			Files:    diagnostic.Files(group),
		})
	}

	sort.SliceStable(phases, func(i, j int) bool {
		if phases[i].Priority != phases[j].Priority {
			return phases[i].Priority < phases[j].Priority
		}
		if len(phases[i].Errors) != len(phases[j].Errors) {
			return len(phases[i].Errors) > len(phases[j].Errors)
		}
		return phases[i].Name < phases[j].Name
	})

	for _, ph := range phases {
		p.logger.Debug("planned phase",
			zap.String("phase", ph.Name),
			zap.Int("priority", ph.Priority),
			zap.Int("errors", len(ph.Errors)),
			zap.Int("files", len(ph.Files)),
			zap.Bool("required", ph.Required))
	}

	return phases
}

func (p *Planner) resolveDefaults(cause diagnostic.RootCause, cfg Config) Defaults {
	d, ok := defaultsTable[cause]
	if !ok {
		d = defaultsTable[diagnostic.CauseOther]
	}
	if cfg.Timeout > 0 {
		d.Timeout = cfg.Timeout
	}
	if cfg.Retries > 0 {
		d.Retries = cfg.Retries
	}
	if ov, ok := cfg.Overrides[cause]; ok {
		if ov.Timeout > 0 {
			d.Timeout = ov.Timeout
		}
		if ov.Retries > 0 {
			d.Retries = ov.Retries
		}
		d.Required = ov.Required
	}
	return d
}

// TotalFiles returns the sorted union of file paths across all phases.
func TotalFiles(phases []Phase) []string {
	seen := make(map[string]bool)
	var files []string
	for _, ph := range phases {
		for _, f := range ph.Files {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	sort.Strings(files)
	return files
}
