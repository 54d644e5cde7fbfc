// Package validate runs post-remediation checks (compile, lint, build, test)
// and aggregates their pass/fail outcomes into a summary.
package validate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Kind classifies a validation check. Closed set.
type Kind string

const (
	KindCompile Kind = "compile"
	KindLint    Kind = "lint"
	KindBuild   Kind = "build"
	KindTest    Kind = "test"
)

// Outcome is what a probe reports back.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Probe is the check's executable body. It must observe ctx; the engine
// abandons probes that outlive their deadline.
type Probe func(ctx context.Context) Outcome

// Check is one post-remediation gate.
type Check struct {
	Name     string
	Kind     Kind
	Timeout  time.Duration
	Required bool
	Probe    Probe
}

// Result records one check's outcome.
type Result struct {
	Name     string        `json:"name"`
	Kind     Kind          `json:"kind"`
	Passed   bool          `json:"passed"`
	Skipped  bool          `json:"skipped"`
	Required bool          `json:"required"`
	Message  string        `json:"message"`
	Details  string        `json:"details,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Summary aggregates a validation pass. The terminal artifact of a run.
type Summary struct {
	Results         []Result  `json:"results"`
	Passed          int       `json:"passed"`
	Failed          int       `json:"failed"`
	Skipped         int       `json:"skipped"`
	OverallSuccess  bool      `json:"overall_success"`
	Recommendations []string  `json:"recommendations,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	Duration        time.Duration `json:"duration"`
}

// Engine runs validation checks sequentially.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates a validation engine. A nil logger becomes a no-op one.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

const defaultCheckTimeout = 2 * time.Minute

// Validate runs checks in list order. A failing required check stops the
// list: later checks are recorded as skipped, not failed. A probe that
// outlives its timeout counts as a failure with a synthesized message.
// OverallSuccess is true when every check either passed or was not required.
func (e *Engine) Validate(ctx context.Context, checks []Check) *Summary {
	sum := &Summary{StartedAt: time.Now().UTC()}
	defer func() { sum.Duration = time.Since(sum.StartedAt) }()

	haltedAt := -1
	for i, c := range checks {
		if haltedAt >= 0 {
			sum.Results = append(sum.Results, Result{
				Name:     c.Name,
				Kind:     c.Kind,
				Skipped:  true,
				Required: c.Required,
				Message:  fmt.Sprintf("skipped: required check %q failed", checks[haltedAt].Name),
			})
			sum.Skipped++
			continue
		}

		res := e.runCheck(ctx, c)
		sum.Results = append(sum.Results, res)
		if res.Passed {
			sum.Passed++
			continue
		}

		sum.Failed++
		sum.Recommendations = append(sum.Recommendations, recommendationFor(c.Kind, c.Name))
		if c.Required {
			haltedAt = i
			e.logger.Warn("required validation check failed, halting remaining checks",
				zap.String("check", c.Name), zap.String("kind", string(c.Kind)))
		}
	}

	sum.OverallSuccess = true
	for _, r := range sum.Results {
		if r.Required && !r.Passed {
			sum.OverallSuccess = false
			break
		}
	}
	return sum
}

func (e *Engine) runCheck(ctx context.Context, c Check) Result {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan Outcome, 1)
	go func() { done <- c.Probe(cctx) }()

	var out Outcome
	select {
	case out = <-done:
	case <-cctx.Done():
		out = Outcome{
			Success: false,
			Message: fmt.Sprintf("check %q timed out after %s", c.Name, timeout),
		}
	}

	res := Result{
		Name:     c.Name,
		Kind:     c.Kind,
		Passed:   out.Success,
		Required: c.Required,
		Message:  out.Message,
		Details:  out.Details,
		Duration: time.Since(start),
	}

	e.logger.Debug("validation check finished",
		zap.String("check", c.Name),
		zap.Bool("passed", res.Passed),
		zap.Duration("duration", res.Duration))
	return res
}

// recommendationFor produces an advisory hint per failing check kind. Never
// used for control flow.
func recommendationFor(kind Kind, name string) string {
	switch kind {
	case KindCompile:
		return fmt.Sprintf("%s: fix syntax-class diagnostics before other checks will be meaningful", name)
	case KindLint:
		return fmt.Sprintf("%s: lint failures are usually residue of automated edits; review the changed files", name)
	case KindBuild:
		return fmt.Sprintf("%s: the tree compiles per-file but does not link; check cross-module references", name)
	case KindTest:
		return fmt.Sprintf("%s: behavior may have changed; diff the failing tests against the remediated files", name)
	default:
		return fmt.Sprintf("%s: check failed", name)
	}
}
