// Package fixer defines the remediation routine contract and the registry
// that maps root causes to routines. The orchestrator only sees this narrow
// contract; what a fixer actually does to file contents is its own business.
//
// Fixer implementations must:
//   - observe ctx cancellation and return promptly when it fires
//   - be idempotent when reapplied to an already-fixed file set
//   - never touch files outside the set they are given
//   - report the actual number of errors they resolved, not an estimate
package fixer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"checkmend/internal/diagnostic"
)

// ErrNoFixer is returned by the registry when no routine is registered for a
// root cause.
var ErrNoFixer = errors.New("no fixer registered for root cause")

// Result reports what a fixer accomplished.
type Result struct {
	FixedCount int      `json:"fixed_count"`
	Details    []string `json:"details,omitempty"`
}

// Fixer rewrites files to resolve the errors of one phase.
type Fixer interface {
	// Name identifies the fixer in logs and history.
	Name() string
	// Fix applies the routine to the given files. errors is the read-only
	// list of analyzed errors the phase addresses.
	Fix(ctx context.Context, files []string, errs []diagnostic.AnalyzedError) (*Result, error)
}

// Func adapts a plain function to the Fixer interface.
type Func struct {
	FixerName string
	FixFunc   func(ctx context.Context, files []string, errs []diagnostic.AnalyzedError) (*Result, error)
}

func (f Func) Name() string { return f.FixerName }

func (f Func) Fix(ctx context.Context, files []string, errs []diagnostic.AnalyzedError) (*Result, error) {
	return f.FixFunc(ctx, files, errs)
}

// Registry maps root causes to fixers. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	fixers map[diagnostic.RootCause]Fixer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{fixers: make(map[diagnostic.RootCause]Fixer)}
}

// Register binds a fixer to a root cause, replacing any previous binding.
func (r *Registry) Register(cause diagnostic.RootCause, f Fixer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fixers[cause] = f
}

// Lookup returns the fixer for a root cause.
func (r *Registry) Lookup(cause diagnostic.RootCause) (Fixer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fixers[cause]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoFixer, cause)
	}
	return f, nil
}

// Causes returns the sorted list of root causes with a registered fixer.
func (r *Registry) Causes() []diagnostic.RootCause {
	r.mu.RLock()
	defer r.mu.RUnlock()
	causes := make([]diagnostic.RootCause, 0, len(r.fixers))
	for c := range r.fixers {
		causes = append(causes, c)
	}
	sort.Slice(causes, func(i, j int) bool {
		return diagnostic.PriorityOf(causes[i]) < diagnostic.PriorityOf(causes[j])
	})
	return causes
}
