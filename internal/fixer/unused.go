package fixer

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"checkmend/internal/diagnostic"
)

// UnusedFixer removes or neutralizes declared-but-never-read declarations.
// Import lines naming only the unused identifier are deleted; other
// declarations get the identifier prefixed with an underscore, which the
// checker treats as intentionally unused. Both edits are idempotent: a second
// pass finds nothing left to change.
type UnusedFixer struct {
	logger *zap.Logger
}

// NewUnusedFixer creates the builtin unused-declaration fixer.
func NewUnusedFixer(logger *zap.Logger) *UnusedFixer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UnusedFixer{logger: logger}
}

func (u *UnusedFixer) Name() string { return "unused-declarations" }

var importLine = regexp.MustCompile(`^\s*import\b`)

// Fix processes each file's errors in descending line order so earlier edits
// do not shift the line numbers of later ones.
func (u *UnusedFixer) Fix(ctx context.Context, files []string, errs []diagnostic.AnalyzedError) (*Result, error) {
	allowed := make(map[string]bool, len(files))
	for _, f := range files {
		allowed[f] = true
	}

	byFile := make(map[string][]diagnostic.AnalyzedError)
	for _, e := range errs {
		if e.Category.RootCause != diagnostic.CauseUnused {
			continue
		}
		if !allowed[e.File] {
			return nil, fmt.Errorf("error references file outside fix set: %s", e.File)
		}
		byFile[e.File] = append(byFile[e.File], e)
	}

	res := &Result{}
	for file, fileErrs := range byFile {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		fixed, details, err := u.fixFile(file, fileErrs)
		if err != nil {
			return nil, err
		}
		res.FixedCount += fixed
		res.Details = append(res.Details, details...)
	}
	sort.Strings(res.Details)

	u.logger.Debug("unused fixer pass complete",
		zap.Int("fixed", res.FixedCount), zap.Int("files", len(byFile)))
	return res, nil
}

func (u *UnusedFixer) fixFile(path string, fileErrs []diagnostic.AnalyzedError) (int, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	lines := strings.Split(string(data), "\n")

	sort.Slice(fileErrs, func(i, j int) bool { return fileErrs[i].Line > fileErrs[j].Line })

	fixed := 0
	var details []string
	for _, e := range fileErrs {
		idx := e.Line - 1
		if idx < 0 || idx >= len(lines) {
			continue
		}
		ident := identFromPattern(e.Pattern)
		if ident == "" {
			continue
		}
		line := lines[idx]

		switch {
		case importLine.MatchString(line) && strings.Contains(line, ident):
			lines = append(lines[:idx], lines[idx+1:]...)
			fixed++
			details = append(details, fmt.Sprintf("%s:%d removed unused import '%s'", path, e.Line, ident))
		case containsIdentAt(line, ident, e.Col):
			lines[idx] = line[:e.Col-1] + "_" + line[e.Col-1:]
			fixed++
			details = append(details, fmt.Sprintf("%s:%d prefixed unused '%s'", path, e.Line, ident))
		}
	}

	if fixed > 0 {
		if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
			return 0, nil, fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return fixed, details, nil
}

// containsIdentAt reports whether the identifier starts at the 1-based column.
// An identifier already prefixed with '_' is treated as fixed.
func containsIdentAt(line, ident string, col int) bool {
	idx := col - 1
	if idx < 0 || idx+len(ident) > len(line) {
		return false
	}
	if line[idx:idx+len(ident)] != ident {
		return false
	}
	return idx == 0 || line[idx-1] != '_'
}

func identFromPattern(pattern string) string {
	if s, ok := strings.CutPrefix(pattern, "ident:"); ok {
		return s
	}
	return ""
}
