package fixer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"checkmend/internal/diagnostic"
)

// ImportFixer rewrites unresolved relative import specifiers to the closest
// matching file next to the intended target, fixing typos like './utl' for
// './util'. Only relative specifiers are touched; bare module names resolve
// through the package manager and cannot be repaired by renaming. The edit
// replaces the quoted specifier in place, so line numbers never shift.
type ImportFixer struct {
	logger *zap.Logger
}

// NewImportFixer creates the builtin import-specifier fixer.
func NewImportFixer(logger *zap.Logger) *ImportFixer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportFixer{logger: logger}
}

func (f *ImportFixer) Name() string { return "import-rewrite" }

// sourceExts are the extensions stripped when matching a specifier against
// directory entries, mirroring the checker's module resolution.
var sourceExts = []string{".ts", ".tsx", ".js", ".jsx"}

func (f *ImportFixer) Fix(ctx context.Context, files []string, errs []diagnostic.AnalyzedError) (*Result, error) {
	allowed := make(map[string]bool, len(files))
	for _, fl := range files {
		allowed[fl] = true
	}

	byFile := make(map[string][]diagnostic.AnalyzedError)
	for _, e := range errs {
		if e.Category.RootCause != diagnostic.CauseImport {
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

		fixed, details, err := f.fixFile(file, fileErrs)
		if err != nil {
			return nil, err
		}
		res.FixedCount += fixed
		res.Details = append(res.Details, details...)
	}
	sort.Strings(res.Details)

	f.logger.Debug("import fixer pass complete",
		zap.Int("fixed", res.FixedCount), zap.Int("files", len(byFile)))
	return res, nil
}

func (f *ImportFixer) fixFile(path string, fileErrs []diagnostic.AnalyzedError) (int, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	lines := strings.Split(string(data), "\n")

	fixed := 0
	var details []string
	for _, e := range fileErrs {
		idx := e.Line - 1
		if idx < 0 || idx >= len(lines) {
			continue
		}
		spec := specifierFromPattern(e.Pattern)
		if spec == "" || !strings.HasPrefix(spec, ".") {
			continue
		}

		replacement := closestSpecifier(filepath.Dir(path), spec)
		if replacement == "" || replacement == spec {
			continue
		}

		line := lines[idx]
		rewritten := replaceSpecifier(line, spec, replacement)
		if rewritten == line {
			continue
		}
		lines[idx] = rewritten
		fixed++
		details = append(details, fmt.Sprintf("%s:%d rewrote import '%s' to '%s'", path, e.Line, spec, replacement))
	}

	if fixed > 0 {
		if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
			return 0, nil, fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return fixed, details, nil
}

// closestSpecifier finds the sibling file whose name is the closest match to
// the specifier's final segment, within an edit distance of 2. Returns the
// corrected specifier, or "" when nothing is close enough.
func closestSpecifier(importerDir, spec string) string {
	target := filepath.Join(importerDir, spec)
	dir := filepath.Dir(target)
	want := filepath.Base(target)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	best := ""
	bestDist := 3
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if !hasSourceExt(ext) {
			continue
		}
		stem := strings.TrimSuffix(name, ext)
		d := editDistance(want, stem)
		if d < bestDist {
			bestDist = d
			best = stem
		}
	}
	if best == "" {
		return ""
	}
	slash := strings.LastIndex(spec, "/")
	if slash < 0 {
		return best
	}
	return spec[:slash+1] + best
}

// replaceSpecifier swaps the quoted specifier on an import line, preserving
// the quote style.
func replaceSpecifier(line, old, new string) string {
	for _, q := range []string{"'", "\""} {
		if strings.Contains(line, q+old+q) {
			return strings.Replace(line, q+old+q, q+new+q, 1)
		}
	}
	return line
}

func hasSourceExt(ext string) bool {
	for _, e := range sourceExts {
		if ext == e {
			return true
		}
	}
	return false
}

// editDistance is the Levenshtein distance between two short names.
func editDistance(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func specifierFromPattern(pattern string) string {
	if s, ok := strings.CutPrefix(pattern, "module:"); ok {
		return s
	}
	return ""
}
