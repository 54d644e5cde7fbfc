package diagnostic

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// diagnosticLine matches one diagnostic in the form
// <path>(<line>,<col>): error <CODE>: <message>
var diagnosticLine = regexp.MustCompile(`^(.+?)\((\d+),(\d+)\): error ([A-Za-z0-9]+): (.+)$`)

// Analyzer turns raw diagnostic text into classified AnalyzedErrors.
type Analyzer struct {
	logger *zap.Logger
}

// NewAnalyzer creates an analyzer. A nil logger is replaced with a no-op one.
func NewAnalyzer(logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{logger: logger}
}

// Analyze parses raw diagnostic text and classifies every recognized line.
// Unparsable lines are skipped, never fatal; wholly malformed input yields an
// empty result. The returned slice is sorted by priority, then file, then
// line, so downstream consumers see a deterministic order.
func (a *Analyzer) Analyze(raw string) []AnalyzedError {
	var out []AnalyzedError
	skipped := 0

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := diagnosticLine.FindStringSubmatch(line)
		if m == nil {
			skipped++
			a.logger.Debug("skipping unparsable diagnostic line", zap.String("line", truncate(line, 120)))
			continue
		}

		lineNum, err1 := strconv.Atoi(m[2])
		colNum, err2 := strconv.Atoi(m[3])
		if err1 != nil || err2 != nil || lineNum < 1 || colNum < 1 {
			skipped++
			continue
		}

		d := Diagnostic{
			File:    m[1],
			Line:    lineNum,
			Col:     colNum,
			Code:    m[4],
			Message: m[5],
		}
		cause := Classify(d.Code, d.Message)
		out = append(out, AnalyzedError{
			Diagnostic: d,
			Category: Category{
				RootCause: cause,
				Severity:  SeverityOf(cause),
			},
			Priority:     PriorityOf(cause),
			Pattern:      patternHint(cause, d.Message),
			SuggestedFix: suggestedFix(cause),
		})
	}

	if skipped > 0 {
		a.logger.Debug("diagnostic parse complete",
			zap.Int("parsed", len(out)), zap.Int("skipped", skipped))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Line < out[j].Line
	})

	return out
}

// syntaxCodes are parse-level diagnostics; the 1xxx range in tsc-style tools.
var syntaxCodes = map[string]bool{
	"TS1002": true, "TS1003": true, "TS1005": true, "TS1009": true,
	"TS1109": true, "TS1110": true, "TS1128": true, "TS1131": true,
	"TS1134": true, "TS1135": true, "TS1136": true, "TS1160": true,
	"TS1161": true, "TS1434": true, "TS1435": true,
}

// importCodes are module-resolution diagnostics.
var importCodes = map[string]bool{
	"TS2305": true, "TS2306": true, "TS2307": true, "TS2614": true,
	"TS2792": true, "TS1192": true, "TS1259": true, "TS1479": true,
}

// unusedCodes are declared-but-never-read diagnostics.
var unusedCodes = map[string]bool{
	"TS6133": true, "TS6138": true, "TS6192": true, "TS6196": true,
	"TS6198": true, "TS6199": true, "TS6205": true,
}

// Classify maps an opaque diagnostic code plus message to a root cause.
// Precedence is fixed: syntax, then import, then type, then unused, then
// Other. The code table wins; message keywords are the fallback for codes we
// have not seen before.
func Classify(code, message string) RootCause {
	switch {
	case syntaxCodes[code]:
		return CauseSyntax
	case importCodes[code]:
		return CauseImport
	case unusedCodes[code]:
		return CauseUnused
	}

	// Numeric band fallback for TS-style codes: 1xxx parse, 2xxx type-check.
	if n, ok := numericCode(code); ok {
		switch {
		case n >= 1000 && n < 2000:
			return CauseSyntax
		case n >= 6000 && n < 7000 && mentionsUnused(message):
			return CauseUnused
		}
	}

	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "cannot find module") ||
		strings.Contains(lower, "has no exported member") ||
		strings.Contains(lower, "module resolution"):
		return CauseImport
	case mentionsUnused(lower):
		return CauseUnused
	case strings.Contains(lower, "expected") ||
		strings.Contains(lower, "unexpected token") ||
		strings.Contains(lower, "unterminated"):
		return CauseSyntax
	case strings.Contains(lower, "is not assignable") ||
		strings.Contains(lower, "does not exist on type") ||
		strings.Contains(lower, "cannot find name") ||
		strings.Contains(lower, "no overload matches") ||
		strings.Contains(lower, "argument of type"):
		return CauseType
	}

	if n, ok := numericCode(code); ok && n >= 2000 && n < 3000 {
		return CauseType
	}

	return CauseOther
}

func numericCode(code string) (int, bool) {
	trimmed := strings.TrimLeft(code, "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz")
	if trimmed == "" {
		return 0, false
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, false
	}
	return n, true
}

func mentionsUnused(lower string) bool {
	return strings.Contains(lower, "is declared but") ||
		strings.Contains(lower, "never read") ||
		strings.Contains(lower, "never used") ||
		strings.Contains(lower, "unused")
}

// identifierRef extracts the first quoted identifier from a message, if any.
var identifierRef = regexp.MustCompile(`'([^']+)'`)

func patternHint(cause RootCause, message string) string {
	m := identifierRef.FindStringSubmatch(message)
	if m == nil {
		return ""
	}
	switch cause {
	case CauseImport:
		return "module:" + m[1]
	case CauseUnused, CauseType:
		return "ident:" + m[1]
	default:
		return ""
	}
}

func suggestedFix(cause RootCause) string {
	switch cause {
	case CauseSyntax:
		return "repair the token sequence at the reported position"
	case CauseImport:
		return "resolve the module specifier or add the missing export"
	case CauseType:
		return "align the value's type with the expected type"
	case CauseUnused:
		return "remove the unused declaration or mark it intentionally unused"
	default:
		return ""
	}
}

// GroupByFile buckets analyzed errors by file path.
func GroupByFile(errs []AnalyzedError) map[string][]AnalyzedError {
	groups := make(map[string][]AnalyzedError)
	for _, e := range errs {
		groups[e.File] = append(groups[e.File], e)
	}
	return groups
}

// GroupByCause buckets analyzed errors by root cause.
func GroupByCause(errs []AnalyzedError) map[RootCause][]AnalyzedError {
	groups := make(map[RootCause][]AnalyzedError)
	for _, e := range errs {
		groups[e.Category.RootCause] = append(groups[e.Category.RootCause], e)
	}
	return groups
}

// Files returns the sorted set of unique file paths across errors.
func Files(errs []AnalyzedError) []string {
	seen := make(map[string]bool)
	var files []string
	for _, e := range errs {
		if !seen[e.File] {
			seen[e.File] = true
			files = append(files, e.File)
		}
	}
	sort.Strings(files)
	return files
}

// Recommendations produces advisory summary lines for a set of errors.
func Recommendations(errs []AnalyzedError) []string {
	if len(errs) == 0 {
		return nil
	}
	groups := GroupByCause(errs)
	var recs []string
	for _, cause := range AllCauses {
		n := len(groups[cause])
		if n == 0 {
			continue
		}
		switch cause {
		case CauseSyntax:
			recs = append(recs, fmt.Sprintf("%d syntax error(s): fix these first, later fixes assume a parseable tree", n))
		case CauseImport:
			recs = append(recs, fmt.Sprintf("%d import error(s): check module specifiers and exports", n))
		case CauseType:
			recs = append(recs, fmt.Sprintf("%d type error(s): review declarations and call sites", n))
		case CauseUnused:
			recs = append(recs, fmt.Sprintf("%d unused declaration(s): safe to remove", n))
		case CauseOther:
			recs = append(recs, fmt.Sprintf("%d unclassified error(s): manual review needed", n))
		}
	}
	return recs
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
