// Package diagnostic parses raw type-checker output into structured,
// classified errors. Parsing is line-oriented and tolerant: lines that do not
// match the diagnostic grammar are skipped, so partial or interleaved tool
// output is still usable.
package diagnostic

// RootCause buckets a diagnostic by what kind of remediation it needs.
type RootCause string

const (
	CauseSyntax RootCause = "syntax" // Parse-level errors, must be fixed first
	CauseImport RootCause = "import" // Module resolution / missing exports
	CauseType   RootCause = "type"   // Type mismatches, unknown names
	CauseUnused RootCause = "unused" // Declared but never read
	CauseOther  RootCause = "other"  // Anything unclassified
)

// AllCauses lists every root cause in ascending remediation priority.
var AllCauses = []RootCause{CauseSyntax, CauseImport, CauseType, CauseUnused, CauseOther}

// ParseCause maps a root cause name to its RootCause value.
func ParseCause(name string) (RootCause, bool) {
	for _, c := range AllCauses {
		if string(c) == name {
			return c, true
		}
	}
	return "", false
}

// Severity represents how badly a diagnostic blocks progress.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Diagnostic is one parsed diagnostic line. Immutable once parsed.
type Diagnostic struct {
	File    string `json:"file"`
	Line    int    `json:"line"` // 1-based
	Col     int    `json:"col"`  // 1-based
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Category pairs a root cause with its severity.
type Category struct {
	RootCause RootCause `json:"root_cause"`
	Severity  Severity  `json:"severity"`
}

// AnalyzedError is a Diagnostic enriched with classification and remediation
// hints. Produced by Analyze, consumed read-only by the planner and fixers.
type AnalyzedError struct {
	Diagnostic
	Category     Category `json:"category"`
	Priority     int      `json:"priority"` // Lower runs first
	Pattern      string   `json:"pattern,omitempty"`
	SuggestedFix string   `json:"suggested_fix,omitempty"`
}

// priorityTable is the fixed remediation ordering. Syntax errors block
// everything downstream, so they come first.
var priorityTable = map[RootCause]int{
	CauseSyntax: 1,
	CauseImport: 2,
	CauseType:   3,
	CauseUnused: 4,
	CauseOther:  5,
}

// severityTable maps root causes to default severities.
var severityTable = map[RootCause]Severity{
	CauseSyntax: SeverityCritical,
	CauseImport: SeverityHigh,
	CauseType:   SeverityMedium,
	CauseUnused: SeverityLow,
	CauseOther:  SeverityMedium,
}

// PriorityOf returns the remediation priority for a root cause.
func PriorityOf(cause RootCause) int {
	if p, ok := priorityTable[cause]; ok {
		return p
	}
	return priorityTable[CauseOther]
}

// SeverityOf returns the default severity for a root cause.
func SeverityOf(cause RootCause) Severity {
	if s, ok := severityTable[cause]; ok {
		return s
	}
	return SeverityMedium
}
