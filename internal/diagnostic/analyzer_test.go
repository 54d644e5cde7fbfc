package diagnostic

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_SingleLine(t *testing.T) {
	a := NewAnalyzer(nil)

	errs := a.Analyze(`src/app.ts(12,5): error TS2322: Type 'string' is not assignable to type 'number'.`)
	require.Len(t, errs, 1)

	e := errs[0]
	assert.Equal(t, "src/app.ts", e.File)
	assert.Equal(t, 12, e.Line)
	assert.Equal(t, 5, e.Col)
	assert.Equal(t, "TS2322", e.Code)
	assert.Equal(t, "Type 'string' is not assignable to type 'number'.", e.Message)
	assert.Equal(t, CauseType, e.Category.RootCause)
	assert.Equal(t, SeverityMedium, e.Category.Severity)
	assert.Equal(t, 3, e.Priority)
}

func TestAnalyze_RoundTrip(t *testing.T) {
	// Format N synthetic diagnostics per the grammar and check that every one
	// is recovered with identical fields.
	rng := rand.New(rand.NewSource(42))
	codes := []string{"TS1005", "TS2307", "TS2322", "TS6133", "TS9999"}

	const n = 50
	type key struct {
		file          string
		line, col     int
		code, message string
	}
	want := make(map[key]int)

	var sb strings.Builder
	for i := 0; i < n; i++ {
		k := key{
			file:    fmt.Sprintf("src/mod%d/file%d.ts", rng.Intn(5), rng.Intn(10)),
			line:    1 + rng.Intn(500),
			col:     1 + rng.Intn(80),
			code:    codes[rng.Intn(len(codes))],
			message: fmt.Sprintf("synthetic message %d", i),
		}
		want[k]++
		fmt.Fprintf(&sb, "%s(%d,%d): error %s: %s\n", k.file, k.line, k.col, k.code, k.message)
	}

	errs := NewAnalyzer(nil).Analyze(sb.String())
	require.Len(t, errs, n)

	got := make(map[key]int)
	for _, e := range errs {
		got[key{e.File, e.Line, e.Col, e.Code, e.Message}]++
	}
	assert.Equal(t, want, got)
}

func TestAnalyze_SkipsUnparsableLines(t *testing.T) {
	raw := strings.Join([]string{
		"Found 3 errors in 2 files.",
		"src/a.ts(1,1): error TS1005: ';' expected.",
		"",
		"    at Object.<anonymous> (main.js:10:3)",
		"src/b.ts(2,9): error TS6133: 'x' is declared but its value is never read.",
	}, "\n")

	errs := NewAnalyzer(nil).Analyze(raw)
	require.Len(t, errs, 2)
}

func TestAnalyze_MalformedInput(t *testing.T) {
	a := NewAnalyzer(nil)
	assert.Empty(t, a.Analyze(""))
	assert.Empty(t, a.Analyze("\x00\x01\x02 binary garbage \xff\xfe"))
	assert.Empty(t, a.Analyze("completely unrelated text\nwith multiple lines\n"))
}

func TestAnalyze_DeterministicOrdering(t *testing.T) {
	// Same diagnostics in two shuffles must come out in the same order:
	// priority, then file, then line.
	lines := []string{
		"src/z.ts(9,1): error TS6133: 'a' is declared but its value is never read.",
		"src/a.ts(5,1): error TS1005: ';' expected.",
		"src/a.ts(2,1): error TS1005: '}' expected.",
		"src/m.ts(3,1): error TS2307: Cannot find module './util'.",
	}
	forward := NewAnalyzer(nil).Analyze(strings.Join(lines, "\n"))

	reversed := make([]string, len(lines))
	for i, l := range lines {
		reversed[len(lines)-1-i] = l
	}
	backward := NewAnalyzer(nil).Analyze(strings.Join(reversed, "\n"))

	require.Equal(t, forward, backward)
	assert.Equal(t, CauseSyntax, forward[0].Category.RootCause)
	assert.Equal(t, 2, forward[0].Line) // same file ties break by line
	assert.Equal(t, CauseImport, forward[2].Category.RootCause)
	assert.Equal(t, CauseUnused, forward[3].Category.RootCause)
}

func TestClassify_Precedence(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		message string
		want    RootCause
	}{
		{"syntax code", "TS1005", "';' expected.", CauseSyntax},
		{"syntax band", "TS1384", "A 'new' expression with type arguments must have parentheses.", CauseSyntax},
		{"import code", "TS2307", "Cannot find module 'lodash'.", CauseImport},
		{"import by message", "TS2999", "Cannot find module './missing'.", CauseImport},
		{"missing export", "TS2305", "Module '\"./api\"' has no exported member 'fetchAll'.", CauseImport},
		{"type code band", "TS2322", "Type 'A' is not assignable to type 'B'.", CauseType},
		{"type by message", "TS4111", "Property 'id' does not exist on type 'User'.", CauseType},
		{"unused code", "TS6133", "'req' is declared but its value is never read.", CauseUnused},
		{"unused band with message", "TS6888", "'helper' is declared but never used.", CauseUnused},
		{"opaque code", "X123Z", "something inscrutable happened", CauseOther},
		{"non numeric code", "LINTFOO", "style violation", CauseOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.code, tt.message))
		})
	}
}

func TestGroupingAndFiles(t *testing.T) {
	raw := strings.Join([]string{
		"src/a.ts(1,1): error TS1005: ';' expected.",
		"src/a.ts(2,1): error TS6133: 'x' is declared but its value is never read.",
		"src/b.ts(3,1): error TS1005: ')' expected.",
	}, "\n")
	errs := NewAnalyzer(nil).Analyze(raw)

	byFile := GroupByFile(errs)
	assert.Len(t, byFile["src/a.ts"], 2)
	assert.Len(t, byFile["src/b.ts"], 1)

	byCause := GroupByCause(errs)
	assert.Len(t, byCause[CauseSyntax], 2)
	assert.Len(t, byCause[CauseUnused], 1)

	assert.Equal(t, []string{"src/a.ts", "src/b.ts"}, Files(errs))
}

func TestRecommendations(t *testing.T) {
	raw := strings.Join([]string{
		"src/a.ts(1,1): error TS1005: ';' expected.",
		"src/a.ts(2,1): error TS6133: 'x' is declared but its value is never read.",
	}, "\n")
	errs := NewAnalyzer(nil).Analyze(raw)

	recs := Recommendations(errs)
	require.Len(t, recs, 2)
	assert.Contains(t, recs[0], "syntax")
	assert.Contains(t, recs[1], "unused")

	assert.Nil(t, Recommendations(nil))
}

func TestAnalyze_PatternHints(t *testing.T) {
	errs := NewAnalyzer(nil).Analyze("src/a.ts(1,1): error TS2307: Cannot find module './util'.")
	require.Len(t, errs, 1)
	assert.Equal(t, "module:./util", errs[0].Pattern)

	errs = NewAnalyzer(nil).Analyze("src/a.ts(1,1): error TS6133: 'req' is declared but its value is never read.")
	require.Len(t, errs, 1)
	assert.Equal(t, "ident:req", errs[0].Pattern)
}
