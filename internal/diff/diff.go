// Package diff computes line-level diffs for report rendering, built on the
// sergi/go-diff engine.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op is the kind of one diff line.
type Op int

const (
	OpContext Op = iota
	OpAdded
	OpRemoved
)

// Line is one line of a computed diff.
type Line struct {
	Op      Op
	Content string
}

// Lines computes a line-oriented diff between two texts. A line-level
// reduction avoids newline boundary artifacts when converting char ops back
// to lines.
func Lines(oldText, newText string) []Line {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var out []Line
	for _, d := range diffs {
		op := OpContext
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = OpAdded
		case diffmatchpatch.DiffDelete:
			op = OpRemoved
		}
		for _, l := range splitLines(d.Text) {
			out = append(out, Line{Op: op, Content: l})
		}
	}
	return out
}

// Unified renders a compact unified-style diff for one file, containing only
// changed lines with +/- markers. Returns "" when the texts are identical.
func Unified(path, oldText, newText string) string {
	if oldText == newText {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", path, path)
	for _, l := range Lines(oldText, newText) {
		switch l.Op {
		case OpAdded:
			sb.WriteString("+" + l.Content + "\n")
		case OpRemoved:
			sb.WriteString("-" + l.Content + "\n")
		}
	}
	return sb.String()
}

// Stat counts added and removed lines between two texts.
func Stat(oldText, newText string) (added, removed int) {
	for _, l := range Lines(oldText, newText) {
		switch l.Op {
		case OpAdded:
			added++
		case OpRemoved:
			removed++
		}
	}
	return added, removed
}

func splitLines(text string) []string {
	trimmed := strings.TrimSuffix(text, "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}
