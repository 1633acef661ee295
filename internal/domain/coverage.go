package domain

import (
	"sort"
)

// LineStatus classifies a source line in a coverage result.
type LineStatus int

const (
	LineNone LineStatus = iota
	LineCovered
	LineMissed
)

// FileCoverage is the measured coverage of one source file.
type FileCoverage struct {
	// Name is the file as recorded in the profile (an import-path style name).
	Name string
	// Path is the file on disk, empty when it could not be resolved.
	Path string
	// RelPath is Path relative to the module root, used for display.
	RelPath    string
	Statements int
	Missed     int
	Lines      map[int]LineStatus
}

// Covered returns the number of executed statements.
func (f FileCoverage) Covered() int {
	return f.Statements - f.Missed
}

// Percent returns the statement coverage percentage.
func (f FileCoverage) Percent() float64 {
	return Percent(f.Covered(), f.Statements)
}

// DisplayName prefers the module-relative path over the profile name.
func (f FileCoverage) DisplayName() string {
	if f.RelPath != "" {
		return f.RelPath
	}
	return f.Name
}

// MissedLines returns the sorted line numbers marked as missed.
func (f FileCoverage) MissedLines() []int {
	return f.linesWith(LineMissed)
}

// CoveredLines returns the sorted line numbers marked as covered.
func (f FileCoverage) CoveredLines() []int {
	return f.linesWith(LineCovered)
}

// MissingRanges returns the missed lines folded into ranges.
func (f FileCoverage) MissingRanges() []LineRange {
	return CollapseLines(f.MissedLines())
}

// LineStatusAt returns the status of a single line.
func (f FileCoverage) LineStatusAt(line int) LineStatus {
	if f.Lines == nil {
		return LineNone
	}
	return f.Lines[line]
}

func (f FileCoverage) linesWith(status LineStatus) []int {
	out := make([]int, 0)
	for line, s := range f.Lines {
		if s == status {
			out = append(out, line)
		}
	}
	sort.Ints(out)
	return out
}

// Totals is the aggregated statement count of a coverage result.
type Totals struct {
	Statements int
	Missed     int
}

// Covered returns the number of executed statements.
func (t Totals) Covered() int {
	return t.Statements - t.Missed
}

// Percent returns the statement coverage percentage.
func (t Totals) Percent() float64 {
	return Percent(t.Covered(), t.Statements)
}

// Result is the full coverage measurement of a session.
type Result struct {
	Mode  string
	Files []FileCoverage
}

// Totals sums statements over every file.
func (r Result) Totals() Totals {
	var t Totals
	for _, f := range r.Files {
		t.Statements += f.Statements
		t.Missed += f.Missed
	}
	return t
}

// Sorted returns a copy of the result with files ordered by display name.
func (r Result) Sorted() Result {
	files := make([]FileCoverage, len(r.Files))
	copy(files, r.Files)
	sort.Slice(files, func(i, j int) bool {
		return files[i].DisplayName() < files[j].DisplayName()
	})
	return Result{Mode: r.Mode, Files: files}
}

// Filter returns a copy holding only the files keep accepts.
func (r Result) Filter(keep func(FileCoverage) bool) Result {
	out := Result{Mode: r.Mode, Files: make([]FileCoverage, 0, len(r.Files))}
	for _, f := range r.Files {
		if keep(f) {
			out.Files = append(out.Files, f)
		}
	}
	return out
}
