package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value object errors.
var (
	ErrUnknownReportKind = errors.New("unknown report kind")
	ErrInvalidLineRange  = errors.New("line range end must not precede start")
)

// ReportKind is one of the fixed output formats the coverage engine can render.
type ReportKind string

const (
	ReportTerm        ReportKind = "term"
	ReportTermMissing ReportKind = "term-missing"
	ReportAnnotate    ReportKind = "annotate"
	ReportHTML        ReportKind = "html"
	ReportXML         ReportKind = "xml"
)

var reportKinds = []ReportKind{ReportTerm, ReportTermMissing, ReportAnnotate, ReportHTML, ReportXML}

// ReportKinds returns every supported report kind in canonical order.
func ReportKinds() []ReportKind {
	out := make([]ReportKind, len(reportKinds))
	copy(out, reportKinds)
	return out
}

// ReportKindNames returns the report kinds as plain strings, in canonical order.
func ReportKindNames() []string {
	out := make([]string, 0, len(reportKinds))
	for _, k := range reportKinds {
		out = append(out, string(k))
	}
	return out
}

// ParseReportKind converts a string to a ReportKind.
func ParseReportKind(s string) (ReportKind, error) {
	for _, k := range reportKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownReportKind, s)
}

// ParseReportKinds converts every string, failing on the first unknown one.
func ParseReportKinds(values []string) ([]ReportKind, error) {
	out := make([]ReportKind, 0, len(values))
	for _, v := range values {
		k, err := ParseReportKind(v)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

// IsTerminal reports whether the kind renders to the output stream.
func (k ReportKind) IsTerminal() bool {
	return k == ReportTerm || k == ReportTermMissing
}

func (k ReportKind) String() string { return string(k) }

// LineRange is an inclusive span of source lines.
type LineRange struct {
	Start int
	End   int
}

// NewLineRange creates a LineRange, rejecting inverted spans.
func NewLineRange(start, end int) (LineRange, error) {
	if end < start {
		return LineRange{}, ErrInvalidLineRange
	}
	return LineRange{Start: start, End: end}, nil
}

// String renders "7" for a single line and "3-5" for a span.
func (r LineRange) String() string {
	if r.Start == r.End {
		return strconv.Itoa(r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// CollapseLines folds a sorted list of line numbers into ranges of consecutive lines.
func CollapseLines(lines []int) []LineRange {
	if len(lines) == 0 {
		return nil
	}
	ranges := []LineRange{{Start: lines[0], End: lines[0]}}
	for _, l := range lines[1:] {
		last := &ranges[len(ranges)-1]
		switch {
		case l == last.End:
		case l == last.End+1:
			last.End = l
		default:
			ranges = append(ranges, LineRange{Start: l, End: l})
		}
	}
	return ranges
}

// FormatRanges joins ranges the way the terminal report prints them.
func FormatRanges(ranges []LineRange) string {
	parts := make([]string, 0, len(ranges))
	for _, r := range ranges {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, ", ")
}

// Percent returns covered/total as a percentage; an empty total counts as fully covered.
func Percent(covered, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(covered) / float64(total) * 100
}

// FormatPercent renders a percentage with the given number of decimals.
// A partially covered total never prints as 0% or 100%.
func FormatPercent(p float64, precision int) string {
	if precision < 0 {
		precision = 0
	}
	step := math.Pow(10, -float64(precision))
	v := math.Round(p/step) * step
	switch {
	case v >= 100 && p < 100:
		v = 100 - step
	case v <= 0 && p > 0:
		v = step
	}
	return strconv.FormatFloat(v, 'f', precision, 64) + "%"
}
