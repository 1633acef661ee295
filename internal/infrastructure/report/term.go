package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/testcov/internal/domain"
)

var (
	highStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#16A34A")).Bold(true)
	midStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#CA8A04")).Bold(true)
	lowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#DC2626")).Bold(true)
)

// WriteTerminal renders the statement table. The Missing column is added
// when showMissing is set.
func (wr Writer) WriteTerminal(w io.Writer, res domain.Result, opts Options, showMissing bool) error {
	res = res.Sorted()
	totals := res.Totals()

	rows := make([]domain.FileCoverage, 0, len(res.Files))
	skipped := 0
	for _, f := range res.Files {
		if opts.SkipCovered && f.Missed == 0 {
			skipped++
			continue
		}
		rows = append(rows, f)
	}

	nameWidth := len("TOTAL")
	for _, f := range rows {
		if n := len(f.DisplayName()); n > nameWidth {
			nameWidth = n
		}
	}
	coverWidth := len(domain.FormatPercent(100, opts.Precision))
	if coverWidth < len("Cover") {
		coverWidth = len("Cover")
	}

	colorize := wr.colorEnabled(w)
	header := fmt.Sprintf("%-*s %7s %7s %*s", nameWidth, "Name", "Stmts", "Miss", coverWidth+1, "Cover")
	if showMissing {
		header += "   Missing"
	}
	rule := strings.Repeat("-", len(header))

	var b strings.Builder
	b.WriteString(header + "\n")
	b.WriteString(rule + "\n")
	for _, f := range rows {
		line := wr.row(f.DisplayName(), f.Statements, f.Missed, f.Percent(), nameWidth, coverWidth, opts.Precision, colorize)
		if showMissing {
			if missing := domain.FormatRanges(f.MissingRanges()); missing != "" {
				line += "   " + missing
			}
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(rule + "\n")
	b.WriteString(wr.row("TOTAL", totals.Statements, totals.Missed, totals.Percent(), nameWidth, coverWidth, opts.Precision, colorize) + "\n")
	if skipped > 0 {
		b.WriteString("\n" + strconv.Itoa(skipped) + " files skipped due to complete coverage.\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (wr Writer) row(name string, stmts, miss int, percent float64, nameWidth, coverWidth, precision int, colorize bool) string {
	cover := fmt.Sprintf("%*s", coverWidth+1, domain.FormatPercent(percent, precision))
	if colorize {
		cover = coverStyle(percent).Render(cover)
	}
	return fmt.Sprintf("%-*s %7d %7d %s", nameWidth, name, stmts, miss, cover)
}

func coverStyle(percent float64) lipgloss.Style {
	switch {
	case percent >= 80:
		return highStyle
	case percent >= 50:
		return midStyle
	default:
		return lowStyle
	}
}
