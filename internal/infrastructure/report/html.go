package report

import (
	"bufio"
	"html/template"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/felixgeelhaar/testcov/internal/domain"
)

const htmlStyle = `
        :root {
            --pass: #16A34A;
            --fail: #DC2626;
            --warn: #CA8A04;
            --bg: #0f172a;
            --card: #1e293b;
            --text: #f8fafc;
            --muted: #94a3b8;
            --border: #334155;
        }
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, sans-serif;
            background: var(--bg);
            color: var(--text);
            line-height: 1.6;
            padding: 2rem;
        }
        .container { max-width: 1200px; margin: 0 auto; }
        h1 { font-size: 2rem; margin-bottom: 0.5rem; }
        a { color: var(--text); }
        .timestamp { color: var(--muted); margin-bottom: 2rem; }
        table {
            width: 100%;
            border-collapse: collapse;
            background: var(--card);
            border-radius: 0.5rem;
            overflow: hidden;
        }
        th, td {
            padding: 0.5rem 1rem;
            text-align: left;
            border-bottom: 1px solid var(--border);
        }
        th {
            background: rgba(0,0,0,0.2);
            font-size: 0.75rem;
            text-transform: uppercase;
            color: var(--muted);
        }
        td.num { text-align: right; }
        .high { color: var(--pass); }
        .mid { color: var(--warn); }
        .low { color: var(--fail); }
        pre { background: var(--card); border-radius: 0.5rem; overflow-x: auto; }
        pre span { display: block; padding: 0 1rem; white-space: pre; font-family: ui-monospace, monospace; }
        pre span.run { background: rgba(22, 163, 74, 0.15); }
        pre span.mis { background: rgba(220, 38, 38, 0.2); }
        pre span .ln { color: var(--muted); display: inline-block; min-width: 3rem; user-select: none; }
`

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <style>{{.Style}}</style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p class="timestamp">Generated {{.Timestamp}}</p>
        <table>
            <thead>
                <tr><th>Module</th><th>Statements</th><th>Missing</th><th>Coverage</th></tr>
            </thead>
            <tbody>
                {{range .Files}}
                <tr>
                    <td>{{if .Page}}<a href="{{.Page}}">{{.Name}}</a>{{else}}{{.Name}}{{end}}</td>
                    <td class="num">{{.Statements}}</td>
                    <td class="num">{{.Missed}}</td>
                    <td class="num {{.Class}}">{{.Percent}}</td>
                </tr>
                {{end}}
                <tr>
                    <td><strong>Total</strong></td>
                    <td class="num">{{.Total.Statements}}</td>
                    <td class="num">{{.Total.Missed}}</td>
                    <td class="num {{.Total.Class}}">{{.Total.Percent}}</td>
                </tr>
            </tbody>
        </table>
    </div>
</body>
</html>
`))

var fileTemplate = template.Must(template.New("file").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}: {{.Name}}</title>
    <style>{{.Style}}</style>
</head>
<body>
    <div class="container">
        <h1>{{.Name}}</h1>
        <p class="timestamp"><a href="index.html">{{.Title}}</a> &middot; {{.Percent}} of {{.Statements}} statements</p>
        <pre>{{range .Lines}}<span class="{{.Class}}"><span class="ln">{{.Number}}</span>{{.Text}}</span>{{end}}</pre>
    </div>
</body>
</html>
`))

type htmlRow struct {
	Name       string
	Page       string
	Statements int
	Missed     int
	Percent    string
	Class      string
}

type htmlIndex struct {
	Title     string
	Style     template.CSS
	Timestamp string
	Files     []htmlRow
	Total     htmlRow
}

type htmlLine struct {
	Number int
	Text   string
	Class  string
}

type htmlFile struct {
	htmlRow
	Title string
	Style template.CSS
	Lines []htmlLine
}

// writeHTML writes index.html plus one page per readable source file into
// the configured directory.
func (wr Writer) writeHTML(res domain.Result, opts Options) (string, error) {
	dir := resolve(opts.Root, opts.HTMLDir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}
	title := opts.HTMLTitle
	if title == "" {
		title = "Coverage report"
	}

	res = res.Sorted()
	index := htmlIndex{
		Title:     title,
		Style:     template.CSS(htmlStyle),
		Timestamp: wr.now().Format("2006-01-02 15:04:05"),
		Files:     make([]htmlRow, 0, len(res.Files)),
	}
	for _, f := range res.Files {
		if opts.SkipCovered && f.Missed == 0 {
			continue
		}
		row := htmlRow{
			Name:       f.DisplayName(),
			Statements: f.Statements,
			Missed:     f.Missed,
			Percent:    domain.FormatPercent(f.Percent(), opts.Precision),
			Class:      percentClass(f.Percent()),
		}
		if f.Path != "" {
			row.Page = flatName(f.DisplayName()) + ".html"
			if err := writeSourcePage(filepath.Join(dir, row.Page), f, row, title); err != nil {
				return "", err
			}
		}
		index.Files = append(index.Files, row)
	}
	totals := res.Totals()
	index.Total = htmlRow{
		Statements: totals.Statements,
		Missed:     totals.Missed,
		Percent:    domain.FormatPercent(totals.Percent(), opts.Precision),
		Class:      percentClass(totals.Percent()),
	}

	if err := renderTo(filepath.Join(dir, "index.html"), indexTemplate, index); err != nil {
		return "", err
	}
	return "Coverage HTML written to dir " + opts.HTMLDir, nil
}

func writeSourcePage(target string, f domain.FileCoverage, row htmlRow, title string) error {
	// #nosec G304 -- f.Path was resolved from the module root
	src, err := os.Open(f.Path)
	if err != nil {
		return errors.Wrapf(err, "html %s", f.DisplayName())
	}
	defer src.Close()

	page := htmlFile{htmlRow: row, Title: title, Style: template.CSS(htmlStyle)}
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		line := htmlLine{Number: n, Text: scanner.Text()}
		switch f.LineStatusAt(n) {
		case domain.LineCovered:
			line.Class = "run"
		case domain.LineMissed:
			line.Class = "mis"
		}
		page.Lines = append(page.Lines, line)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return renderTo(target, fileTemplate, page)
}

func renderTo(target string, tmpl *template.Template, data any) error {
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if err := tmpl.Execute(out, data); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func percentClass(p float64) string {
	switch {
	case p >= 80:
		return "high"
	case p >= 50:
		return "mid"
	default:
		return "low"
	}
}
