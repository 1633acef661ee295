package report

import (
	"encoding/xml"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/felixgeelhaar/testcov/internal/domain"
)

type coberturaCoverage struct {
	XMLName         xml.Name           `xml:"coverage"`
	LineRate        string             `xml:"line-rate,attr"`
	BranchRate      string             `xml:"branch-rate,attr"`
	LinesCovered    int                `xml:"lines-covered,attr"`
	LinesValid      int                `xml:"lines-valid,attr"`
	BranchesCovered int                `xml:"branches-covered,attr"`
	BranchesValid   int                `xml:"branches-valid,attr"`
	Complexity      string             `xml:"complexity,attr"`
	Version         string             `xml:"version,attr"`
	Timestamp       int64              `xml:"timestamp,attr"`
	Sources         []string           `xml:"sources>source"`
	Packages        []coberturaPackage `xml:"packages>package"`
}

type coberturaPackage struct {
	Name       string           `xml:"name,attr"`
	LineRate   string           `xml:"line-rate,attr"`
	BranchRate string           `xml:"branch-rate,attr"`
	Complexity string           `xml:"complexity,attr"`
	Classes    []coberturaClass `xml:"classes>class"`
}

type coberturaClass struct {
	Name       string          `xml:"name,attr"`
	Filename   string          `xml:"filename,attr"`
	LineRate   string          `xml:"line-rate,attr"`
	BranchRate string          `xml:"branch-rate,attr"`
	Complexity string          `xml:"complexity,attr"`
	Methods    struct{}        `xml:"methods"`
	Lines      []coberturaLine `xml:"lines>line"`
}

type coberturaLine struct {
	Number int `xml:"number,attr"`
	Hits   int `xml:"hits,attr"`
}

// writeXML writes a Cobertura document. Files are grouped into packages by
// directory and line rates count covered lines over measured lines.
func (wr Writer) writeXML(res domain.Result, opts Options) (string, error) {
	doc := buildCobertura(res.Sorted(), opts.Root)
	doc.Timestamp = wr.now().UnixMilli()

	target := resolve(opts.Root, opts.XMLOutput)
	if dir := filepath.Dir(target); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", err
		}
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	out = append([]byte(xml.Header), out...)
	out = append(out, '\n')
	if err := os.WriteFile(target, out, 0o600); err != nil {
		return "", err
	}
	return "Coverage XML written to file " + opts.XMLOutput, nil
}

func buildCobertura(res domain.Result, root string) coberturaCoverage {
	doc := coberturaCoverage{
		BranchRate: "0",
		Complexity: "0",
		Version:    "testcov",
	}
	if root != "" {
		doc.Sources = []string{root}
	}

	byDir := make(map[string][]coberturaClass)
	lineCounts := make(map[string][2]int)
	for _, f := range res.Files {
		name := filepath.ToSlash(f.DisplayName())
		dir := path.Dir(name)
		covered, valid := len(f.CoveredLines()), len(f.CoveredLines())+len(f.MissedLines())

		class := coberturaClass{
			Name:       path.Base(name),
			Filename:   name,
			LineRate:   rate(covered, valid),
			BranchRate: "0",
			Complexity: "0",
		}
		lines := make([]int, 0, valid)
		for line := range f.Lines {
			if f.Lines[line] != domain.LineNone {
				lines = append(lines, line)
			}
		}
		sort.Ints(lines)
		for _, line := range lines {
			hits := 0
			if f.Lines[line] == domain.LineCovered {
				hits = 1
			}
			class.Lines = append(class.Lines, coberturaLine{Number: line, Hits: hits})
		}

		byDir[dir] = append(byDir[dir], class)
		c := lineCounts[dir]
		lineCounts[dir] = [2]int{c[0] + covered, c[1] + valid}
		doc.LinesCovered += covered
		doc.LinesValid += valid
	}

	dirs := make([]string, 0, len(byDir))
	for dir := range byDir {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	for _, dir := range dirs {
		c := lineCounts[dir]
		doc.Packages = append(doc.Packages, coberturaPackage{
			Name:       dir,
			LineRate:   rate(c[0], c[1]),
			BranchRate: "0",
			Complexity: "0",
			Classes:    byDir[dir],
		})
	}
	doc.LineRate = rate(doc.LinesCovered, doc.LinesValid)
	return doc
}

func rate(covered, valid int) string {
	if valid == 0 {
		return "1"
	}
	return strconv.FormatFloat(float64(covered)/float64(valid), 'f', 4, 64)
}
